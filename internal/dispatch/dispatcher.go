// Package dispatch routes console commands to the backend and their replies
// to the main console or the popup window they came from.
package dispatch

import (
	"context"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/iksnae/jarvis-console/internal/speech"
)

const (
	// DenialReply is shown when a guest issues a system command
	DenialReply = "⛔ ACCESS DENIED — Guest users cannot execute system commands."
	// DenialSpoken is the spoken form of DenialReply
	DenialSpoken = "Access denied. Guest users cannot execute system commands."
)

// CommandSender issues POST /command
type CommandSender interface {
	Command(ctx context.Context, token string, req api.CommandRequest) (*api.CommandResponse, error)
}

// ChatResolver returns the chat id commands of a token belong to
type ChatResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// Classifier flags restricted system commands
type Classifier interface {
	IsSystemCommand(text string) bool
}

// TokenSource yields the current bearer token, "" for guests
type TokenSource interface {
	Token() string
}

// WindowLog receives replies addressed to a popup window. AppendReply fails
// once the window is closed.
type WindowLog interface {
	AppendReply(id, text string) error
}

// Deps are the collaborators of a Dispatcher
type Deps struct {
	Backend    CommandSender
	Tokens     TokenSource
	Resolver   ChatResolver
	Classifier Classifier
	Presenter  *Presenter
	Speech     *speech.Gate
	Status     *StatusBoard
	Notice     *RestrictionNotice
	Console    *Console
	Windows    WindowLog
}

// Dispatcher applies the guest policy, resolves the chat, calls the backend
// and delivers the reply to the target the command came from.
type Dispatcher struct {
	backend    CommandSender
	tokens     TokenSource
	resolver   ChatResolver
	classifier Classifier
	presenter  *Presenter
	speech     *speech.Gate
	status     *StatusBoard
	notice     *RestrictionNotice
	console    *Console

	windows atomic.Pointer[WindowLog]
	mainSeq atomic.Uint64
}

// New creates a Dispatcher. Status, Notice, Console and Speech get defaults
// when nil; Presenter defaults to one writing into Console.
func New(deps Deps) *Dispatcher {
	d := &Dispatcher{
		backend:    deps.Backend,
		tokens:     deps.Tokens,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		presenter:  deps.Presenter,
		speech:     deps.Speech,
		status:     deps.Status,
		notice:     deps.Notice,
		console:    deps.Console,
	}
	if d.status == nil {
		d.status = NewStatusBoard()
	}
	if d.notice == nil {
		d.notice = NewRestrictionNotice(DefaultNoticeDuration)
	}
	if d.console == nil {
		d.console = NewConsole()
	}
	if d.speech == nil {
		d.speech = speech.NewGate(nil)
	}
	if d.presenter == nil {
		d.presenter = NewPresenter(DefaultPresenterConfig(), d.console.SetReply)
	}
	if deps.Windows != nil {
		d.SetWindows(deps.Windows)
	}
	return d
}

// SetWindows connects the window manager after construction
func (d *Dispatcher) SetWindows(w WindowLog) {
	d.windows.Store(&w)
}

// Status returns the status board
func (d *Dispatcher) Status() *StatusBoard { return d.status }

// Notice returns the restriction notice
func (d *Dispatcher) Notice() *RestrictionNotice { return d.notice }

// Console returns the main console state
func (d *Dispatcher) Console() *Console { return d.console }

// Presenter returns the main console presenter
func (d *Dispatcher) Presenter() *Presenter { return d.presenter }

// Close stops the presenter and the restriction timer
func (d *Dispatcher) Close() {
	d.presenter.Stop()
	d.notice.Stop()
}

// Dispatch runs one command. Backend failures are reported through the
// result and never returned as errors; the only error is a chat that could
// not be created for a signed-in user, in which case nothing was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, target internal.ReplyTarget) (*internal.DispatchResult, error) {
	result := &internal.DispatchResult{Target: target}

	command := strings.TrimSpace(text)
	if command == "" {
		result.Skipped = true
		return result, nil
	}

	if target.IsWindow() {
		release := d.speech.Suppress()
		defer release()
	}
	// a new command silences the previous answer, unless a window call holds the gate
	d.speech.Cancel()

	var seq uint64
	if target.IsMain() {
		seq = d.mainSeq.Add(1)
		d.console.SetLastCommand(command)
	}

	defer d.setStatus(target, StatusIdle)
	d.setStatus(target, StatusProcessing)

	token := d.tokens.Token()
	if token == "" && d.classifier.IsSystemCommand(command) {
		d.restrict(ctx, result, seq)
		return result, nil
	}

	req := api.CommandRequest{Command: command}
	sendToken := ""
	if target.IsMain() {
		chatID, err := d.resolver.Resolve(ctx, token)
		if err != nil {
			internal.Logger().Warn("command aborted, no chat", zap.String("target", target.String()), zap.Error(err))
			return result, err
		}
		if token != "" {
			req.ChatID = chatID
			sendToken = token
		}
	} else {
		req.Silent = true
	}

	resp, err := d.backend.Command(ctx, sendToken, req)
	if err != nil {
		internal.Logger().Warn("command failed", zap.String("target", target.String()), zap.Error(err))
		result.Failed = true
		result.Reply = internal.UserMessage(err)
		d.deliver(result, result.Reply, seq)
		return result, nil
	}

	result.Intent = resp.Intent
	result.Confidence = resp.Confidence
	if s, ok := resp.Reply.(string); ok {
		result.Reply = strings.TrimSpace(s)
	} else {
		result.Reply = InvalidReplyPlaceholder
	}

	d.setStatus(target, StatusResponding)
	if !d.deliver(result, resp.Reply, seq) {
		return result, nil
	}

	if target.IsMain() && !result.Failed && result.Reply != InvalidReplyPlaceholder && result.Reply != "" {
		d.speak(ctx, result, result.Reply)
	}
	return result, nil
}

// setStatus updates the status board for main dispatches only; windows
// track their own pending state.
func (d *Dispatcher) setStatus(target internal.ReplyTarget, s Status) {
	if target.IsMain() {
		d.status.Set(s)
	}
}

// restrict handles a guest system command without contacting the backend
func (d *Dispatcher) restrict(ctx context.Context, result *internal.DispatchResult, seq uint64) {
	d.setStatus(result.Target, StatusRestricted)
	result.Restricted = true
	result.Reply = DenialReply
	internal.LogInfo("Guest system command blocked (%s)", result.Target)

	if d.deliver(result, DenialReply, seq) && result.Target.IsMain() {
		d.speak(ctx, result, DenialSpoken)
	}
	d.notice.Raise()
}

// deliver hands the reply to its target and reports whether it was shown.
// Replies for a superseded main dispatch or a closed window are dropped.
func (d *Dispatcher) deliver(result *internal.DispatchResult, reply any, seq uint64) bool {
	target := result.Target
	if target.IsMain() {
		if d.mainSeq.Load() != seq {
			result.Dropped = true
			internal.LogDebug("Dropping reply of superseded command")
			return false
		}
		d.presenter.Reveal(reply)
		return true
	}

	wp := d.windows.Load()
	if wp == nil {
		result.Dropped = true
		return false
	}
	if err := (*wp).AppendReply(target.WindowID, result.Reply); err != nil {
		result.Dropped = true
		internal.LogDebug("Dropping reply for window %s: %v", target.WindowID, err)
		return false
	}
	return true
}

func (d *Dispatcher) speak(ctx context.Context, result *internal.DispatchResult, text string) {
	if err := d.speech.Speak(ctx, text); err != nil {
		internal.LogDebug("speech failed: %v", err)
		return
	}
	result.Spoken = true
}
