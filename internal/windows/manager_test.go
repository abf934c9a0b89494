package windows

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/iksnae/jarvis-console/internal/matcher"
	"github.com/iksnae/jarvis-console/internal/session"
	"github.com/iksnae/jarvis-console/internal/speech"
	"github.com/iksnae/jarvis-console/testutil"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("w%d", n)
	}
}

func newTestManager() *Manager {
	return NewManager(Options{NewID: sequentialIDs()})
}

// echoRouter answers every window command through AppendReply
type echoRouter struct {
	m     *Manager
	mu    sync.Mutex
	calls []internal.ReplyTarget
	hook  func(text string, target internal.ReplyTarget)
}

func (r *echoRouter) Dispatch(_ context.Context, text string, target internal.ReplyTarget) (*internal.DispatchResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, target)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(text, target)
	}
	res := &internal.DispatchResult{Target: target, Reply: "re: " + text}
	if err := r.m.AppendReply(target.WindowID, res.Reply); err != nil {
		res.Dropped = true
	}
	return res, nil
}

func TestSpawn(t *testing.T) {
	m := newTestManager()
	w := m.Spawn("  what is the weather ", "Sunny.")

	assert.Equal(t, "w1", w.ID)
	assert.Equal(t, "what is the weather", w.Title)
	assert.False(t, w.Minimized)
	require.Len(t, w.Messages, 1)
	assert.Equal(t, internal.RoleAssistant, w.Messages[0].Role)
	assert.Equal(t, "Sunny.", w.Messages[0].Text)

	second := m.Spawn("", "x")
	assert.Equal(t, "Jarvis", second.Title)
	assert.NotEqual(t, w.Position, second.Position, "windows cascade")
	assert.Len(t, m.Windows(), 2)
}

// within fails the test when fn does not return before d elapses
func within(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s did not return within %v", what, d)
	}
}

func TestManagerUsableAfterSpawn(t *testing.T) {
	m := newTestManager()
	w := m.Spawn("open window", "Done.")

	within(t, 2*time.Second, "Windows after Spawn", func() {
		assert.Len(t, m.Windows(), 1)
	})
	within(t, 2*time.Second, "Minimize and Close after Spawn", func() {
		assert.NoError(t, m.Minimize(w.ID))
		assert.NoError(t, m.AppendReply(w.ID, "more"))
		assert.NoError(t, m.Close(w.ID))
	})
}

func TestSendMessageWhilePolled(t *testing.T) {
	m := newTestManager()
	m.SetRouter(&echoRouter{m: m})
	w := m.Spawn("a", "first")

	stop := make(chan struct{})
	polled := make(chan int)
	go func() {
		n := 0
		defer func() { polled <- n }()
		for {
			select {
			case <-stop:
				return
			default:
				m.Windows()
				n++
			}
		}
	}()

	within(t, 2*time.Second, "SendMessage under polling", func() {
		for i := 0; i < 20; i++ {
			_, err := m.SendMessage(context.Background(), w.ID, fmt.Sprintf("msg %d", i))
			assert.NoError(t, err)
		}
	})
	close(stop)
	assert.Positive(t, <-polled)

	got, err := m.Get(w.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 41)
	assert.Zero(t, got.Pending)
}

func TestDefaultIDsAreUnique(t *testing.T) {
	m := NewManager(Options{})
	a := m.Spawn("a", "1")
	b := m.Spawn("b", "2")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMinimizeRestore(t *testing.T) {
	m := newTestManager()
	w := m.Spawn("cmd", "reply")
	other := m.Spawn("other", "reply")

	require.NoError(t, m.Minimize(w.ID))
	require.NoError(t, m.Minimize(w.ID), "idempotent")
	got, _ := m.Get(w.ID)
	assert.True(t, got.Minimized)
	assert.Len(t, m.Visible(), 1)
	assert.Len(t, m.Minimized(), 1)

	// activity elsewhere does not touch the minimized window
	require.NoError(t, m.AppendReply(other.ID, "more"))

	require.NoError(t, m.Restore(w.ID))
	require.NoError(t, m.Restore(w.ID))
	got, _ = m.Get(w.ID)
	assert.False(t, got.Minimized)
	assert.Equal(t, w.Messages, got.Messages)

	ws := m.Windows()
	assert.Equal(t, w.ID, ws[len(ws)-1].ID, "restored window is on top")
}

func TestCloseIsTerminal(t *testing.T) {
	m := newTestManager()
	w := m.Spawn("cmd", "reply")
	require.NoError(t, m.Minimize(w.ID))
	require.NoError(t, m.Close(w.ID))

	assert.Empty(t, m.Windows())
	assert.Zero(t, m.Taskbar(DefaultTaskbarCap).Len())

	for name, op := range map[string]func() error{
		"close":    func() error { return m.Close(w.ID) },
		"minimize": func() error { return m.Minimize(w.ID) },
		"restore":  func() error { return m.Restore(w.ID) },
		"move":     func() error { return m.Move(w.ID, Point{X: 1, Y: 1}) },
		"raise":    func() error { return m.Raise(w.ID) },
		"append":   func() error { return m.AppendReply(w.ID, "late") },
	} {
		assert.ErrorIs(t, op(), ErrWindowClosed, name)
	}

	_, err := m.Get(w.ID)
	assert.ErrorIs(t, err, ErrWindowClosed)
	assert.ErrorIs(t, m.Close("nope"), ErrWindowNotFound)
}

func TestMoveAndRaise(t *testing.T) {
	m := newTestManager()
	a := m.Spawn("a", "1")
	b := m.Spawn("b", "2")

	require.NoError(t, m.Move(a.ID, Point{X: 40, Y: 10}))
	got, _ := m.Get(a.ID)
	assert.Equal(t, Point{X: 40, Y: 10}, got.Position)

	require.NoError(t, m.MoveBy(a.ID, -100, 2))
	got, _ = m.Get(a.ID)
	assert.Equal(t, Point{X: 0, Y: 12}, got.Position)

	require.NoError(t, m.Raise(a.ID))
	ws := m.Windows()
	assert.Equal(t, []string{b.ID, a.ID}, []string{ws[0].ID, ws[1].ID})
}

func TestSnapshotsAreIsolated(t *testing.T) {
	m := newTestManager()
	w := m.Spawn("a", "1")

	snapshot := m.Windows()
	snapshot[0].Messages[0].Text = "mutated"
	require.NoError(t, m.AppendReply(w.ID, "2"))

	got, _ := m.Get(w.ID)
	assert.Equal(t, "1", got.Messages[0].Text)
	assert.Len(t, snapshot[0].Messages, 1, "old snapshot unchanged by later appends")
}

func TestOnChange(t *testing.T) {
	m := newTestManager()
	var sizes []int
	m.OnChange(func(ws []Window) { sizes = append(sizes, len(ws)) })

	w := m.Spawn("a", "1")
	require.NoError(t, m.Minimize(w.ID))
	require.NoError(t, m.Minimize(w.ID))
	require.NoError(t, m.Close(w.ID))

	assert.Equal(t, []int{1, 1, 0}, sizes, "no-op minimize publishes nothing")
}

func TestSendMessage(t *testing.T) {
	m := newTestManager()
	router := &echoRouter{m: m}
	m.SetRouter(router)
	a := m.Spawn("a", "first")
	b := m.Spawn("b", "second")

	var pendingDuringCall int
	router.hook = func(string, internal.ReplyTarget) {
		w, _ := m.Get(a.ID)
		pendingDuringCall = w.Pending
		assert.Equal(t, "more detail", w.Messages[len(w.Messages)-1].Text, "user message is shown before the reply")
	}

	res, err := m.SendMessage(context.Background(), a.ID, " more detail ")
	require.NoError(t, err)
	assert.Equal(t, internal.WindowTarget(a.ID), res.Target)
	assert.Equal(t, 1, pendingDuringCall)

	got, _ := m.Get(a.ID)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, internal.RoleUser, got.Messages[1].Role)
	assert.Equal(t, "re: more detail", got.Messages[2].Text)
	assert.Zero(t, got.Pending)

	untouched, _ := m.Get(b.ID)
	assert.Len(t, untouched.Messages, 1)
}

func TestSendMessageWhileMinimized(t *testing.T) {
	m := newTestManager()
	m.SetRouter(&echoRouter{m: m})
	w := m.Spawn("a", "1")
	require.NoError(t, m.Minimize(w.ID))

	_, err := m.SendMessage(context.Background(), w.ID, "hi")
	require.NoError(t, err)
	got, _ := m.Get(w.ID)
	assert.True(t, got.Minimized)
	assert.Len(t, got.Messages, 3)
}

func TestSendMessageErrors(t *testing.T) {
	m := newTestManager()
	w := m.Spawn("a", "1")

	_, err := m.SendMessage(context.Background(), w.ID, "hi")
	require.Error(t, err, "no router")

	m.SetRouter(&echoRouter{m: m})
	res, err := m.SendMessage(context.Background(), w.ID, "   ")
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	require.NoError(t, m.Close(w.ID))
	_, err = m.SendMessage(context.Background(), w.ID, "hi")
	assert.ErrorIs(t, err, ErrWindowClosed)
}

func TestCloseDuringSendDropsReply(t *testing.T) {
	m := newTestManager()
	router := &echoRouter{m: m}
	m.SetRouter(router)
	w := m.Spawn("a", "1")
	router.hook = func(string, internal.ReplyTarget) {
		require.NoError(t, m.Close(w.ID))
	}

	res, err := m.SendMessage(context.Background(), w.ID, "hi")
	require.NoError(t, err)
	assert.True(t, res.Dropped)
	assert.Empty(t, m.Windows())
}

func TestTaskbarProjection(t *testing.T) {
	m := newTestManager()
	var ids []string
	for i := 0; i < 8; i++ {
		ids = append(ids, m.Spawn(fmt.Sprintf("cmd %d", i), "r").ID)
	}
	for _, id := range ids[:7] {
		require.NoError(t, m.Minimize(id))
	}

	tb := m.Taskbar(DefaultTaskbarCap)
	assert.Len(t, tb.Tabs, 5)
	assert.Equal(t, "+2", tb.OverflowLabel())
	assert.Equal(t, []Tab{{ID: "w6", Title: "cmd 5"}, {ID: "w7", Title: "cmd 6"}}, tb.Overflow)
	assert.Equal(t, 7, tb.Len())

	require.NoError(t, m.Close("w6"))
	tb = m.Taskbar(DefaultTaskbarCap)
	assert.Equal(t, "+1", tb.OverflowLabel())
	for _, tab := range append(tb.Tabs, tb.Overflow...) {
		assert.NotEqual(t, "w6", tab.ID)
	}
}

func TestProjectTaskbarSmall(t *testing.T) {
	ws := []Window{{ID: "a", Minimized: true}, {ID: "b"}, {ID: "c", Minimized: true}}
	tb := ProjectTaskbar(ws, 0)
	assert.Len(t, tb.Tabs, 2)
	assert.Empty(t, tb.Overflow)
	assert.Empty(t, tb.OverflowLabel())
}

type countingSpeaker struct {
	mu     sync.Mutex
	spoken int
}

func (s *countingSpeaker) Speak(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken++
	return nil
}

func (s *countingSpeaker) Cancel() {}

func TestWindowConversationThroughDispatcher(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	store := session.NewStore()
	store.SetToken(testutil.TestToken)
	client := api.NewClient(fb.URL())
	speaker := &countingSpeaker{}
	console := dispatch.NewConsole()

	m := newTestManager()
	d := dispatch.New(dispatch.Deps{
		Backend:    client,
		Tokens:     store,
		Resolver:   session.NewResolver(store, client),
		Classifier: matcher.New(matcher.Options{}),
		Presenter: dispatch.NewPresenter(dispatch.PresenterConfig{
			CharsPerSecond: 1000, MinDuration: time.Millisecond, MinCharDelay: time.Millisecond,
		}, console.SetReply),
		Speech:  speech.NewGate(speaker),
		Console: console,
		Windows: m,
	})
	defer d.Close()
	m.SetRouter(d)

	// main console reply "Done." is promoted into a window
	res, err := d.Dispatch(context.Background(), "status report", internal.MainTarget())
	require.NoError(t, err)
	<-d.Presenter().Done()
	assert.Equal(t, 1, speaker.spoken)
	w := m.Spawn(console.LastCommand(), res.Reply)
	assert.Equal(t, "Done.", w.Messages[0].Text)

	_, err = m.SendMessage(context.Background(), w.ID, "more detail")
	require.NoError(t, err)

	calls := fb.CommandCalls()
	require.Len(t, calls, 2)
	window := calls[1]
	assert.True(t, window.Silent())
	assert.False(t, window.HasChatID())
	assert.Empty(t, window.Authorization)

	got, _ := m.Get(w.ID)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "Done.", got.Messages[2].Text)
	assert.Equal(t, 1, speaker.spoken, "window reply is not spoken")
	assert.Equal(t, "status report", console.LastCommand())
	assert.Equal(t, "Done.", console.Reply())
}

func TestErrorsWrapSentinels(t *testing.T) {
	m := newTestManager()
	err := m.Minimize("ghost")
	assert.True(t, errors.Is(err, ErrWindowNotFound))
	assert.Contains(t, err.Error(), "ghost")
}
