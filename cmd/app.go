package cmd

import (
	"context"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
	"github.com/iksnae/jarvis-console/internal/config"
	"github.com/iksnae/jarvis-console/internal/dispatch"
	"github.com/iksnae/jarvis-console/internal/matcher"
	"github.com/iksnae/jarvis-console/internal/session"
	"github.com/iksnae/jarvis-console/internal/speech"
	"github.com/iksnae/jarvis-console/internal/windows"
)

// app holds the collaborators shared by the commands of one process run.
// The session store only lives in memory; the token comes from the config.
type app struct {
	cfg    *config.Config
	client *api.Client
	store  *session.Store
	auth   *session.Auth

	speaker      *speech.CommandSpeaker // nil when speech output is off
	speechNotice string                 // why speech output is off, shown once
	cache        *internal.HistoryCache
}

func newApp(c *config.Config) *app {
	a := &app{
		cfg:    c,
		client: api.NewClient(c.Backend.BaseURL, api.WithTimeout(c.Backend.Timeout)),
		store:  session.NewStore(),
	}
	if c.Token != "" {
		a.store.SetToken(c.Token)
	}
	a.auth = session.NewAuth(a.store, a.client)
	return a
}

// initAuth resolves the configured token against the backend
func (a *app) initAuth(ctx context.Context) session.AuthState {
	state := a.auth.Init(ctx)
	if state.Degraded {
		internal.LogWarn("Could not load your profile, continuing as %s", state.DisplayName())
	}
	return state
}

// requireToken returns the configured token or internal.ErrNotAuthenticated
func (a *app) requireToken() (string, error) {
	token := a.store.Token()
	if token == "" {
		return "", internal.ErrNotAuthenticated
	}
	return token, nil
}

// openCache opens the history cache, or returns nil when it is disabled or
// cannot be opened. The cache is an optimization; failures are only logged.
func (a *app) openCache() *internal.HistoryCache {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	if a.cache != nil {
		return a.cache
	}
	cache, err := internal.OpenHistoryCache(a.cfg.Cache.Dir)
	if err != nil {
		internal.LogWarn("History cache unavailable: %v", err)
		return nil
	}
	a.cache = cache
	return cache
}

// newSpeaker returns the configured speech engine, or nil when speech output
// is disabled or no engine is installed.
func (a *app) newSpeaker() speech.Speaker {
	if !a.cfg.Speech.Enabled {
		return nil
	}
	s, err := speech.NewCommandSpeaker(a.cfg.Speech.Engine, a.cfg.Speech.Rate)
	if err != nil {
		a.speechNotice = "Speech output is off: " + err.Error()
		internal.LogWarn("Speech output disabled: %v", err)
		return nil
	}
	a.speaker = s
	return s
}

// newRecognizer returns the configured speech-to-text command. Without one
// every Listen reports internal.ErrSpeechUnsupported.
func (a *app) newRecognizer() speech.Recognizer {
	if !a.cfg.Speech.Enabled {
		return speech.UnsupportedRecognizer{}
	}
	r, err := speech.NewCommandRecognizer(a.cfg.Speech.ListenCommand)
	if err != nil {
		internal.LogDebug("Speech input disabled: %v", err)
		return speech.UnsupportedRecognizer{}
	}
	return r
}

// newDispatcher wires a dispatcher whose presenter writes into sink.
// A nil sink reveals into the dispatcher's own console state.
func (a *app) newDispatcher(sink func(string)) *dispatch.Dispatcher {
	console := dispatch.NewConsole()
	if sink == nil {
		sink = console.SetReply
	}
	return dispatch.New(dispatch.Deps{
		Backend:    a.client,
		Tokens:     a.store,
		Resolver:   session.NewResolver(a.store, a.client),
		Classifier: matcher.New(a.cfg.MatcherOptions()),
		Presenter:  dispatch.NewPresenter(a.cfg.PresenterSettings(), sink),
		Speech:     speech.NewGate(a.newSpeaker()),
		Notice:     dispatch.NewRestrictionNotice(a.cfg.Restriction.NoticeDuration),
		Console:    console,
	})
}

// newWindows creates the window manager and connects it to d in both directions
func (a *app) newWindows(d *dispatch.Dispatcher) *windows.Manager {
	wm := windows.NewManager(windows.Options{})
	wm.SetRouter(d)
	d.SetWindows(wm)
	return wm
}

// waitSpeech blocks until the current utterance has been spoken
func (a *app) waitSpeech() {
	if a.speaker != nil {
		a.speaker.Wait()
	}
}

func (a *app) close() {
	a.auth.Close()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			internal.LogDebug("closing history cache: %v", err)
		}
	}
}
