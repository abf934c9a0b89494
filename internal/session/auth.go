package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/iksnae/jarvis-console/internal"
)

// ProfileFetcher resolves a bearer token into a profile
type ProfileFetcher interface {
	Me(ctx context.Context, token string) (*internal.Profile, error)
}

// AuthState is a snapshot of who is using the console.
// User != nil implies TokenPresent; the reverse need not hold while a
// profile fetch is pending.
type AuthState struct {
	User         *internal.Profile
	TokenPresent bool
	Degraded     bool // User is the fallback identity
}

// IsGuest reports whether no token is present
func (s AuthState) IsGuest() bool {
	return !s.TokenPresent
}

// DisplayName returns the user's name, or "GUEST"
func (s AuthState) DisplayName() string {
	if s.User == nil || s.User.Name == "" {
		return "GUEST"
	}
	return s.User.Name
}

// Auth keeps AuthState in sync with the token in the Store. Every token
// write triggers a profile fetch; a failed fetch keeps the user logged in
// with internal.FallbackProfile.
type Auth struct {
	store   *Store
	fetcher ProfileFetcher
	timeout time.Duration

	mu        sync.RWMutex
	state     AuthState
	listeners []func(AuthState)
	unsub     func()
}

// NewAuth creates an Auth bound to store. Call Init to resolve the current token.
func NewAuth(store *Store, fetcher ProfileFetcher) *Auth {
	return &Auth{
		store:   store,
		fetcher: fetcher,
		timeout: 10 * time.Second,
	}
}

// Init resolves the current token and subscribes to later token writes
func (a *Auth) Init(ctx context.Context) AuthState {
	a.mu.Lock()
	if a.unsub == nil {
		a.unsub = a.store.Subscribe(func(ev Event) {
			if ev.Key == KeyToken || ev.Cleared {
				a.Refresh(context.Background())
			}
		})
	}
	a.mu.Unlock()
	return a.Refresh(ctx)
}

// OnChange registers fn to receive every new state
func (a *Auth) OnChange(fn func(AuthState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// State returns the current snapshot
func (a *Auth) State() AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Refresh re-resolves the current token. The result is discarded when the
// token changed while the profile was being fetched.
func (a *Auth) Refresh(ctx context.Context) AuthState {
	token := a.store.Token()
	if token == "" {
		return a.apply(token, AuthState{})
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	profile, err := a.fetcher.Me(ctx, token)
	next := AuthState{User: profile, TokenPresent: true}
	if err == nil && profile != nil {
		// anyone holding a token is a full user on this console
		resolved := *profile
		resolved.Role = "user"
		next.User = &resolved
	} else {
		internal.Logger().Warn("profile fetch failed, using fallback identity", zap.Error(err))
		next = AuthState{User: internal.FallbackProfile(), TokenPresent: true, Degraded: true}
	}
	return a.apply(token, next)
}

func (a *Auth) apply(token string, next AuthState) AuthState {
	a.mu.Lock()
	if a.store.Token() != token {
		// superseded by a newer token write
		current := a.state
		a.mu.Unlock()
		return current
	}
	a.state = next
	listeners := append([]func(AuthState){}, a.listeners...)
	a.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}

// Logout clears the token and chat id; the subscription resets the state
func (a *Auth) Logout() {
	a.store.Logout()
}

// Close stops following token writes
func (a *Auth) Close() {
	a.mu.Lock()
	unsub := a.unsub
	a.unsub = nil
	a.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}
