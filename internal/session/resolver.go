package session

import (
	"context"
	"errors"
	"sync"

	"github.com/iksnae/jarvis-console/internal"
	"github.com/iksnae/jarvis-console/internal/api"
)

// ChatCreator starts a new conversation for a token
type ChatCreator interface {
	NewChat(ctx context.Context, token string) (*api.NewChatResponse, error)
}

// Resolver decides which chat a command belongs to
type Resolver struct {
	store   *Store
	creator ChatCreator
	mu      sync.Mutex
}

// NewResolver creates a Resolver caching chat ids in store
func NewResolver(store *Store, creator ChatCreator) *Resolver {
	return &Resolver{store: store, creator: creator}
}

// Resolve returns the chat id for token. A guest (empty token) has no chat
// and gets "" without any backend call. An authenticated user gets the
// cached id, or a newly created one. A failed creation returns a
// *internal.ChatUnavailableError and the caller must not send the command.
func (r *Resolver) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", nil
	}

	// serialize so two concurrent first commands create one chat
	r.mu.Lock()
	defer r.mu.Unlock()

	if id := r.store.ActiveChatID(); id != "" {
		return id, nil
	}

	chat, err := r.creator.NewChat(ctx, token)
	if err == nil && (chat == nil || chat.ChatID == "") {
		err = errors.New("no chat id returned")
	}
	if err != nil {
		internal.LogWarn("Could not create chat: %v", err)
		return "", &internal.ChatUnavailableError{Err: err}
	}

	// the token may have changed while the chat was being created
	if r.store.Token() != token {
		return chat.ChatID, nil
	}
	r.store.SetActiveChatID(chat.ChatID)
	internal.LogDebug("Started chat %s", chat.ChatID)
	return chat.ChatID, nil
}
