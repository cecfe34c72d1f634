package ports

import (
	"context"
	"errors"
)

// ErrStateNotFound is returned by StateStore.Get for a missing key.
var ErrStateNotFound = errors.New("state not found")

// Well-known host state keys.
const (
	StateKeyToken          = "token"
	StateKeyNick           = "nick"
	StateKeyCurrentProject = "currentProject"
)

// StateStore persists small host values (session token, current project)
// between runs.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
}
