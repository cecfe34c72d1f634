package keyring

import (
	"MicroStudioLink/internal/core/ports"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	gokeyring "github.com/zalando/go-keyring"
)

// DefaultService is the keyring service every entry is filed under.
const DefaultService = "microstudio"

// stateStore keeps host state in the OS credential store. Values are
// base64-encoded because some backends only accept printable secrets.
type stateStore struct {
	service string
	log     zerolog.Logger
}

var _ ports.StateStore = (*stateStore)(nil)

// NewStateStore returns a StateStore backed by the OS keyring.
func NewStateStore(service string, baseLogger *zerolog.Logger) ports.StateStore {
	if service == "" {
		service = DefaultService
	}
	return &stateStore{
		service: service,
		log:     baseLogger.With().Str("component", "keyring_store").Str("service", service).Logger(),
	}
}

func (s *stateStore) Get(ctx context.Context, key string) ([]byte, error) {
	encoded, err := gokeyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return nil, ports.ErrStateNotFound
		}
		s.log.Error().Err(err).Str("key", key).Msg("Failed to read keyring entry")
		return nil, err
	}
	value, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("keyring entry %q is corrupt: %w", key, err)
	}
	return value, nil
}

func (s *stateStore) Set(ctx context.Context, key string, value []byte) error {
	if err := gokeyring.Set(s.service, key, base64.StdEncoding.EncodeToString(value)); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to write keyring entry")
		return err
	}
	return nil
}

func (s *stateStore) Delete(ctx context.Context, key string) error {
	err := gokeyring.Delete(s.service, key)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		s.log.Error().Err(err).Str("key", key).Msg("Failed to delete keyring entry")
		return err
	}
	return nil
}
