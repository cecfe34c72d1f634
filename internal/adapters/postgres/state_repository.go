package postgres

import (
	"MicroStudioLink/internal/core/ports"
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type stateRepository struct {
	db     *DB
	secSvc ports.SecurityPort
	log    zerolog.Logger
}

var _ ports.StateStore = (*stateRepository)(nil)

// NewStateRepository stores host state in host_state, sealed with secSvc.
func NewStateRepository(db *DB, secSvc ports.SecurityPort, baseLogger *zerolog.Logger) ports.StateStore {
	return &stateRepository{
		db:     db,
		secSvc: secSvc,
		log:    baseLogger.With().Str("component", "state_repo").Logger(),
	}
}

func (r *stateRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var sealed string
	err := r.db.pool.QueryRow(ctx, `SELECT value FROM host_state WHERE key = $1`, key).Scan(&sealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrStateNotFound
		}
		r.log.Error().Err(err).Str("key", key).Msg("Failed to read state")
		return nil, err
	}

	value, err := r.secSvc.OpenString(sealed)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("Failed to open sealed state")
		return nil, err
	}
	return value, nil
}

func (r *stateRepository) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := r.secSvc.SealString(value)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("Failed to seal state")
		return err
	}

	query := `
		INSERT INTO host_state (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	if _, err := r.db.pool.Exec(ctx, query, key, sealed); err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("Failed to write state")
		return err
	}
	return nil
}

func (r *stateRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.pool.Exec(ctx, `DELETE FROM host_state WHERE key = $1`, key); err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("Failed to delete state")
		return err
	}
	return nil
}
