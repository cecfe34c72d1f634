package service

import (
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrNoSession is returned when no client is connected.
	ErrNoSession = errors.New("no active session")
	// ErrNoStoredToken is returned by Resume when nothing was persisted.
	ErrNoStoredToken = errors.New("no stored session token")
	// ErrNoProjectSelected is returned by CurrentProject before SelectProject.
	ErrNoProjectSelected = errors.New("no project selected")
	// ErrProjectNotFound is returned when the id is not in the user's list.
	ErrProjectNotFound = errors.New("project not found")
)

// Push topics the studio tracks.
const (
	topicAchievements = "achievements"
	topicUserStats    = "user_stats"
)

type standing struct {
	topic string
	id    ports.SubscriptionID
}

// Studio owns one session at a time and the host state that outlives it:
// the session token, the nick and the selected project.
type Studio struct {
	newClient ports.ClientFactory
	store     ports.StateStore
	log       zerolog.Logger

	mu           sync.Mutex
	client       ports.StudioClient
	standing     []standing
	projects     []domain.Project
	achievements []domain.Achievement
	stats        *domain.UserStats
}

// NewStudio creates the session service.
func NewStudio(newClient ports.ClientFactory, store ports.StateStore, baseLogger *zerolog.Logger) *Studio {
	return &Studio{
		newClient: newClient,
		store:     store,
		log:       baseLogger.With().Str("component", "studio").Logger(),
	}
}

// Login opens a session with credentials and persists the issued token.
func (s *Studio) Login(ctx context.Context, nick, password string) error {
	return s.open(ctx, domain.Credentials{Nick: nick, Password: password})
}

// Resume opens a session with the persisted token. fallback's nick and
// password are used if the token is rejected. The stored token is forgotten
// only when the service refuses authentication, not on transport failures.
func (s *Studio) Resume(ctx context.Context, fallback domain.Credentials) error {
	token, err := s.store.Get(ctx, ports.StateKeyToken)
	if err != nil {
		if errors.Is(err, ports.ErrStateNotFound) {
			return ErrNoStoredToken
		}
		return fmt.Errorf("read stored token: %w", err)
	}
	creds := fallback
	creds.Token = string(token)
	if creds.Nick == "" {
		if nick, err := s.store.Get(ctx, ports.StateKeyNick); err == nil {
			creds.Nick = string(nick)
		}
	}

	if err := s.open(ctx, creds); err != nil {
		if !errors.Is(err, ports.ErrAuthentication) {
			return err
		}
		if delErr := s.store.Delete(ctx, ports.StateKeyToken); delErr != nil {
			s.log.Warn().Err(delErr).Msg("Failed to forget rejected token")
		}
		return err
	}
	return nil
}

func (s *Studio) open(ctx context.Context, creds domain.Credentials) error {
	s.Close()

	client := s.newClient(creds)
	if err := client.Connect(ctx); err != nil {
		s.log.Error().Err(err).Str("nick", creds.Nick).Msg("Failed to open session")
		return err
	}

	subs, err := s.subscribe(client)
	if err != nil {
		_ = client.Close()
		return err
	}

	if err := s.store.Set(ctx, ports.StateKeyToken, []byte(client.Token())); err != nil {
		s.log.Error().Err(err).Msg("Failed to persist session token")
		for _, sub := range subs {
			client.Off(sub.topic, sub.id)
		}
		_ = client.Close()
		return fmt.Errorf("persist token: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.standing = subs
	s.projects = nil
	s.mu.Unlock()

	if err := s.store.Set(ctx, ports.StateKeyNick, []byte(client.Nick())); err != nil {
		s.log.Warn().Err(err).Msg("Failed to persist nick")
	}
	s.log.Info().Str("nick", client.Nick()).Msg("Session opened")
	return nil
}

func (s *Studio) subscribe(client ports.StudioClient) ([]standing, error) {
	var subs []standing
	for topic, handler := range map[string]ports.EventHandler{
		topicAchievements: s.onAchievements,
		topicUserStats:    s.onUserStats,
	} {
		id, err := client.On(topic, handler, ports.WithOwner(s))
		if err != nil {
			for _, sub := range subs {
				client.Off(sub.topic, sub.id)
			}
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
		subs = append(subs, standing{topic: topic, id: id})
	}
	return subs, nil
}

func (s *Studio) onAchievements(ctx context.Context, event ports.Event) error {
	msg, ok := event.Data.(ports.InboundMessage)
	if !ok {
		return nil
	}
	var push struct {
		Achievements []domain.Achievement `json:"achievements"`
	}
	if err := msg.Into(&push); err != nil {
		return fmt.Errorf("decode achievements: %w", err)
	}
	s.mu.Lock()
	s.achievements = append(s.achievements, push.Achievements...)
	s.mu.Unlock()
	return nil
}

func (s *Studio) onUserStats(ctx context.Context, event ports.Event) error {
	msg, ok := event.Data.(ports.InboundMessage)
	if !ok {
		return nil
	}
	var push struct {
		Stats domain.UserStats `json:"stats"`
	}
	if err := msg.Into(&push); err != nil {
		return fmt.Errorf("decode user_stats: %w", err)
	}
	s.mu.Lock()
	s.stats = &push.Stats
	s.mu.Unlock()
	return nil
}

// Client returns the connected client.
func (s *Studio) Client() (ports.StudioClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, ErrNoSession
	}
	return s.client, nil
}

// ListProjects returns the user's projects, served from cache unless refresh.
func (s *Studio) ListProjects(ctx context.Context, refresh bool) ([]domain.Project, error) {
	s.mu.Lock()
	client, cached := s.client, s.projects
	s.mu.Unlock()
	if client == nil {
		return nil, ErrNoSession
	}
	if cached != nil && !refresh {
		return cached, nil
	}

	projects, err := client.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	s.mu.Lock()
	if s.client == client {
		s.projects = projects
	}
	s.mu.Unlock()
	return projects, nil
}

// SelectProject makes id the current project and persists it.
func (s *Studio) SelectProject(ctx context.Context, id int64) (domain.Project, error) {
	projects, err := s.ListProjects(ctx, false)
	if err != nil {
		return domain.Project{}, err
	}
	for _, p := range projects {
		if p.ID != id {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return domain.Project{}, err
		}
		if err := s.store.Set(ctx, ports.StateKeyCurrentProject, data); err != nil {
			return domain.Project{}, fmt.Errorf("persist current project: %w", err)
		}
		s.log.Info().Int64("project_id", id).Str("title", p.Title).Msg("Project selected")
		return p, nil
	}
	return domain.Project{}, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
}

// CurrentProject reads the persisted selection. It needs no session.
func (s *Studio) CurrentProject(ctx context.Context) (domain.Project, error) {
	data, err := s.store.Get(ctx, ports.StateKeyCurrentProject)
	if err != nil {
		if errors.Is(err, ports.ErrStateNotFound) {
			return domain.Project{}, ErrNoProjectSelected
		}
		return domain.Project{}, err
	}
	var p domain.Project
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Project{}, fmt.Errorf("stored project is corrupt: %w", err)
	}
	return p, nil
}

// Achievements returns every achievement pushed during this process.
func (s *Studio) Achievements() []domain.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Achievement(nil), s.achievements...)
}

// Stats returns the latest pushed user stats.
func (s *Studio) Stats() (domain.UserStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return domain.UserStats{}, false
	}
	return *s.stats, true
}

// Logout closes the session and forgets the token and nick.
func (s *Studio) Logout(ctx context.Context) error {
	s.Close()
	for _, key := range []string{ports.StateKeyToken, ports.StateKeyNick} {
		if err := s.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("forget %s: %w", key, err)
		}
	}
	s.log.Info().Msg("Logged out")
	return nil
}

// Close ends the session but keeps the persisted token.
func (s *Studio) Close() {
	s.mu.Lock()
	client, subs := s.client, s.standing
	s.client, s.standing, s.projects = nil, nil, nil
	s.mu.Unlock()
	if client == nil {
		return
	}
	for _, sub := range subs {
		client.Off(sub.topic, sub.id)
	}
	if err := client.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close session")
	}
}
