package telegram

import (
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Push topics forwarded to the chat.
const (
	TopicAchievements = "achievements"
	TopicUserStats    = "user_stats"
)

const defaultOutboxSize = 64

type subscription struct {
	topic string
	id    ports.SubscriptionID
}

// pushNotifier turns achievement and stats pushes into chat messages. Bus
// handlers only format and enqueue; Run's workers do the network sends so
// the socket reader never waits on Telegram.
type pushNotifier struct {
	sender  BotSender
	chatID  int64
	workers int
	jobs    chan tgbotapi.MessageConfig
	log     zerolog.Logger

	mu     sync.Mutex
	source ports.EventSource
	subs   []subscription
}

var _ ports.PushNotifier = (*pushNotifier)(nil)

// NotifierOption configures a notifier.
type NotifierOption func(*pushNotifier)

// WithWorkers sets the number of sending workers. More than one worker
// gives up delivery order.
func WithWorkers(n int) NotifierOption {
	return func(p *pushNotifier) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithOutboxSize bounds the number of queued, unsent notifications.
func WithOutboxSize(n int) NotifierOption {
	return func(p *pushNotifier) {
		if n > 0 {
			p.jobs = make(chan tgbotapi.MessageConfig, n)
		}
	}
}

// NewPushNotifier forwards pushes to chatID through sender.
func NewPushNotifier(sender BotSender, chatID int64, baseLogger *zerolog.Logger, opts ...NotifierOption) ports.PushNotifier {
	p := &pushNotifier{
		sender:  sender,
		chatID:  chatID,
		workers: 1,
		jobs:    make(chan tgbotapi.MessageConfig, defaultOutboxSize),
		log:     baseLogger.With().Str("component", "push_notifier").Int64("chat_id", chatID).Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pushNotifier) Attach(source ports.EventSource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source != nil {
		return fmt.Errorf("notifier is already attached")
	}

	handlers := map[string]ports.EventHandler{
		TopicAchievements: p.handleAchievements,
		TopicUserStats:    p.handleUserStats,
	}
	for _, topic := range []string{TopicAchievements, TopicUserStats} {
		id, err := source.On(topic, handlers[topic], ports.WithOwner(p))
		if err != nil {
			p.detachLocked(source)
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		p.subs = append(p.subs, subscription{topic: topic, id: id})
	}
	p.source = source
	p.log.Info().Msg("Forwarding pushes to Telegram")
	return nil
}

func (p *pushNotifier) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source != nil {
		p.detachLocked(p.source)
	}
}

func (p *pushNotifier) detachLocked(source ports.EventSource) {
	for _, sub := range p.subs {
		source.Off(sub.topic, sub.id)
	}
	p.subs = nil
	p.source = nil
}

// Run starts the worker pool and blocks until ctx is done.
func (p *pushNotifier) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for w := 1; w <= p.workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			log := p.log.With().Int("worker_id", id).Logger()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-p.jobs:
					if _, err := p.sender.Send(msg); err != nil {
						log.Error().Err(err).Msg("Failed to send notification")
					}
				}
			}
		}(w)
	}
	wg.Wait()
	p.log.Info().Msg("Push notifier stopped")
	return nil
}

func (p *pushNotifier) enqueue(text string) {
	msg := tgbotapi.NewMessage(p.chatID, text)
	select {
	case p.jobs <- msg:
	default:
		p.log.Warn().Msg("Notification outbox full, dropping message")
	}
}

func (p *pushNotifier) handleAchievements(ctx context.Context, event ports.Event) error {
	msg, ok := event.Data.(ports.InboundMessage)
	if !ok {
		p.log.Error().Str("topic", event.Topic).Msg("Received bad achievements event from bus")
		return nil
	}
	var push struct {
		Achievements []domain.Achievement `json:"achievements"`
	}
	if err := msg.Into(&push); err != nil {
		return fmt.Errorf("decode achievements: %w", err)
	}
	for _, a := range push.Achievements {
		p.enqueue(FormatAchievement(a))
	}
	return nil
}

func (p *pushNotifier) handleUserStats(ctx context.Context, event ports.Event) error {
	msg, ok := event.Data.(ports.InboundMessage)
	if !ok {
		p.log.Error().Str("topic", event.Topic).Msg("Received bad user_stats event from bus")
		return nil
	}
	var push struct {
		Stats domain.UserStats `json:"stats"`
	}
	if err := msg.Into(&push); err != nil {
		return fmt.Errorf("decode user_stats: %w", err)
	}
	p.enqueue(FormatUserStats(push.Stats))
	return nil
}

// FormatAchievement renders an unlocked achievement as chat text.
func FormatAchievement(a domain.Achievement) string {
	var b strings.Builder
	name := a.Info.Name
	if name == "" {
		name = a.ID
	}
	fmt.Fprintf(&b, "Achievement unlocked: %s", name)
	if a.Info.Description != "" {
		fmt.Fprintf(&b, "\n%s", a.Info.Description)
	}
	if a.Info.XP > 0 {
		fmt.Fprintf(&b, "\n+%d XP", a.Info.XP)
	}
	return b.String()
}

// FormatUserStats renders a stats push as chat text.
func FormatUserStats(s domain.UserStats) string {
	return fmt.Sprintf("Level %d, %d XP\nLines of code: %d, characters typed: %d",
		s.Level, s.XP, s.LinesOfCode, s.CharactersTyped)
}
