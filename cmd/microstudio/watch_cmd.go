package main

import (
	"MicroStudioLink/internal/adapters/telegram"
	"MicroStudioLink/internal/core/domain"
	"MicroStudioLink/internal/core/ports"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pterm/pterm"
)

var errSessionClosed = errors.New("session closed by the service")

type watchSub struct {
	topic string
	id    ports.SubscriptionID
}

// WatchCmd prints pushes until the context ends or the socket closes.
type WatchCmd struct {
	studio   StudioCmd
	notifier ports.PushNotifier
}

// Watch blocks for the life of the session.
func (w WatchCmd) Watch(ctx context.Context) error {
	client, err := w.studio.session(ctx)
	if err != nil {
		return err
	}

	pterm.Info.Printf("Watching pushes for %s, press Ctrl+C to stop\n", client.Nick())

	closed := make(chan struct{})
	var closeOnce sync.Once
	var subs []watchSub
	subscribe := func(topic string, handler ports.EventHandler) error {
		id, err := client.On(topic, handler)
		if err != nil {
			return err
		}
		subs = append(subs, watchSub{topic: topic, id: id})
		return nil
	}
	defer func() {
		for _, s := range subs {
			client.Off(s.topic, s.id)
		}
	}()

	err = subscribe(telegram.TopicAchievements, func(ctx context.Context, event ports.Event) error {
		var push struct {
			Achievements []domain.Achievement `json:"achievements"`
		}
		if err := decodePush(event, &push); err != nil {
			return err
		}
		for _, a := range push.Achievements {
			pterm.Success.Println(telegram.FormatAchievement(a))
		}
		return nil
	})
	if err != nil {
		return err
	}
	err = subscribe(telegram.TopicUserStats, func(ctx context.Context, event ports.Event) error {
		var push struct {
			Stats domain.UserStats `json:"stats"`
		}
		if err := decodePush(event, &push); err != nil {
			return err
		}
		pterm.Info.Println(telegram.FormatUserStats(push.Stats))
		return nil
	})
	if err != nil {
		return err
	}
	err = subscribe(ports.TopicConnectionState, func(ctx context.Context, event ports.Event) error {
		if state, ok := event.Data.(domain.ConnectionState); ok && state == domain.StateClosed {
			closeOnce.Do(func() { close(closed) })
		}
		return nil
	})
	if err != nil {
		return err
	}

	if w.notifier != nil {
		if err := w.notifier.Attach(client); err != nil {
			return err
		}
		defer w.notifier.Detach()
		go func() { _ = w.notifier.Run(ctx) }()
		pterm.Info.Println("Forwarding pushes to Telegram")
	}

	select {
	case <-ctx.Done():
		return nil
	case <-closed:
		return errSessionClosed
	}
}

func decodePush(event ports.Event, v interface{}) error {
	msg, ok := event.Data.(ports.InboundMessage)
	if !ok {
		return fmt.Errorf("unexpected %s payload %T", event.Topic, event.Data)
	}
	return msg.Into(v)
}
