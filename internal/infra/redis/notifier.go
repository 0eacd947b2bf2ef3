package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ProgressChannel carries the id of every user whose progress row changed.
const ProgressChannel = "progress:changed"

// Notifier publishes progress changes over Redis pub/sub so every instance
// can refresh its ranking views.
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) ProgressChanged(ctx context.Context, userID string) error {
	return n.client.Publish(ctx, ProgressChannel, userID).Err()
}

// Subscribe returns a channel of user ids whose progress changed.
// The caller must invoke the returned cancel function to avoid leaks.
func (n *Notifier) Subscribe(ctx context.Context) (<-chan string, func(), error) {
	sub := n.client.Subscribe(ctx, ProgressChannel)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan string, 8)
	done := make(chan struct{})
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					// Drop stale signals; the reader only needs to know something changed.
				}
			case <-done:
				return
			}
		}
	}()

	cancel := func() {
		select {
		case <-done:
		default:
			close(done)
			_ = sub.Close()
		}
	}
	return out, cancel, nil
}
