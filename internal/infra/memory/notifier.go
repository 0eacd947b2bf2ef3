package memory

import (
	"context"
	"sync"
)

// Notifier fans progress-changed signals out to in-process subscribers.
type Notifier struct {
	mu          sync.Mutex
	subscribers map[chan string]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subscribers: make(map[chan string]struct{})}
}

func (n *Notifier) ProgressChanged(_ context.Context, userID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subscribers {
		select {
		case ch <- userID:
		default:
			// Drop the oldest pending signal so slow readers never block the reconciler.
			select {
			case <-ch:
			default:
			}
			ch <- userID
		}
	}
	return nil
}

// Subscribe returns a channel of user ids whose progress changed.
// The caller must invoke the returned cancel function to avoid leaks.
func (n *Notifier) Subscribe(_ context.Context) (<-chan string, func(), error) {
	ch := make(chan string, 8)
	n.mu.Lock()
	n.subscribers[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subscribers[ch]; ok {
			delete(n.subscribers, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel, nil
}
