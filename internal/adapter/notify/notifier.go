package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/rocket-cart/internal/core/domain"
	"github.com/rl1809/rocket-cart/internal/port"
)

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	log logrus.FieldLogger
}

func NewLogNotifier(log logrus.FieldLogger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(ctx context.Context, message string, kind domain.NotificationKind) {
	entry := l.log.WithField("kind", kind)
	if kind == domain.NotificationError {
		entry.Warn(message)
		return
	}
	entry.Info(message)
}

// Feed keeps the most recent notifications for consumers that poll, and
// forwards each one to its listeners once stamped.
type Feed struct {
	mu        sync.Mutex
	items     []domain.Notification
	size      int
	now       func() time.Time
	listeners []func(domain.Notification)
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{size: size, now: time.Now}
}

// Listen registers fn to receive every notification after Push stamps it.
func (f *Feed) Listen(fn func(domain.Notification)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *Feed) Notify(ctx context.Context, message string, kind domain.NotificationKind) {
	f.Push(domain.Notification{Message: message, Kind: kind})
}

// Push appends n, filling in ID and CreatedAt when unset, and evicts the oldest
// entry once the feed is full.
func (f *Feed) Push(n domain.Notification) domain.Notification {
	f.mu.Lock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = f.now()
	}
	if len(f.items) == f.size {
		copy(f.items, f.items[1:])
		f.items = f.items[:f.size-1]
	}
	f.items = append(f.items, n)
	listeners := f.listeners
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
	return n
}

// Recent returns notifications oldest first.
func (f *Feed) Recent() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Multi fans a notification out to every wrapped notifier in order.
type Multi []port.Notifier

func (m Multi) Notify(ctx context.Context, message string, kind domain.NotificationKind) {
	for _, n := range m {
		n.Notify(ctx, message, kind)
	}
}
