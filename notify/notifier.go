package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

const (
	DefaultSweepInterval = 10 * time.Second
	DefaultMaxAttempts   = 5
)

// Notification is a pending "ping me later" request, keyed by the message
// that created it.
type Notification struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	UserID    snowflake.ID
	MessageID snowflake.ID
	CreatedAt time.Time
	NotifyAt  time.Time
	Note      string
	Attempts  int
}

// Request carries what the caller knows when scheduling.
type Request struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	UserID    snowflake.ID
	MessageID snowflake.ID
	When      string
	Note      string
}

// Store is the durable side of the notifier.
type Store interface {
	LoadNotifications(ctx context.Context) ([]Notification, error)
	SaveNotification(ctx context.Context, n Notification) error
	// DeleteNotification reports whether a row was removed.
	DeleteNotification(ctx context.Context, messageID snowflake.ID) (bool, error)
}

// Deliverer posts a due notification back to its origin channel.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

type DelivererFunc func(ctx context.Context, n Notification) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

type Config struct {
	MaxAttempts int
	Logger      *slog.Logger
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Delivered   int
	Retrying    int
	DeadLetters int
	Skipped     int
}

type Notifier struct {
	mu      sync.Mutex
	pending map[snowflake.ID]Notification

	parser    *Parser
	store     Store
	deliverer Deliverer
	cfg       Config
	log       *slog.Logger
	now       func() time.Time
}

// New loads every stored notification into memory.
func New(ctx context.Context, parser *Parser, store Store, deliverer Deliverer, cfg Config) (*Notifier, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	n := &Notifier{
		pending:   make(map[snowflake.ID]Notification),
		parser:    parser,
		store:     store,
		deliverer: deliverer,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
	if parser != nil && parser.Now != nil {
		n.now = parser.Now
	}

	rows, err := store.LoadNotifications(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrStorageFailure, err)
	}
	for _, r := range rows {
		n.pending[r.MessageID] = r
	}
	if len(rows) > 0 {
		log.Info(fmt.Sprintf("Loaded %d pending notifications", len(rows)))
	}
	return n, nil
}

// Schedule parses req.When, persists the notification and tracks it.
// Nothing is stored when parsing fails.
func (n *Notifier) Schedule(ctx context.Context, req Request) (Notification, error) {
	at, err := n.parser.Parse(req.When)
	if err != nil {
		return Notification{}, err
	}
	now := n.now()
	rec := Notification{
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		UserID:    req.UserID,
		MessageID: req.MessageID,
		CreatedAt: now.In(SeasonalZone(now)),
		NotifyAt:  at,
		Note:      req.Note,
	}
	if err := n.store.SaveNotification(ctx, rec); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	n.mu.Lock()
	n.pending[rec.MessageID] = rec
	n.mu.Unlock()
	return rec, nil
}

// Cancel removes a pending notification owned by userID.
func (n *Notifier) Cancel(ctx context.Context, userID, messageID snowflake.ID) error {
	n.mu.Lock()
	rec, ok := n.pending[messageID]
	if !ok || rec.UserID != userID {
		n.mu.Unlock()
		return ErrNotFound
	}
	delete(n.pending, messageID)
	n.mu.Unlock()

	if _, err := n.store.DeleteNotification(ctx, messageID); err != nil {
		n.mu.Lock()
		n.pending[messageID] = rec
		n.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	return nil
}

// Pending returns every tracked notification ordered by due time.
func (n *Notifier) Pending() []Notification {
	return n.filter(func(Notification) bool { return true })
}

func (n *Notifier) PendingFor(userID snowflake.ID) []Notification {
	return n.filter(func(r Notification) bool { return r.UserID == userID })
}

func (n *Notifier) filter(keep func(Notification) bool) []Notification {
	n.mu.Lock()
	out := make([]Notification, 0, len(n.pending))
	for _, r := range n.pending {
		if keep(r) {
			out = append(out, r)
		}
	}
	n.mu.Unlock()
	slices.SortFunc(out, func(a, b Notification) int { return a.NotifyAt.Compare(b.NotifyAt) })
	return out
}

// Sweep delivers every notification that is due. A due notification is
// claimed by taking it out of memory, so it is sent at most once per process.
// Its row stays in the store until delivery succeeds or it is dead-lettered;
// failed attempts are counted on the row and retried next sweep.
func (n *Notifier) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := n.now()

	n.mu.Lock()
	var due []Notification
	for id, r := range n.pending {
		if !r.NotifyAt.After(now) {
			due = append(due, r)
			delete(n.pending, id)
		}
	}
	n.mu.Unlock()

	slices.SortFunc(due, func(a, b Notification) int { return a.NotifyAt.Compare(b.NotifyAt) })

	for _, r := range due {
		if ctx.Err() != nil {
			n.restore(r)
			report.Skipped++
			continue
		}

		err := n.deliverer.Deliver(ctx, r)
		if err == nil {
			n.forget(ctx, r)
			report.Delivered++
			continue
		}

		r.Attempts++
		if r.Attempts >= n.cfg.MaxAttempts {
			n.log.Error(fmt.Sprintf("Dropping notification %s for user %s after %d failed attempts: %v",
				r.MessageID, r.UserID, r.Attempts, err))
			n.forget(ctx, r)
			report.DeadLetters++
			continue
		}

		n.log.Warn(fmt.Sprintf("Delivery of notification %s failed (attempt %d/%d): %v",
			r.MessageID, r.Attempts, n.cfg.MaxAttempts, err))
		if serr := n.store.SaveNotification(context.WithoutCancel(ctx), r); serr != nil {
			n.log.Warn(fmt.Sprintf("Could not record attempt for notification %s: %v", r.MessageID, serr))
		}
		n.restore(r)
		report.Retrying++
	}
	return report
}

// forget removes a finished notification from the store. A row that cannot
// be removed is delivered again after a restart.
func (n *Notifier) forget(ctx context.Context, r Notification) {
	if _, err := n.store.DeleteNotification(context.WithoutCancel(ctx), r.MessageID); err != nil {
		n.log.Warn(fmt.Sprintf("Could not remove notification %s: %v", r.MessageID, err))
	}
}

func (n *Notifier) restore(r Notification) {
	n.mu.Lock()
	if _, exists := n.pending[r.MessageID]; !exists {
		n.pending[r.MessageID] = r
	}
	n.mu.Unlock()
}

// Run sweeps every interval until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := n.Sweep(ctx)
			if report.Delivered+report.DeadLetters+report.Retrying > 0 {
				n.log.Debug(fmt.Sprintf("Notification sweep: %d delivered, %d retrying, %d dropped",
					report.Delivered, report.Retrying, report.DeadLetters))
			}
		}
	}
}

