package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"

	"github.com/fleetwatch/fleetwatch/internal/metrics"
)

// Listener holds a dedicated, non-pooled connection subscribed to a
// notification channel and forwards wakeups to subscribers. The connection is
// deliberately separate from the pool: LISTEN binds to a session, and a pooled
// connection could be handed to another query between notifications.
//
// Listener is an accelerator only. Callers must keep polling on a timer, so a
// dropped connection degrades to poll latency instead of losing evaluations.
type Listener struct {
	connString string
	channel    string
	logger     *slog.Logger

	wake chan string
}

// NewListener creates a Listener for the given channel. Wake returns the
// channel that receives notification payloads.
func NewListener(connString, channel string, logger *slog.Logger) *Listener {
	return &Listener{
		connString: connString,
		channel:    channel,
		logger:     logger,
		// Buffer of one: a pass is a full sweep, so pending wakeups coalesce.
		wake: make(chan string, 1),
	}
}

// Wake returns the channel notification payloads are delivered on.
func (l *Listener) Wake() <-chan string {
	return l.wake
}

// Run connects and listens until ctx is canceled, reconnecting with
// exponential backoff on any connection failure.
func (l *Listener) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry forever

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		next := bo.NextBackOff()
		l.logger.Warn("notify listener disconnected, reconnecting",
			"channel", l.channel,
			"error", err,
			"retry_in", next,
		)
		metrics.ListenerReconnectsTotal.Inc()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(next):
		}
	}
}

// listen holds one connection for its lifetime, delivering notifications until
// the connection breaks or ctx is canceled.
func (l *Listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.connString)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}

	l.logger.Info("notify listener connected", "channel", l.channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		metrics.ListenerNotificationsTotal.Inc()

		// Non-blocking send: if a wakeup is already pending the next pass
		// covers this notification too.
		select {
		case l.wake <- notification.Payload:
		default:
		}
	}
}
