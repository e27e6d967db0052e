package cache

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"time"

	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

// backoff retries cache round trips that failed on the network. Rollups
// never depend on the cache, so a shared Redis that stays unreachable only
// costs a recomputation once the attempts are spent.
type backoff struct {
	attempts int
	delay    time.Duration // first delay; doubles after each attempt
}

var defaultBackoff = backoff{attempts: 3, delay: 100 * time.Millisecond}

// transient reports whether err is a dropped or timed-out connection.
func transient(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr) ||
		stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, io.ErrUnexpectedEOF)
}

// do runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. The last transient failure is wrapped as
// INTERNAL_ERROR naming the cache operation.
func (b backoff) do(ctx context.Context, op string, fn func() error) error {
	delay := b.delay
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !transient(err) {
			return err
		}
		if attempt >= b.attempts {
			return errors.Wrap(errors.ErrCodeInternal, err, "cache %s failed after %d attempts", op, attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			delay *= 2
		}
	}
}
