package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ctx.Done():
			return
		case <-ch:
			cancel()
		}
	}()

	return ctx, cancel
}

// Closer is a named cleanup step run in reverse registration order.
type Closer struct {
	steps []step
}

type step struct {
	name string
	fn   func(context.Context) error
}

func (c *Closer) Add(name string, fn func(context.Context) error) {
	c.steps = append(c.steps, step{name: name, fn: fn})
}

// Close runs every step even if an earlier one fails and reports the names
// of the steps that failed.
func (c *Closer) Close(ctx context.Context, report func(name string, err error)) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		s := c.steps[i]
		if err := s.fn(ctx); err != nil && report != nil {
			report(s.name, err)
		}
	}
	c.steps = nil
}
