package tether

import (
	"github.com/vango-dev/tether/pkg/debounce"
	"github.com/vango-dev/tether/pkg/listen"
	"github.com/vango-dev/tether/pkg/timer"
)

// config collects runtime configuration applied by Configure.
type config struct {
	scheduler        timer.Scheduler
	debounceRecorder debounce.Recorder
	listenRecorder   listen.Recorder
	middleware       debounce.Middleware
}

// ConfigOption configures the default runtime.
type ConfigOption func(*config)

// WithScheduler sets the timer service used for debouncing. Defaults
// to the wall clock.
func WithScheduler(s timer.Scheduler) ConfigOption {
	return func(c *config) { c.scheduler = s }
}

// WithDebounceRecorder sets the coordinator's activity recorder, e.g.
// instrument.NewMetrics().
func WithDebounceRecorder(r debounce.Recorder) ConfigOption {
	return func(c *config) { c.debounceRecorder = r }
}

// WithSubscriptionRecorder sets the ledger's activity recorder.
func WithSubscriptionRecorder(r listen.Recorder) ConfigOption {
	return func(c *config) { c.listenRecorder = r }
}

// WithDebounceMiddleware wraps every debounced task invocation, e.g.
// instrument.OTel().
func WithDebounceMiddleware(mw debounce.Middleware) ConfigOption {
	return func(c *config) { c.middleware = mw }
}
