// tether-bench exercises the debounce coordinator and subscription
// ledger under load, exposing Prometheus metrics and a websocket event
// hub while it runs.
package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/tether"
	"github.com/vango-dev/tether/pkg/debounce"
	"github.com/vango-dev/tether/pkg/instrument"
	"github.com/vango-dev/tether/pkg/listen"
	"github.com/vango-dev/tether/pkg/remote"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		owners   int
		interval time.Duration
		delay    time.Duration
		duration time.Duration
		addr     string
	)

	cmd := &cobra.Command{
		Use:   "tether-bench",
		Short: "Load-test owner-scoped debouncing and subscriptions",
		Long: `tether-bench spins up a set of owners, storms each one's debounced
task, and broadcasts events through a websocket hub. While running it
serves /metrics (Prometheus) and /events (websocket hub) on --addr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(benchConfig{
				owners:   owners,
				interval: interval,
				delay:    delay,
				duration: duration,
				addr:     addr,
			})
		},
	}

	cmd.Flags().IntVar(&owners, "owners", 100, "number of concurrent owners")
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Millisecond, "mean time between schedule calls per owner")
	cmd.Flags().DurationVar(&delay, "delay", 50*time.Millisecond, "debounce delay")
	cmd.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run")
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address for /metrics and /events")
	return cmd
}

type benchConfig struct {
	owners   int
	interval time.Duration
	delay    time.Duration
	duration time.Duration
	addr     string
}

// lifetime renames the embedded *tether.Scope field so the promoted
// Scope() method is not shadowed and *worker satisfies scope.Owner.
type lifetime = tether.Scope

// worker is the owner under load; Flush is the debounced task.
type worker struct {
	*lifetime
	mu      sync.Mutex
	flushes int
}

func (w *worker) Flush(seq int) {
	w.mu.Lock()
	w.flushes++
	w.mu.Unlock()
}

func (w *worker) FlushCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushes
}

func runBench(cfg benchConfig) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	metrics := instrument.NewMetrics()
	coordinator := debounce.NewCoordinator(
		debounce.WithRecorder(metrics),
		debounce.WithMiddleware(instrument.OTel()),
	)
	ledger := listen.NewLedger(listen.WithRecorder(metrics))
	hub := remote.NewHub(remote.WithHubLogger(logger))

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/events", hub)

	srv := &http.Server{Addr: cfg.addr, Handler: r}
	go func() {
		logger.Info("serving", "addr", cfg.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()
	defer srv.Close()

	workers := make([]*worker, cfg.owners)
	button := tether.NewEmitter()
	for i := range workers {
		w := &worker{lifetime: tether.NewScope(nil)}
		workers[i] = w
		if err := ledger.Subscribe(w, button, "tick", func(tether.Event) {}); err != nil {
			return err
		}
	}

	logger.Info("storming", "owners", cfg.owners, "interval", cfg.interval, "delay", cfg.delay, "duration", cfg.duration)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			seq := 0
			for {
				select {
				case <-stop:
					return
				case <-time.After(jitter(cfg.interval)):
				}
				seq++
				if err := coordinator.Schedule(w, "Flush", cfg.delay, seq); err != nil {
					logger.Error("schedule failed", "error", err)
					return
				}
			}
		}(w)
	}

	// Broadcast hub events and local emitter ticks while the storm runs.
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				button.Emit("tick", t.UnixMilli())
				hub.Broadcast("tick", t.UnixMilli())
			}
		}
	}()

	time.Sleep(cfg.duration)
	close(stop)
	wg.Wait()
	<-broadcastDone

	// Let trailing debounces drain, then dispose everything.
	time.Sleep(2 * cfg.delay)
	total := 0
	for _, w := range workers {
		total += w.FlushCount()
		w.Dispose()
	}

	logger.Info("done", "flushes", total, "hub_conns", hub.ConnCount())
	return nil
}

// jitter spreads d by ±50% so owners do not storm in lockstep.
func jitter(d time.Duration) time.Duration {
	return d/2 + time.Duration(rand.Int63n(int64(d)))
}
