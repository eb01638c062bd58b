package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/chatcore/internal/config"
	"github.com/vovakirdan/chatcore/internal/core"
	"github.com/vovakirdan/chatcore/internal/metrics"
	"github.com/vovakirdan/chatcore/internal/repl"
	"github.com/vovakirdan/chatcore/internal/simulation"
)

// App wires the broker to its drivers and the optional metrics endpoint.
// An App runs once: the broker is closed when Run returns.
type App struct {
	cfg             config.Config
	broker          *core.Broker
	registry        *prometheus.Registry
	metricsServer   *stdhttp.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application. Delivered chat lines are written to chatOut.
func New(cfg config.Config, logger *zerolog.Logger, chatOut io.Writer) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(reg)

	sink := core.NewWriterSink(chatOut)
	broker := core.NewBroker(
		core.WithLogger(logger),
		core.WithBufferSize(cfg.RoomBuffer),
		core.WithTranscript(cfg.Transcript),
		core.WithRecorder(recorder),
		core.WithSinkFactory(func(_, user string) core.Sink { return sink.For(user) }),
	)

	a := &App{
		cfg:             cfg,
		broker:          broker,
		registry:        reg,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}

	if cfg.MetricsAddr != "" {
		mux := stdhttp.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		a.metricsServer = &stdhttp.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return a
}

// Broker returns the application's broker.
func (a *App) Broker() *core.Broker {
	return a.broker
}

// Registry returns the Prometheus registry holding broker metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Run serves metrics (when configured) while fn drives the broker, and blocks
// until fn returns, ctx is cancelled, or the metrics server fails.
func (a *App) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	if a.metricsServer != nil {
		g.Go(func() error {
			a.log.Info().Str("addr", a.metricsServer.Addr).Msg("serving metrics")
			if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down metrics server")
			return a.metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})

	err := g.Wait()
	a.cleanup()
	return err
}

// Simulate runs the randomized simulation driver.
func (a *App) Simulate(ctx context.Context) (simulation.Stats, error) {
	var stats simulation.Stats
	err := a.Run(ctx, func(ctx context.Context) error {
		sim := simulation.New(a.broker, simulation.Options{
			Duration:       a.cfg.Simulation.Duration,
			Tick:           a.cfg.Simulation.Tick,
			Seed:           a.cfg.Simulation.Seed,
			CreateAttempts: a.cfg.Simulation.CreateAttempts,
		}, a.log)

		var err error
		stats, err = sim.Run(ctx)
		return err
	})
	return stats, err
}

// Console runs the interactive console driver reading commands from in.
func (a *App) Console(ctx context.Context, in io.Reader, out io.Writer) error {
	return a.Run(ctx, func(ctx context.Context) error {
		return repl.New(a.broker, out, a.log).Run(ctx, in)
	})
}

// cleanup closes the broker and waits for its delivery tasks.
func (a *App) cleanup() {
	a.broker.Close()
	a.log.Info().Msg("broker closed")
}
