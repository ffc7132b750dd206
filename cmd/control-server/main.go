package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/refraction-simulator/core"
	"github.com/signalsfoundry/refraction-simulator/internal/control"
	"github.com/signalsfoundry/refraction-simulator/internal/logging"
	"github.com/signalsfoundry/refraction-simulator/internal/observability"
	sim "github.com/signalsfoundry/refraction-simulator/internal/sim/state"
	"github.com/signalsfoundry/refraction-simulator/timectrl"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// Config holds the control server's flags.
type Config struct {
	ListenAddress  string
	MetricsAddress string
	ScenePath      string
	LogLevel       string
	LogFormat      string
	// FrameLoop, when set, traces frames in the background at the frame
	// limiter's rate so metrics and GetApparentSource stay fresh without
	// clients calling RenderFrame.
	FrameLoop bool
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the control gRPC server listens on")
	flag.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	flag.StringVar(&cfg.ScenePath, "scene", "", "path to a JSON scene file (defaults to the built-in scene)")
	flag.BoolVar(&cfg.FrameLoop, "frame-loop", true, "trace frames continuously in the background")
	envLog := logging.ConfigFromEnv()
	flag.StringVar(&cfg.LogLevel, "log-level", envLog.Level, "debug, info, warn or error")
	flag.StringVar(&cfg.LogFormat, "log-format", envLog.Format, "text or json")
	flag.Parse()

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, AddSource: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "control server failed", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the control API on lis until ctx is cancelled.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewSimCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddress, collector, log)

	engine, err := buildEngine(cfg.ScenePath, log)
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := []sim.SimulationStateOption{sim.WithMetricsRecorder(collector)}
	// RenderFrame requests and the background loop read the same clock so
	// the frame limiter sees one timeline.
	var tc *timectrl.TimeController
	if cfg.FrameLoop {
		tc = newFrameClock()
		opts = append(opts, sim.WithClock(tc))
	}
	state := sim.NewSimulationState(engine, log, opts...)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			control.RequestIDUnaryServerInterceptor(log),
			control.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	control.RegisterControlServer(server, control.NewService(state, log))

	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	var loopDone <-chan struct{}
	if tc != nil {
		loopDone = runFrameLoop(loopCtx, tc, state, log)
	}

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting control gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		serveErr <- server.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("grpc serve: %w", err)
		}
	}

	log.Info(context.Background(), "shutting down control server")
	cancelLoop()
	if loopDone != nil {
		<-loopDone
	}
	server.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func buildEngine(path string, log logging.Logger) (*core.SimulationEngine, error) {
	scene := core.DefaultSceneConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open scene %q: %w", path, err)
		}
		defer f.Close()
		if scene, err = core.LoadSceneConfig(f); err != nil {
			return nil, fmt.Errorf("load scene %q: %w", path, err)
		}
		log.Info(context.Background(), "loaded scene", logging.String("path", path))
	}
	engine, err := core.NewEngineFromScene(scene, core.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	return engine, nil
}

func newFrameClock() *timectrl.TimeController {
	return timectrl.NewTimeController(time.Now(), timectrl.DefaultFrameInterval, timectrl.RealTime)
}

// runFrameLoop ticks tc at the frame limiter's rate until ctx is cancelled.
// state should already use tc as its clock.
func runFrameLoop(ctx context.Context, tc *timectrl.TimeController, state *sim.SimulationState, log logging.Logger) <-chan struct{} {
	state.AttachTimeController(ctx, tc, nil)
	log.Info(ctx, "background frame loop started", logging.Duration("interval", tc.Tick))
	return tc.Start(ctx, 0)
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
