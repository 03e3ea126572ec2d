// Command "server" samples the light sensor, averages every channel and
// fans the averages out to the display, the history log and the broker.
//
// Usage:
//
//	server [<flags>]
//
// Flags:
//
//	-c, --config=path  YAML config file (environment variables override it)
//	-v, --verbose      enable debug logging
//	-J, --log-json     log JSON to stderr instead of console output
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	getopt "github.com/pborman/getopt/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/quentinrf/luxpipe/internal/adapters/display"
	grpcAdapter "github.com/quentinrf/luxpipe/internal/adapters/grpc"
	"github.com/quentinrf/luxpipe/internal/adapters/memory"
	"github.com/quentinrf/luxpipe/internal/adapters/mock"
	"github.com/quentinrf/luxpipe/internal/adapters/mqtt"
	"github.com/quentinrf/luxpipe/internal/adapters/sqlite"
	"github.com/quentinrf/luxpipe/internal/adapters/veml6030"
	"github.com/quentinrf/luxpipe/internal/config"
	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/internal/metrics"
	"github.com/quentinrf/luxpipe/internal/ports"
	"github.com/quentinrf/luxpipe/pkg/luxapi"
	"github.com/quentinrf/luxpipe/pkg/tlsconfig"
)

var (
	flagConfig  string
	flagVerbose bool
	flagLogJSON bool
)

func init() {
	getopt.FlagLong(&flagConfig, "config", 'c', "path to YAML config file")
	getopt.FlagLong(&flagVerbose, "verbose", 'v', "enable debug logging")
	getopt.FlagLong(&flagLogJSON, "log-json", 'J', "log JSON to stderr")
}

func main() {
	getopt.Parse()
	initLogging()

	log.Info().Msg("starting luxpipe")

	cfg, err := config.Load(flagConfig)
	if err != nil {
		log.Fatal().Err(err).Str("config", flagConfig).Msg("invalid configuration")
	}

	m := metrics.New()
	m.MustRegister(prometheus.DefaultRegisterer)

	// A history store that fails to open disables the history sinks; the
	// read API then serves an empty in-memory store.
	repo, closeRepo, err := openRepository(cfg)
	historyEnabled := err == nil
	if err != nil {
		log.Error().Err(err).Str("db_path", cfg.DBPath).Msg("history store unavailable; history disabled")
		repo, closeRepo = memory.NewReadingRepository(), noClose
	}

	healthServer := health.NewServer()
	board := display.NewBoard(healthServer)
	dispatcher := ports.NewDispatcher(cfg.SinkTimeout, m)
	publisher := openBroker(cfg, m)

	channels, err := registerChannels(cfg, dispatcher, board, historyRepo(repo, historyEnabled), publisher, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create channels")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if publisher != nil {
		publisher.Start(ctx)
	}

	// Start background poller. Without a sensor the rest of the service
	// keeps running and every channel shows as not responding.
	var sensor ports.LightSensor
	pollerDone := make(chan struct{})
	sensor, err = openSensor(cfg)
	if err != nil {
		log.Error().Err(err).Msg("sensor initialization failed; polling disabled")
		for _, ch := range cfg.ChannelIDs() {
			_ = board.MarkUnavailable(ctx, ch, err, time.Now())
		}
		close(pollerDone)
	} else {
		poller := ports.NewPoller(sensor, channels, board, dispatcher, cfg.PollInterval, m)
		if historyEnabled && cfg.Retention > 0 && hasHistory(cfg) {
			poller.EnableRetention(repo, cfg.Retention)
		}
		go func() {
			defer close(pollerDone)
			poller.Start(ctx)
		}()
	}

	grpcServer := newGRPCServer(cfg, repo, board, healthServer)
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to listen")
	}
	log.Info().Str("port", cfg.Port).Msg("gRPC server listening")

	go func() {
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatal().Err(err).Msg("failed to serve")
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddress)

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	// The poller finishes its running tick and the dispatcher drains it
	// before anything it writes to is closed.
	<-pollerDone

	var errs *multierror.Error

	healthServer.Shutdown()
	grpcServer.GracefulStop()

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = multierror.Append(errs, metricsServer.Shutdown(shutdownCtx))
		cancel()
	}
	if publisher != nil {
		errs = multierror.Append(errs, publisher.Close())
	}
	if sensor != nil {
		errs = multierror.Append(errs, sensor.Close())
	}
	errs = multierror.Append(errs, closeRepo())

	for key, st := range dispatcher.Stats() {
		log.Info().
			Str("sink", key).
			Uint64("delivered", st.Delivered).
			Uint64("failed", st.Failed).
			Msg("sink stats")
	}

	if err := errs.ErrorOrNil(); err != nil {
		log.Error().Err(err).Msg("errors during shutdown")
	}
	log.Info().Msg("server stopped")
}

func initLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if flagVerbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if flagLogJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func openRepository(cfg config.Config) (domain.ReadingRepository, func() error, error) {
	switch cfg.RepoType {
	case config.RepoSQLite:
		r, err := sqlite.NewReadingRepository(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open SQLite database %s: %w", cfg.DBPath, err)
		}
		log.Info().Str("db_path", cfg.DBPath).Msg("initialized SQLite repository")
		return r, r.Close, nil
	default:
		log.Info().Msg("initialized in-memory repository")
		return memory.NewReadingRepository(), noClose, nil
	}
}

func noClose() error { return nil }

// historyRepo is the store history sinks write to, nil when history is off.
func historyRepo(repo domain.ReadingRepository, enabled bool) domain.ReadingRepository {
	if !enabled {
		return nil
	}
	return repo
}

// registerChannels creates the channel states and registers each channel's
// sinks. History sinks are skipped when history is nil, broker sinks when
// publisher is nil.
func registerChannels(cfg config.Config, dispatcher *ports.Dispatcher, board *display.Board, history domain.ReadingRepository, publisher *mqtt.Publisher, m *metrics.Metrics) ([]*domain.Channel, error) {
	channels := make([]*domain.Channel, 0, len(cfg.Channels))
	for _, cc := range cfg.Channels {
		ch, err := domain.NewChannel(cc.Name, cfg.WindowSize, cfg.PublishPeriod)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", cc.Name, err)
		}
		channels = append(channels, ch)

		withHistory := cc.History && history != nil
		withBroker := cc.Broker && publisher != nil

		dispatcher.Register(cc.Name, ports.NewDisplaySink(board))
		if withHistory {
			dispatcher.Register(cc.Name, ports.NewHistorySink(history))
		}
		if withBroker {
			dispatcher.Register(cc.Name, ports.NewBrokerSink(publisher, cc.Topic, m))
		}

		log.Info().
			Str("channel", cc.Name.String()).
			Bool("history", withHistory).
			Bool("broker", withBroker).
			Str("topic", cc.Topic).
			Msg("registered channel")
	}
	return channels, nil
}

func openSensor(cfg config.Config) (ports.LightSensor, error) {
	switch cfg.Sensor.Type {
	case config.SensorVEML6030:
		s, err := veml6030.Open(cfg.Sensor.Adapter, cfg.Sensor.Address)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		log.Info().
			Float64("base", cfg.Sensor.MockBase).
			Float64("variation", cfg.Sensor.MockVariation).
			Float64("fail_rate", cfg.Sensor.MockFailRate).
			Msg("initialized mock sensor")
		s := mock.NewFakeSensor(cfg.Sensor.MockBase, cfg.Sensor.MockVariation)
		s.SetFailureRate(cfg.Sensor.MockFailRate)
		return s, nil
	}
}

// openBroker returns nil when the broker is disabled or unusable.
func openBroker(cfg config.Config, m *metrics.Metrics) *mqtt.Publisher {
	if !cfg.Broker.Enabled {
		return nil
	}
	if cfg.Broker.URL == "" {
		log.Warn().Msg("broker enabled but no URL configured; broker sink disabled")
		return nil
	}

	var tlsCfg *tls.Config
	if cfg.Broker.TLS.Configured() {
		var err error
		tlsCfg, err = tlsconfig.LoadClientTLS(cfg.Broker.TLS.Cert, cfg.Broker.TLS.Key, cfg.Broker.TLS.CA)
		if err != nil {
			log.Error().Err(err).Msg("failed to load broker TLS config; broker sink disabled")
			return nil
		}
	}

	p, err := mqtt.NewPublisher(mqtt.Config{
		URL:      cfg.Broker.URL,
		ClientID: cfg.Broker.ClientID,
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
		TLS:      tlsCfg,
	}, m)
	if err != nil {
		log.Warn().Err(err).Msg("invalid broker configuration; broker sink disabled")
		return nil
	}
	return p
}

func newGRPCServer(cfg config.Config, repo domain.ReadingRepository, board *display.Board, hs *health.Server) *grpc.Server {
	var serverOpts []grpc.ServerOption
	if cfg.TLS.Enabled() {
		tlsCfg, err := tlsconfig.LoadServerTLS(cfg.TLS.Cert, cfg.TLS.Key, cfg.TLS.CA)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load TLS config")
		}
		serverOpts = append(serverOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
		log.Info().Msg("mTLS enabled")
	} else {
		log.Warn().Msg("TLS_CERT not set, starting without TLS (dev mode only)")
	}

	handler := grpcAdapter.NewLightServiceHandler(repo, board, cfg.ChannelIDs())

	grpcServer := grpc.NewServer(serverOpts...)
	luxapi.RegisterLightServiceServer(grpcServer, handler)
	healthpb.RegisterHealthServer(grpcServer, hs)

	return grpcServer
}

func startMetricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics server listening")

	return srv
}

func hasHistory(cfg config.Config) bool {
	for _, cc := range cfg.Channels {
		if cc.History {
			return true
		}
	}
	return false
}
