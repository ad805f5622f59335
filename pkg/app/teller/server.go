// Package teller implements app.Runner for the teller service process.
package teller

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/chainsafe/vault-teller/internal/metrics"
	apphttp "github.com/chainsafe/vault-teller/pkg/app/http"
	"github.com/chainsafe/vault-teller/pkg/auth"
	"github.com/chainsafe/vault-teller/pkg/config"
	"github.com/chainsafe/vault-teller/pkg/db"
	"github.com/chainsafe/vault-teller/pkg/ethereum"
	"github.com/chainsafe/vault-teller/pkg/pgutil"
	"github.com/chainsafe/vault-teller/pkg/registry"
	"github.com/chainsafe/vault-teller/pkg/teller"
	"github.com/chainsafe/vault-teller/pkg/transport/loopback"
)

// Server holds cfg to init the teller server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new teller Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run starts the teller service and blocks until an OS shutdown signal
// is received or a fatal server error occurs.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("teller server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting vault teller",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Uint64("local_selector", cfg.Teller.LocalChainSelector),
		zap.String("local_teller", cfg.Teller.LocalTellerAddress),
		zap.String("transport", cfg.Transport.Mode))

	dbBun, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = dbBun.Close() }()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	store := db.NewStore(dbBun)
	reg := registry.NewRegistry(store, logger)

	chains, err := reg.List(ctx)
	if err != nil {
		return fmt.Errorf("load chain registry: %w", err)
	}
	metrics.RegistryChains.Set(float64(len(chains)))
	logger.Info("Chain registry loaded", zap.Int("chains", len(chains)))

	vault, ethClient, err := s.buildVault(logger)
	if err != nil {
		return err
	}
	if ethClient != nil {
		defer ethClient.Close()
	}

	receiver := teller.NewReceiver(store, reg, vault, logger)

	transport, err := s.buildTransport(ethClient, receiver, logger)
	if err != nil {
		return err
	}

	core := teller.NewTeller(cfg.Teller, store, reg, vault, transport, logger)
	service := teller.NewLog(core, logger)

	if cfg.Auth.AllowUnauthenticatedCaller {
		logger.Warn("Unauthenticated callers may name themselves in request bodies; local development only")
	}
	if cfg.Transport.RelayerAddress != "" {
		logger.Info("Inbound deliveries must be signed",
			zap.String("relayer", cfg.Transport.RelayerAddress))
	}

	router := s.setupRouter(dbBun, service, receiver, store, reg, logger)

	sweeper := teller.NewSweeper(cfg.Teller, store, logger)
	sweeper.Start(ctx)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop background work before the deferred DB and client closes kick in.
	sweeper.Stop()

	return err
}

// buildVault selects the share ledger for the configured transport mode.
// Router mode drives the on-chain vault; loopback mode keeps an
// in-memory ledger so the service runs without an EVM node.
func (s *Server) buildVault(logger *zap.Logger) (teller.Vault, *ethereum.Client, error) {
	switch s.cfg.Transport.Mode {
	case config.TransportModeLoopback:
		return loopback.NewVault(logger), nil, nil

	case config.TransportModeRouter:
		client, err := ethereum.NewClient(s.cfg.Ethereum, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize ethereum client: %w", err)
		}
		vault, err := ethereum.NewVaultClient(client, logger)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("initialize vault client: %w", err)
		}
		return vault, client, nil

	default:
		return nil, nil, fmt.Errorf("unsupported transport mode %q", s.cfg.Transport.Mode)
	}
}

// buildTransport selects the outbound message transport. The loopback
// transport needs the receiver because it settles sends in-process.
func (s *Server) buildTransport(ethClient *ethereum.Client, receiver *teller.Receiver, logger *zap.Logger) (teller.Transport, error) {
	switch s.cfg.Transport.Mode {
	case config.TransportModeLoopback:
		logger.Info("Loopback transport enabled; outbound sends settle locally")
		return loopback.New(s.cfg.Teller, receiver, logger), nil

	case config.TransportModeRouter:
		transport, err := ethereum.NewRouterTransport(ethClient, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize router transport: %w", err)
		}
		return transport, nil

	default:
		return nil, fmt.Errorf("unsupported transport mode %q", s.cfg.Transport.Mode)
	}
}

func (s *Server) setupRouter(
	dbBun *bun.DB,
	service teller.Service,
	receiver *teller.Receiver,
	store teller.Store,
	reg *registry.Registry,
	logger *zap.Logger,
) chi.Router {
	cfg := s.cfg

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout.Std()))

	// Health check (liveness)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Readiness, gated on database reachability
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := dbBun.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.String("path", "/metrics"))
	}

	authMW := auth.NewMiddleware(cfg.Auth, logger)
	opts := teller.HTTPOptions{
		RelayerAddress:             common.HexToAddress(cfg.Transport.RelayerAddress),
		AllowUnauthenticatedCaller: cfg.Auth.AllowUnauthenticatedCaller,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW.Authenticate)
		registry.RegisterRoutes(r, reg, logger)
		teller.RegisterRoutes(r, service, receiver, store, opts, logger)
	})

	return r
}
