// Command gnosisvpnd is the mixnet VPN control daemon: it brokers an
// on-demand mixnet + WireGuard tunnel to a configured exit node through a
// configured entry node, and exposes a UNIX control socket plus a
// Prometheus metrics endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gnosisvpn/gnosisvpnd/internal/config"
	"github.com/gnosisvpn/gnosisvpnd/internal/control"
	"github.com/gnosisvpn/gnosisvpnd/internal/engine"
	"github.com/gnosisvpn/gnosisvpnd/internal/peerid"
	"github.com/gnosisvpn/gnosisvpnd/internal/session"
	"github.com/gnosisvpn/gnosisvpnd/internal/statestore"
	appversion "github.com/gnosisvpn/gnosisvpnd/internal/version"
	"github.com/gnosisvpn/gnosisvpnd/internal/vpnmetrics"
	"github.com/gnosisvpn/gnosisvpnd/internal/wireguard"
)

// Process exit codes reflect startup-failure categories (spec.md §6);
// normal shutdown returns exitOK.
const (
	exitOK = iota
	// exitConfigError covers config load/validate failures.
	exitConfigError
	// exitStateError covers persistent-state I/O failures.
	exitStateError
	// exitSocketError covers control socket and metrics listener bind or
	// permission failures.
	exitSocketError
)

// shutdownTimeout bounds graceful HTTP server drain on shutdown.
const shutdownTimeout = 10 * time.Second

// configPathEnv overrides the default config path.
const configPathEnv = "GNOSISVPN_CONFIG_PATH"

// defaultConfigPath is the default config file location (spec.md §6).
const defaultConfigPath = "/etc/gnosisvpn/config.toml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", resolveConfigPath(), "path to configuration file (TOML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return exitConfigError
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(parseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("gnosisvpnd starting",
		slog.String("version", appversion.Version),
		slog.String("config_path", *configPath),
		slog.String("socket_path", control.SocketPath()),
	)

	store, err := statestore.Open()
	if err != nil {
		logger.Error("failed to open state store", slog.String("error", err.Error()))
		return exitStateError
	}

	reg := prometheus.NewRegistry()

	wgCap, wgIssues := wireguard.Select(context.Background(), wireguard.DefaultCandidates())
	for _, issue := range wgIssues {
		logger.Warn("wireguard variant unavailable",
			slog.String("variant", issue.Variant),
			slog.String("error", issue.Err.Error()),
		)
	}

	if wgCap == nil {
		logger.Warn("no wireguard variant available, programming will be skipped")
	} else {
		logger.Info("wireguard variant selected", slog.String("variant", wgCap.Name()))
	}

	collector := vpnmetrics.NewCollector(reg)

	reducer := engine.NewReducer(logger, wgCap, collector)

	if err := primeReducer(reducer, cfg, store, wgCap, logger); err != nil {
		logger.Error("failed to apply startup configuration", slog.String("error", err.Error()))
		return exitConfigError
	}

	if err := runServers(cfg, reducer, reg, logger, *configPath); err != nil {
		logger.Error("gnosisvpnd exited with error", slog.String("error", err.Error()))
		return exitSocketError
	}

	logger.Info("gnosisvpnd stopped")
	return exitOK
}

// primeReducer posts the startup WireGuard parameters and, if configured,
// the initial EntryNode/ExitNode commands onto the reducer's Inbound
// channel. Persists a freshly generated private key when none was loaded
// from the state store and none is configured (spec.md §4.8).
func primeReducer(r *engine.Reducer, cfg *config.Config, store *statestore.Store, wgCap wireguard.Capability, logger *slog.Logger) error {
	privateKey, err := resolveWireGuardPrivateKey(cfg, store, wgCap)
	if err != nil {
		return fmt.Errorf("resolve wireguard private key: %w", err)
	}

	wgParams := engine.WireGuardParams{PrivateKey: privateKey}
	if cfg.WireGuard != nil {
		wgParams.Address = cfg.WireGuard.Address
		wgParams.AllowedIPs = cfg.WireGuard.AllowedIPs
		wgParams.ServerPublicKey = cfg.WireGuard.ServerPublicKey
		wgParams.PresharedKey = cfg.WireGuard.PresharedKey
	}

	r.Inbound <- engine.EventEnvelope{WireGuard: &wgParams}
	r.Inbound <- engine.EventEnvelope{SessionDefaults: sessionDefaultsParams(cfg)}

	if cfg.EntryNode != nil && cfg.EntryNode.Endpoint != "" {
		params, err := entryNodeParams(cfg)
		if err != nil {
			return fmt.Errorf("entry node config: %w", err)
		}

		r.Inbound <- engine.EventEnvelope{Command: &engine.CommandEvent{Kind: engine.CommandEntryNode, EntryNode: params}}
	}

	if cfg.Connection != nil && cfg.Connection.Destination != "" {
		id, err := peerid.Parse(cfg.Connection.Destination)
		if err != nil {
			return fmt.Errorf("connection.destination: %w", err)
		}

		r.Inbound <- engine.EventEnvelope{Command: &engine.CommandEvent{Kind: engine.CommandExitNode, ExitNodeID: id}}
	}

	logger.Debug("startup configuration applied")

	return nil
}

// resolveWireGuardPrivateKey prefers an explicitly configured private key,
// falls back to one persisted from a prior run, and otherwise generates
// and persists a fresh one if a WireGuard capability is available
// (spec.md §4.8, state-file schema per §6).
func resolveWireGuardPrivateKey(cfg *config.Config, store *statestore.Store, wgCap wireguard.Capability) (string, error) {
	if cfg.WireGuard != nil && cfg.WireGuard.PrivateKey != "" {
		return cfg.WireGuard.PrivateKey, nil
	}

	persisted, err := store.LoadWireGuardPrivateKey()
	if err != nil {
		return "", fmt.Errorf("load persisted private key: %w", err)
	}

	if persisted != "" {
		return persisted, nil
	}

	if wgCap == nil {
		return "", nil
	}

	generated, err := wgCap.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate private key: %w", err)
	}

	if err := store.SaveWireGuardPrivateKey(generated); err != nil {
		return "", fmt.Errorf("persist private key: %w", err)
	}

	return generated, nil
}

// sessionDefaultsParams builds the session-shaping defaults from
// connection.target/connection.capabilities (spec.md §3), which are
// static config, not EntryNode/ExitNode command fields.
func sessionDefaultsParams(cfg *config.Config) *engine.SessionDefaultsParams {
	params := &engine.SessionDefaultsParams{}

	if cfg.Connection == nil {
		return params
	}

	if cfg.Connection.Target != nil {
		params.Target = session.Target{
			Type: session.TargetType(cfg.Connection.Target.Type),
			Host: cfg.Connection.Target.Host,
			Port: cfg.Connection.Target.Port,
		}
	}

	params.Capabilities = make([]session.Capability, len(cfg.Connection.Capabilities))
	for i, c := range cfg.Connection.Capabilities {
		params.Capabilities[i] = session.Capability(c)
	}

	return params
}

func entryNodeParams(cfg *config.Config) (engine.EntryNodeParams, error) {
	p := engine.EntryNodeParams{
		Endpoint: cfg.EntryNode.Endpoint,
		APIToken: cfg.EntryNode.APIToken,
	}

	if cfg.Connection == nil {
		return p, nil
	}

	p.ListenHost = cfg.Connection.ListenHost

	if cfg.Connection.Path == nil {
		return p, nil
	}

	if cfg.Connection.Path.IntermediateID != nil {
		id, err := peerid.Parse(*cfg.Connection.Path.IntermediateID)
		if err != nil {
			return engine.EntryNodeParams{}, fmt.Errorf("connection.path.intermediate_id: %w", err)
		}

		p.IntermediateID = &id

		return p, nil
	}

	p.Hop = cfg.Connection.Path.Hop

	return p, nil
}

// runServers wires the reducer, control socket, metrics HTTP server and
// config watcher under one errgroup with a signal-aware context, mirroring
// the teacher's runServers lifecycle (cmd/gobfd/main.go).
func runServers(cfg *config.Config, reducer *engine.Reducer, reg *prometheus.Registry, logger *slog.Logger, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reducer.Run(gCtx)
		return nil
	})

	ctl := control.NewServer(control.SocketPath(), reducer, logger)
	if err := ctl.Listen(); err != nil {
		return fmt.Errorf("listen on control socket: %w", err)
	}

	g.Go(func() error {
		logger.Info("control socket listening", slog.String("path", control.SocketPath()))
		return ctl.Serve()
	})

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	watcher, err := startConfigWatcher(gCtx, g, configPath, reducer, logger)
	if err != nil {
		logger.Warn("config watcher disabled", slog.String("error", err.Error()))
	}

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, reducer, ctl, metricsSrv, watcher, logger)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}

	return nil
}

// startConfigWatcher watches configPath for changes, debounced per
// config.DebounceWindow, and re-primes the reducer with the reloaded
// config on every change (spec.md §4.7 ConfigChanged).
func startConfigWatcher(ctx context.Context, g *errgroup.Group, configPath string, reducer *engine.Reducer, logger *slog.Logger) (*config.Watcher, error) {
	if configPath == "" {
		return nil, errors.New("no config path to watch")
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		return nil, err
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil

			case <-watcher.Changed:
				logger.Info("config file changed, reloading")

				newCfg, err := config.Load(configPath)
				if err != nil {
					logger.Error("failed to reload config, keeping current settings",
						slog.String("error", err.Error()),
					)
					continue
				}

				if err := primeReducer(reducer, newCfg, mustStatestore(logger), nil, logger); err != nil {
					logger.Error("failed to apply reloaded config", slog.String("error", err.Error()))
					continue
				}

				reducer.Inbound <- engine.EventEnvelope{ConfigChanged: true}

			case err := <-watcher.Errors:
				logger.Warn("config watcher error", slog.String("error", err.Error()))
			}
		}
	})

	return watcher, nil
}

// mustStatestore reopens the state store for a config reload. Reload never
// needs to persist a freshly generated key (wgCap is nil in that path), so
// a failure here only loses the ability to read a key nobody asked to
// regenerate; it is logged and treated as "no persisted key".
func mustStatestore(logger *slog.Logger) *statestore.Store {
	store, err := statestore.Open()
	if err != nil {
		logger.Warn("failed to reopen state store during reload", slog.String("error", err.Error()))
		return statestore.OpenAt(os.DevNull)
	}

	return store
}

func gracefulShutdown(ctx context.Context, reducer *engine.Reducer, ctl *control.Server, metricsSrv *http.Server, watcher *config.Watcher, logger *slog.Logger) error {
	logger.Info("initiating graceful shutdown")

	reducer.Inbound <- engine.EventEnvelope{Shutdown: true}

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Warn("failed to close config watcher", slog.String("error", err.Error()))
		}
	}

	if err := ctl.Close(); err != nil {
		logger.Warn("failed to close control socket", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}

	return nil
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}

	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func resolveConfigPath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}

	return defaultConfigPath
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, fmt.Errorf("load config from %s: %w", path, err)
			}

			return cfg, nil
		}
	}

	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
