// Command telecore-master ingests point updates from outstations over serial
// and network channels into a quality-flagged point database.
//
// It offers:
//   - Channel configuration from a YAML channel file
//   - One ingest session per channel (no automatic reconnect)
//   - Database snapshot restore on start and save on shutdown
//   - SQLite history of reportable point events
//   - HTTP read API with Prometheus metrics
//   - Optional protocol event log (.tlog, see telecore-log)
//   - Interactive command interface
//
// Usage:
//
//	telecore-master [flags]
//
// Flags:
//
//	-config string   Configuration file path (default $CONFIG_PATH)
//	-interactive     Enable interactive command mode
//	-reset           Discard the saved snapshot before starting
//	-version         Show version information
//
// Examples:
//
//	# Start with a configuration file
//	telecore-master -config /etc/telecore/master.yaml
//
//	# Configure from the environment only
//	TELECORE_CHANNELS=channels.yaml TELECORE_HTTP_ADDRESS=:9090 telecore-master
//
// Interactive Commands:
//
//	get <type> <index>   - Show one point
//	snapshot <type>      - Show every point of a table
//	channels             - Show channel sessions
//	quit                 - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"

	"github.com/telecore/telecore-go/internal/sl"
	"github.com/telecore/telecore-go/pkg/api"
	"github.com/telecore/telecore-go/pkg/channel"
	"github.com/telecore/telecore-go/pkg/database"
	"github.com/telecore/telecore-go/pkg/log"
	"github.com/telecore/telecore-go/pkg/metrics"
	"github.com/telecore/telecore-go/pkg/persistence"
	"github.com/telecore/telecore-go/pkg/service"
	"github.com/telecore/telecore-go/pkg/transport"
)

// Version information - set at build time via ldflags
var (
	Version   = "0.1.0"
	BuildDate = "dev"
	GitCommit = "unknown"
)

var (
	configPath  = flag.String("config", "", "Configuration file path")
	interactive = flag.Bool("interactive", false, "Enable interactive command mode")
	reset       = flag.Bool("reset", false, "Discard the saved snapshot before starting")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion {
		fmt.Printf("telecore-master %s (built %s, commit %s)\n", Version, BuildDate, GitCommit)
		return 0
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	var rl *readline.Instance
	if *interactive {
		rl, err = NewReadline()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		// Route log output through readline so it does not clobber the prompt.
		logger = sl.New(rl.Stdout(), cfg.Log.Level, cfg.Log.Format)
	}
	slog.SetDefault(logger)

	logger.Info("starting telecore master",
		slog.String("env", cfg.Env),
		slog.String("version", Version),
		slog.String("channels", cfg.Channels.Path),
	)

	channels, err := channel.LoadFile(cfg.Channels.Path)
	if err != nil {
		logger.Error("failed to load channels", sl.Err(err))
		return 1
	}
	logger.Info("loaded channel file", slog.Int("channels", len(channels)))

	protocol, closeProtocol, err := setupProtocolLog(cfg.Log, logger)
	if err != nil {
		logger.Error("failed to open protocol log", sl.Err(err))
		return 1
	}
	defer closeProtocol()

	m := metrics.New()

	db := database.New(database.Config{
		StrictQuality:  cfg.Session.StrictQuality,
		Logger:         logger,
		ProtocolLogger: protocol,
	})
	db.OnEvent(m.ObserveEvent)
	if err := m.WatchDatabase(db); err != nil {
		logger.Error("failed to register metrics", sl.Err(err))
		return 1
	}

	var history *persistence.HistoryStore
	if cfg.Storage.HistoryPath != "" {
		history, err = persistence.NewHistoryStore(cfg.Storage.HistoryPath)
		if err != nil {
			logger.Error("failed to open history", sl.Err(err))
			return 1
		}
		defer history.Close()
		recorder := history.NewRecorder(persistence.RecorderConfig{Logger: logger})
		defer func() {
			recorder.Close()
			if n := recorder.Dropped(); n > 0 {
				logger.Warn("history events dropped", slog.Uint64("events", n))
			}
		}()
		db.OnEvent(recorder.Handler())
		logger.Info("history enabled", slog.String("path", cfg.Storage.HistoryPath))
	}

	var saveSnapshot func() error
	if cfg.Storage.SnapshotPath != "" {
		store := persistence.NewSnapshotStore(cfg.Storage.SnapshotPath)
		if err := restoreSnapshot(store, db, *reset, logger); err != nil {
			logger.Error("failed to restore snapshot", sl.Err(err))
			return 1
		}
		saveSnapshot = func() error {
			snap, err := persistence.Capture(db)
			if err != nil {
				return err
			}
			return store.Save(snap)
		}
	}

	dispatcher := transport.NewDispatcher(transport.DispatcherConfig{
		Serial: &transport.SerialOpener{ReadTimeout: cfg.Session.SerialReadTimeout},
		Network: &transport.NetworkOpener{
			Resolver: &transport.MDNSResolver{
				ServiceType: cfg.MDNS.ServiceType,
				Domain:      cfg.MDNS.Domain,
				Interface:   cfg.MDNS.Interface,
			},
		},
		Logger:         logger,
		ProtocolLogger: protocol,
		OnOpen:         m.ObserveOpen,
	})

	manager := service.NewManager(logger)
	for _, ch := range channels {
		s, err := service.NewSession(service.SessionConfig{
			Channel:        ch,
			Opener:         dispatcher,
			Database:       db,
			OpenTimeout:    cfg.Session.OpenTimeout,
			MaxFrameSize:   cfg.Session.MaxFrameSize,
			Logger:         logger,
			ProtocolLogger: protocol,
			Observer:       m,
		})
		if err != nil {
			logger.Error("failed to create session", slog.String("channel", ch.Name()), sl.Err(err))
			return 1
		}
		if err := manager.Add(s); err != nil {
			logger.Error("failed to add session", sl.Err(err))
			return 1
		}
	}

	var server *api.Server
	if cfg.HTTP.Enabled {
		server = api.NewServer(api.Config{
			Address:  cfg.HTTP.Address,
			Database: db,
			History:  history,
			Channels: manager,
			Metrics:  m.Handler(),
			Logger:   logger,
			Version:  Version,
		})
		if err := server.Start(); err != nil {
			logger.Error("failed to start http server", sl.Err(err))
			return 1
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager.Start(ctx)

	if history != nil && cfg.Storage.HistoryMaxAge > 0 {
		go runPruneLoop(ctx, history, cfg.Storage.HistoryMaxAge, logger)
	}

	if rl != nil {
		go NewShell(rl, db, manager, history, saveSnapshot).Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()
	manager.Stop()

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop http server", sl.Err(err))
		}
		shutdownCancel()
	}

	if saveSnapshot != nil {
		if err := saveSnapshot(); err != nil {
			logger.Error("failed to save snapshot", sl.Err(err))
		} else {
			logger.Info("snapshot saved", slog.String("path", cfg.Storage.SnapshotPath))
		}
	}

	logger.Info("telecore master stopped")
	return 0
}

// setupProtocolLog builds the protocol capture chain. Every event goes to
// the capture file when one is configured; slog sees all events at debug
// level and only error events otherwise.
func setupProtocolLog(cfg LogConfig, logger *slog.Logger) (log.Logger, func(), error) {
	var console log.Logger = log.NewSlogAdapter(logger)
	if sl.ParseLevel(cfg.Level) != slog.LevelDebug {
		errorsOnly := log.CategoryError
		console = log.NewFilterLogger(console, log.Filter{Category: &errorsOnly})
	}
	if cfg.ProtocolLog == "" {
		return console, func() {}, nil
	}

	file, err := log.NewFileLogger(cfg.ProtocolLog)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		logger.Info("protocol log closed",
			slog.String("path", cfg.ProtocolLog),
			slog.Uint64("written", file.Written()),
			slog.Uint64("failed", file.Failed()))
		if err := file.Close(); err != nil {
			logger.Error("failed to close protocol log", sl.Err(err))
		}
	}
	return log.NewMultiLogger(file, console), closeFn, nil
}

func restoreSnapshot(store *persistence.SnapshotStore, db *database.Database, reset bool, logger *slog.Logger) error {
	if reset {
		logger.Info("discarding saved snapshot", slog.String("path", store.Path()))
		return store.Clear()
	}
	snap, err := store.Load()
	if err != nil {
		return err
	}
	if snap == nil {
		logger.Info("no snapshot found", slog.String("path", store.Path()))
		return nil
	}
	n, err := snap.RestoreInto(db)
	if err != nil {
		return err
	}
	logger.Info("snapshot restored",
		slog.Int("points", n),
		slog.Time("saved_at", snap.SavedAt))
	return nil
}

func runPruneLoop(ctx context.Context, history *persistence.HistoryStore, maxAge time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		n, err := history.Prune(time.Now().Add(-maxAge))
		if err != nil {
			logger.Warn("history prune failed", sl.Err(err))
		} else if n > 0 {
			logger.Info("history pruned", slog.Int64("events", n))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
