package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stake-plus/geo-sink/src/api"
	"github.com/stake-plus/geo-sink/src/cache"
	"github.com/stake-plus/geo-sink/src/config"
	"github.com/stake-plus/geo-sink/src/cursor"
	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/governance"
	"github.com/stake-plus/geo-sink/src/ipfs"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/retry"
	"github.com/stake-plus/geo-sink/src/sink"
	"github.com/stake-plus/geo-sink/src/storage"
	"github.com/stake-plus/geo-sink/src/stream"
	"github.com/stake-plus/geo-sink/src/supervisor"
	"github.com/stake-plus/geo-sink/src/telemetry"
	"github.com/stake-plus/geo-sink/src/versioning"
	"github.com/thejerf/suture/v4"
)

type flags struct {
	startBlock *uint64
	resetDB    bool
	configPath string
}

func parseFlags(args []string) (flags, error) {
	fs := flag.NewFlagSet("geo-sink", flag.ContinueOnError)
	start := fs.Int64("start-block", -1, "Block to start from, ignoring any stored cursor")
	reset := fs.Bool("reset-db", false, "Drop all tables, re-migrate and bootstrap the root space")
	path := fs.String("config", "", "Path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	f := flags{resetDB: *reset, configPath: *path}
	if *start >= 0 {
		n := uint64(*start)
		f.startBlock = &n
	}
	return f, nil
}

// exitCode maps a startup error to the process status. Asking for help is
// not a failure.
func exitCode(err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 1
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			logging.Err(err).Msg("invalid flags")
		}
		os.Exit(exitCode(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel := telemetry.Telemetry(telemetry.Nop{})
	if err := run(ctx, f, &tel); err != nil {
		logging.Err(err).Msg("geo-sink stopped")
		tel.CaptureException(context.Background(), err)
		stop()
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, f flags, tel *telemetry.Telemetry) error {
	cfg, loader, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	dsn, err := data.GetMySQLDSN(cfg.Database.DSN)
	if err != nil {
		return err
	}
	db, err := data.ConnectMySQL(dsn, data.PoolOptions{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnMaxLife:  cfg.Database.ConnMaxLife,
	})
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := data.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	settings, err := data.LoadSettings(ctx, db)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if len(settings) > 0 {
		if cfg, err = loader.Apply(config.SettingsProvider(settings)); err != nil {
			return fmt.Errorf("apply settings: %w", err)
		}
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err := data.ApplyPool(db, data.PoolOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
			ConnMaxLife:  cfg.Database.ConnMaxLife,
		}); err != nil {
			return err
		}
	}

	t, err := telemetry.New(cfg.Telemetry.DiscordWebhookURL, cfg.Telemetry.Environment)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	*tel = t

	var content cache.Content = cache.Nop{}
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedis(cfg.Redis.URL, cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			logging.Warn().Err(err).Msg("redis unreachable, continuing without content cache")
			content = cache.Nop{}
		} else {
			content = rc
		}
	}

	store := storage.New(db, storage.Options{
		ChunkSize: cfg.Database.ChunkSize,
		Retry: retry.Policy{
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			MaxAttempts: cfg.Retry.MaxAttempts,
		},
	})
	resolver := ipfs.NewResolver(ipfs.Options{
		Gateway:     cfg.IPFS.Gateway,
		Timeout:     cfg.IPFS.Timeout,
		BaseDelay:   cfg.IPFS.BaseDelay,
		Concurrency: cfg.IPFS.Concurrency,
		Cache:       content,
	})
	tracker := governance.New(store, versioning.NewEngine(store), resolver, governance.Options{
		RootSpaceAddress: cfg.Chain.RootSpaceAddress,
	})
	cursors := cursor.NewDBStore(store)

	if f.resetDB {
		if err := data.Reset(ctx, db); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		blk := governance.Block{Timestamp: time.Now().Unix()}
		if f.startBlock != nil {
			blk.Number = *f.startBlock
		}
		if err := sink.Bootstrap(ctx, store, tracker, cfg.Chain.RootSpaceAddress, blk); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}

	start, err := startBlock(ctx, f.startBlock, cfg.Stream.StartBlock, cursors)
	if err != nil {
		return err
	}

	source, err := stream.NewWebSocketSource(stream.WebSocketOptions{
		Endpoint:     cfg.Stream.Endpoint,
		Token:        cfg.Stream.APIToken,
		OutputModule: cfg.Stream.OutputModule,
		IdleTimeout:  cfg.Stream.IdleTimeout,
	})
	if err != nil {
		return err
	}
	handler := sink.NewHandler(tracker)
	consumer := stream.NewConsumer(stream.Options{
		Source:      source,
		Cursors:     cursors,
		Handler:     handler,
		Telemetry:   t,
		MaxAttempts: cfg.Stream.MaxAttempts,
	})

	tree := supervisor.NewTree(supervisor.TreeConfig{})
	indexer := supervisor.NewIndexer(consumer, start, t)
	tree.AddIngestService(indexer)
	if cfg.API.Enabled {
		engine := api.New(api.Deps{
			Store:       store,
			Cursors:     cursors,
			Stream:      consumer,
			Blocks:      handler,
			JWTSecret:   cfg.API.JWTSecret,
			CORSOrigins: cfg.API.CORSOrigins,
			Started:     time.Now(),
		})
		tree.AddAPIService(api.NewServer(cfg.API.Listen, engine))
	}

	logging.Info().Str("module", cfg.Stream.OutputModule).Bool("api", cfg.API.Enabled).Msg("geo-sink starting")
	err = tree.Serve(ctx)
	if ierr := indexer.Err(); ierr != nil {
		return ierr
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, suture.ErrTerminateSupervisorTree) {
		return err
	}
	logging.Info().Msg("geo-sink stopped")
	return nil
}

// startBlock returns the explicit flag value, or the configured start block
// when no checkpoint exists yet. nil means resume from the stored cursor.
func startBlock(ctx context.Context, flagValue *uint64, configured uint64, cursors cursor.Store) (*uint64, error) {
	if flagValue != nil {
		return flagValue, nil
	}
	pos, err := cursors.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	if pos == nil && configured > 0 {
		return &configured, nil
	}
	return nil, nil
}
