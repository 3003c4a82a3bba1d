package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/pflag"

	"secure-file-share/internal/access"
	"secure-file-share/internal/config"
	"secure-file-share/internal/db"
	"secure-file-share/internal/logging"
	"secure-file-share/internal/server"
	"secure-file-share/internal/storage"
	"secure-file-share/internal/store/memstore"
	"secure-file-share/internal/store/postgres"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "secure-file-share: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	addr       string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (options, *pflag.FlagSet, error) {
	var opts options
	fs := pflag.NewFlagSet("secure-file-share", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&opts.addr, "addr", "", "listen address, overrides the config")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return options{}, nil, err
	}
	return opts, fs, nil
}

// loadConfig layers flags over the file and environment and validates the
// result.
func loadConfig(opts options, fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("addr") {
		cfg.Addr = opts.addr
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// recordStore is what the service needs from a metadata backend.
type recordStore interface {
	access.UserStore
	access.FileStore
	access.Auditor
}

// blobStore is a BlobStore that /health can ping.
type blobStore interface {
	access.BlobStore
	server.Pinger
}

type dbPinger struct{ db *sqlx.DB }

func (p dbPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// openRecords returns the metadata store selected by cfg and a closer.
func openRecords(ctx context.Context, cfg *config.Config, logger *slog.Logger, checks map[string]server.Pinger) (recordStore, func() error, error) {
	if cfg.UsesMemoryStore() {
		logger.Warn("using in-memory store; data is lost on exit")
		return memstore.New(), func() error { return nil }, nil
	}

	logger.Info("running migrations")
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	checks["database"] = dbPinger{db: conn}
	return postgres.New(conn), conn.Close, nil
}

func openBlobs(ctx context.Context, cfg *config.Config) (blobStore, error) {
	switch cfg.StorageDriver {
	case config.StorageMinIO:
		return storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
		})
	default:
		return storage.NewLocal(cfg.StorageDir)
	}
}

// newServer wires the stores, service and HTTP layer for cfg. The returned
// closer releases the database pool.
func newServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*server.Server, func() error, error) {
	checks := make(map[string]server.Pinger)
	records, closeRecords, err := openRecords(ctx, cfg, logger, checks)
	if err != nil {
		return nil, nil, err
	}
	blobs, err := openBlobs(ctx, cfg)
	if err != nil {
		_ = closeRecords()
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	checks["storage"] = blobs

	svc := access.NewService(records, records, blobs,
		access.WithLogger(logger),
		access.WithAuditor(records),
	)
	verifier := access.NewVerifier(access.VerifierConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.SessionTTL,
		Users:  records,
		Logger: logger,
	})
	srv := server.New(server.Config{
		Addr:           cfg.Addr,
		Service:        svc,
		Verifier:       verifier,
		Logger:         logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Checks:         checks,
	})
	return srv, closeRecords, nil
}

func run(args []string, stderr io.Writer) error {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	cfg, err := loadConfig(opts, fs)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel, cfg.Env)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, closeRecords, err := newServer(ctx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeRecords(); err != nil {
			logger.Warn("close database", "err", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting", "addr", cfg.Addr, "env", cfg.Env, "storage", cfg.StorageDriver)
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
