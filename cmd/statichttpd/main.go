package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/statichttpd/internal/config"
	"github.com/Brownie44l1/statichttpd/internal/server"
	"github.com/Brownie44l1/statichttpd/internal/static"
)

const shutdownTimeout = 30 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "statichttpd: %v\n", err)
		return 1
	}

	level, err := server.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "statichttpd: %v\n", err)
		return 1
	}
	logger := server.NewLogger(stdout, level, cfg.LogFormat)

	seeded, err := static.Bootstrap(cfg.DocumentRoot)
	if err != nil {
		logger.Error("bootstrap failed", server.Field{Key: "root", Value: cfg.DocumentRoot}, server.Field{Key: "error", Value: err})
		return 1
	}
	if seeded {
		logger.Info("created default index.html", server.Field{Key: "root", Value: cfg.DocumentRoot})
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("invalid configuration", server.Field{Key: "error", Value: err})
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		// Serve only returns on its own when the socket could not be set up
		if !errors.Is(err, server.ErrServerClosed) {
			logger.Error("server failed to start", server.Field{Key: "error", Value: err})
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down", server.Field{Key: "timeout", Value: shutdownTimeout})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", server.Field{Key: "error", Value: err})
		}
	}

	stats := srv.Stats()
	logger.Info("final stats",
		server.Field{Key: "connections", Value: stats.ConnectionsTotal},
		server.Field{Key: "requests", Value: stats.RequestsTotal},
		server.Field{Key: "errors_4xx", Value: stats.Errors4xx},
		server.Field{Key: "errors_5xx", Value: stats.Errors5xx},
		server.Field{Key: "bytes_sent", Value: stats.BytesSent},
		server.Field{Key: "avg_latency", Value: stats.AverageLatency},
	)
	return 0
}

// loadConfig layers flags and the positional [port] [document_root] on top
// of the config file and environment.
func loadConfig(args []string, stderr io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("statichttpd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: statichttpd [flags] [port] [document_root]")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	var (
		configPath  = fs.String("config", "", "path to a YAML config file")
		logLevel    = fs.String("log-level", "", "debug, info, warn or error")
		logFormat   = fs.String("log-format", "", "text or json")
		containment = fs.String("containment", "", "segment or prefix")
		sniff       = fs.Bool("sniff", false, "detect content type of files with unknown extensions")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 2 {
		fs.Usage()
		return nil, fmt.Errorf("too many arguments: %v", fs.Args())
	}

	var port uint16
	if fs.NArg() > 0 {
		p, err := config.ParsePort(fs.Arg(0))
		if err != nil {
			return nil, err
		}
		port = p
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return config.Load(*configPath, func(cfg *config.Config) {
		if set["log-level"] {
			cfg.LogLevel = *logLevel
		}
		if set["log-format"] {
			cfg.LogFormat = *logFormat
		}
		if set["containment"] {
			cfg.Containment = *containment
		}
		if set["sniff"] {
			cfg.SniffUnknown = *sniff
		}
		if port != 0 {
			cfg.Port = port
		}
		if fs.NArg() > 1 {
			cfg.DocumentRoot = fs.Arg(1)
		}
	})
}
