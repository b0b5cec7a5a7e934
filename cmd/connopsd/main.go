// connopsd runs a monitored connection pool in front of one database and
// serves its health, statistics and metrics over HTTP.
//
// Usage:
//
//	connopsd [flags]
//
// Flags:
//
//	-config string
//	    Path to a YAML or TOML configuration file
//	-version
//	    Print version and exit
//
// Every setting can also be given through CONNOPS_* environment variables;
// see package config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/connops/config"
	"github.com/jonwraymond/connops/observe"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to a YAML or TOML configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("connopsd %s\n", Version)
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connopsd: %v\n", err)
		return 1
	}
	if cfg.Service.Version == "dev" {
		cfg.Service.Version = Version
	}

	a, err := newApp(ctx, cfg, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connopsd: %v\n", err)
		return 1
	}

	if err := a.serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error(ctx, "server failed", observe.Err(err))
		_ = a.close(context.Background())
		return 1
	}
	if err := a.close(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "connopsd: shutdown: %v\n", err)
		return 1
	}
	return 0
}
