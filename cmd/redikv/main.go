// Command redikv starts the server: a primary by default, or a replica of
// another instance when --replicaof is given.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"redikv/internal/server"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		port        uint16
		replicaOf   string
		metricsAddr string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "redikv",
		Short: "An in-memory, Redis-wire-compatible key-value server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			log.SetLevel(level)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &server.Config{
				Host:        "127.0.0.1",
				Port:        port,
				MetricsAddr: metricsAddr,
			}

			if replicaOf != "" {
				ro, err := parseReplicaOf(replicaOf)
				if err != nil {
					return err
				}
				cfg.ReplicaOf = ro
			}

			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.Uint16VarP(&port, "port", "p", 6379, "Port to listen on")
	flags.StringVar(&replicaOf, "replicaof", "", `Make this server a replica of "<host> <port>"`)
	flags.StringVar(&metricsAddr, "metrics-addr", ":16379", "Address for the metrics/health HTTP surface; empty disables it")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	return cmd
}

func parseReplicaOf(s string) (*server.ReplicaOf, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return nil, fmt.Errorf(`--replicaof expects "<host> <port>", got %q`, s)
	}
	p, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("--replicaof: invalid port %q: %w", parts[1], err)
	}
	return &server.ReplicaOf{Host: parts[0], Port: uint16(p)}, nil
}

func run(cfg *server.Config) error {
	srv := server.New(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
