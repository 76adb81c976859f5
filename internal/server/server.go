// Package server is the process orchestrator: it builds the store, server
// identity, snapshot provider, and dispatcher from a Config, launches the
// expiration sweeper or replication client depending on role, and accepts
// client connections.
package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"redikv/internal/conn"
	"redikv/internal/dispatch"
	"redikv/internal/metrics"
	"redikv/internal/replication"
	"redikv/internal/serverinfo"
	"redikv/internal/snapshot"
	"redikv/internal/storage"
	"redikv/internal/sweeper"
)

// Server wires every component together and owns the RESP TCP listener.
type Server struct {
	cfg *Config
	log *logrus.Logger

	store      *storage.Store
	info       *serverinfo.ServerInfo
	dispatcher *dispatch.Dispatcher
	sweeper    *sweeper.Sweeper
	metrics    *metrics.Registry
	metricsSrv *metrics.Server

	listener net.Listener
	wg       sync.WaitGroup

	activeMu sync.Mutex
	active   int
}

// New builds a Server from cfg. It does not bind any listener yet; call
// Start for that.
func New(cfg *Config, log *logrus.Logger) *Server {
	store := storage.NewStore()

	var info *serverinfo.ServerInfo
	if cfg.ReplicaOf != nil {
		info = serverinfo.NewReplica(cfg.Port, cfg.ReplicaOf.Host, cfg.ReplicaOf.Port)
	} else {
		info = serverinfo.NewPrimary(cfg.Port)
	}

	snap := snapshot.NewFixed()
	d := dispatch.New(store, info, snap)

	reg := metrics.NewRegistry(store)
	d.OnCommand = func(name string) {
		reg.CommandsTotal.WithLabelValues(name).Inc()
	}

	s := &Server{
		cfg:        cfg,
		log:        log,
		store:      store,
		info:       info,
		dispatcher: d,
		metrics:    reg,
	}

	if cfg.MetricsAddr != "" {
		s.metricsSrv = metrics.NewServer(cfg.MetricsAddr, reg)
	}

	return s
}

// Start binds the RESP listener, launches the sweeper (primary role) or
// replication client (replica role), and accepts connections until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.metricsSrv != nil {
		errCh := s.metricsSrv.Start()
		go func() {
			if err := <-errCh; err != nil {
				s.log.WithError(err).Error("metrics server stopped unexpectedly")
			}
		}()
		s.log.WithField("addr", s.cfg.MetricsAddr).Info("metrics server listening")
	}

	if s.info.Role == serverinfo.RolePrimary {
		sw, err := sweeper.New(s.store, sweeper.DefaultInterval, s.log)
		if err != nil {
			return fmt.Errorf("server: failed to build sweeper: %w", err)
		}
		sw.OnSweep = func(removed int) {
			s.metrics.ExpiredKeysTotal.Add(float64(removed))
		}
		s.sweeper = sw
		s.sweeper.Start()
		s.log.WithField("interval", sweeper.DefaultInterval).Info("expiration sweeper started")
	} else {
		go s.runReplicationHandshake()
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: failed to bind %s: %w", addr, err)
	}
	s.listener = listener
	s.log.WithField("addr", addr).Info("listening")

	go s.acceptLoop(ctx)

	<-ctx.Done()
	return nil
}

// runReplicationHandshake runs the replica handshake once at startup; Start
// launches it in its own goroutine alongside the listener. Any failure is
// fatal to the process, per the spec's bounded scope: a production design
// would restart or demote instead.
func (s *Server) runReplicationHandshake() {
	c := replication.NewClient(s.cfg.ReplicaOf.Host, s.cfg.ReplicaOf.Port, s.cfg.Port, s.log)
	if _, err := c.Handshake(); err != nil {
		s.log.WithError(err).Error("replication handshake failed, exiting")
		os.Exit(1)
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		c, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.log.WithError(err).Error("accept failed")
				continue
			}
		}

		s.activeMu.Lock()
		s.active++
		s.metrics.ConnectionsActive.Set(float64(s.active))
		s.activeMu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			loop := conn.New(c, s.dispatcher, s.log, func() {
				s.activeMu.Lock()
				s.active--
				s.metrics.ConnectionsActive.Set(float64(s.active))
				s.activeMu.Unlock()
			})
			loop.Run()
		}()
	}
}

// Shutdown closes the listener, waits for in-flight connections to finish,
// and stops the sweeper and metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.log.Warn("shutdown timed out waiting for connections to close")
	}

	if s.sweeper != nil {
		if err := s.sweeper.Stop(); err != nil {
			s.log.WithError(err).Warn("sweeper shutdown error")
		}
	}

	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("metrics server shutdown error")
		}
	}

	return nil
}
