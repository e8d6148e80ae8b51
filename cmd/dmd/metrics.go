// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/tomb.v2"

	corelogger "github.com/juju/deploymgr/core/logger"
)

const metricsShutdownTimeout = 5 * time.Second

// metricsServer serves the registry on /metrics until killed.
type metricsServer struct {
	tomb     tomb.Tomb
	listener net.Listener
	server   *http.Server
}

func newMetricsServer(address string, registry *prometheus.Registry, logger corelogger.Logger) (*metricsServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %s", address)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s := &metricsServer{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.tomb.Go(func() error {
		s.tomb.Go(func() error {
			if err := s.server.Serve(listener); err != http.ErrServerClosed {
				return errors.Trace(err)
			}
			return nil
		})
		logger.Infof("serving metrics on %s", listener.Addr())

		<-s.tomb.Dying()
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return errors.Trace(s.server.Shutdown(ctx))
	})
	return s, nil
}

// Addr returns the address the server listens on.
func (s *metricsServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Kill is part of the worker.Worker interface.
func (s *metricsServer) Kill() {
	s.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (s *metricsServer) Wait() error {
	return s.tomb.Wait()
}
