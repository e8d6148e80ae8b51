// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package natsbus carries agent commands, liveness probes and
// heartbeats over NATS.
package natsbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/nats-io/nats.go"

	"github.com/juju/deploymgr/core/command"
	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/logger"
)

// Config holds the NATS connection settings.
type Config struct {
	URL    string
	Prefix string

	// Name identifies the connection on the server.
	Name string

	ReconnectWait time.Duration
	Logger        logger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.NotValidf("empty URL")
	}
	if c.Prefix == "" || token(c.Prefix) != c.Prefix {
		return errors.NotValidf("subject prefix %q", c.Prefix)
	}
	if c.ReconnectWait <= 0 {
		return errors.NotValidf("non-positive ReconnectWait")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Transport is a messaging.Transport and messaging.Prober over NATS.
type Transport struct {
	conn   *nats.Conn
	prefix string
	logger logger.Logger

	closeOnce sync.Once
}

// Dial connects to the NATS server. The connection reconnects
// forever once established.
func Dial(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			cfg.Logger.Warningf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			cfg.Logger.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to %s", cfg.URL)
	}
	cfg.Logger.Infof("connected to nats at %s", conn.ConnectedUrl())
	return &Transport{
		conn:   conn,
		prefix: cfg.Prefix,
		logger: cfg.Logger,
	}, nil
}

// Send is part of the messaging.Transport interface.
func (t *Transport) Send(application string, root instance.Path, cmd command.Command) error {
	data, err := encodeEnvelope(application, root, cmd)
	if err != nil {
		return errors.Annotatef(err, "encoding %s", cmd)
	}
	if t.conn.IsClosed() {
		return errors.Annotate(coreerrors.DeliveryFailure, "nats connection closed")
	}
	if err := t.conn.Publish(AgentSubject(t.prefix, application, root), data); err != nil {
		return fmt.Errorf("publishing: %w: %w", coreerrors.DeliveryFailure, err)
	}
	return nil
}

// IsConnected is part of the messaging.Transport interface.
func (t *Transport) IsConnected() bool {
	return t.conn.IsConnected()
}

// Close is part of the messaging.Transport interface. Pending
// messages are flushed first.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if err := t.conn.Drain(); err != nil {
			t.logger.Warningf("draining nats connection: %v", err)
		}
		t.conn.Close()
	})
	return nil
}

// Probe is part of the messaging.Prober interface. The agent must
// reply on its ping subject before ctx expires.
func (t *Transport) Probe(ctx context.Context, application string, root instance.Path) error {
	_, err := t.conn.RequestWithContext(ctx, PingSubject(t.prefix, application, root), nil)
	return errors.Annotatef(err, "pinging %s/%s", application, root)
}

// Conn returns the underlying connection.
func (t *Transport) Conn() *nats.Conn {
	return t.conn
}

// Prefix returns the subject prefix.
func (t *Transport) Prefix() string {
	return t.prefix
}
