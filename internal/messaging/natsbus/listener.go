// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package natsbus

import (
	"strings"

	"github.com/juju/errors"
	"github.com/juju/worker/v4"
	"github.com/nats-io/nats.go"
	"gopkg.in/tomb.v2"

	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/logger"
	"github.com/juju/deploymgr/core/status"
)

// AgentReports records what agents publish: heartbeats and the status
// of the instances they run. It is satisfied by
// *orchestrator.Orchestrator.
type AgentReports interface {
	AcknowledgeHeartbeat(application string, root instance.Path, ipAddress string) error
	NotifyInstanceChanged(application string, path instance.Path, st status.Status) error
}

// reportBuffer is the number of agent messages held while the
// orchestrator is busy.
const reportBuffer = 64

type agentListener struct {
	tomb    tomb.Tomb
	subs    []*nats.Subscription
	msgs    chan *nats.Msg
	prefix  string
	reports AgentReports
	logger  logger.Logger
}

// NewAgentListener returns a worker passing every heartbeat and status
// report published on the transport's connection to reports.
func NewAgentListener(t *Transport, reports AgentReports, logger logger.Logger) (worker.Worker, error) {
	if reports == nil {
		return nil, errors.NotValidf("nil AgentReports")
	}
	w := &agentListener{
		msgs:    make(chan *nats.Msg, reportBuffer),
		prefix:  t.Prefix(),
		reports: reports,
		logger:  logger,
	}
	for _, subject := range []string{heartbeatWildcard(w.prefix), statusWildcard(w.prefix)} {
		sub, err := t.Conn().ChanSubscribe(subject, w.msgs)
		if err != nil {
			w.unsubscribe()
			return nil, errors.Annotatef(err, "subscribing to %s", subject)
		}
		w.subs = append(w.subs, sub)
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *agentListener) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *agentListener) Wait() error {
	return w.tomb.Wait()
}

func (w *agentListener) loop() error {
	defer w.unsubscribe()
	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case msg := <-w.msgs:
			w.handle(msg.Subject, msg.Data)
		}
	}
}

func (w *agentListener) unsubscribe() {
	for _, sub := range w.subs {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Debugf("unsubscribing from %s: %v", sub.Subject, err)
		}
	}
}

func (w *agentListener) handle(subject string, data []byte) {
	if strings.HasPrefix(subject, w.prefix+".status.") {
		w.handleStatus(data)
		return
	}
	hb, err := decodeHeartbeat(data)
	if err != nil {
		w.logger.Warningf("ignoring heartbeat: %v", err)
		return
	}
	if err := w.reports.AcknowledgeHeartbeat(hb.Application, hb.Root, hb.IPAddress); err != nil {
		w.logger.Debugf("heartbeat of %s%s: %v", hb.Application, hb.Root, err)
	}
}

func (w *agentListener) handleStatus(data []byte) {
	report, err := decodeStatusReport(data)
	if err != nil {
		w.logger.Warningf("ignoring status report: %v", err)
		return
	}
	if err := w.reports.NotifyInstanceChanged(report.Application, report.Path, report.Status); err != nil {
		w.logger.Warningf("status report of %s%s: %v", report.Application, report.Path, err)
	}
}
