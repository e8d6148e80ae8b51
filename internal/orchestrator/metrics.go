// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/status"
)

const metricsNamespace = "deploymgr"

// Collector is a prometheus.Collector that collects metrics about the
// orchestrator. It also records dispatch outcomes.
type Collector struct {
	messages      *prometheus.CounterVec
	provisioning  *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
	probes        *prometheus.CounterVec
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_total",
				Help:      "The number of agent commands by kind and outcome.",
			}, []string{"kind", "outcome"},
		),
		provisioning: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "provisioning_total",
				Help:      "The number of machine creations and destructions.",
			}, []string{"operation", "result"},
		),
		statusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "status_changes_total",
				Help:      "The number of instance status changes by new status.",
			}, []string{"status"},
		),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "probes_total",
				Help:      "The number of agent liveness probes by result.",
			}, []string{"result"},
		),
	}
}

// Sent is part of the messaging.Recorder interface.
func (c *Collector) Sent(kind command.Kind) {
	c.messages.WithLabelValues(string(kind), "sent").Inc()
}

// Queued is part of the messaging.Recorder interface.
func (c *Collector) Queued(kind command.Kind) {
	c.messages.WithLabelValues(string(kind), "queued").Inc()
}

// Failed is part of the messaging.Recorder interface.
func (c *Collector) Failed(kind command.Kind) {
	c.messages.WithLabelValues(string(kind), "failed").Inc()
}

// Provisioned counts one machine operation.
func (c *Collector) Provisioned(operation string, ok bool) {
	c.provisioning.WithLabelValues(operation, result(ok)).Inc()
}

// StatusChanged counts one status change.
func (c *Collector) StatusChanged(to status.Status) {
	c.statusChanges.WithLabelValues(to.String()).Inc()
}

// Probed counts one liveness probe.
func (c *Collector) Probed(reachable bool) {
	c.probes.WithLabelValues(result(reachable)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.messages.Describe(ch)
	c.provisioning.Describe(ch)
	c.statusChanges.Describe(ch)
	c.probes.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.messages.Collect(ch)
	c.provisioning.Collect(ch)
	c.statusChanges.Collect(ch)
	c.probes.Collect(ch)
}
