// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"github.com/juju/errors"

	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
	"github.com/juju/deploymgr/internal/messaging"
)

// FlushResult counts what a flush did.
type FlushResult struct {
	Sent     int
	Requeued int
}

// FlushAwaitingMessages delivers the queued commands of every root
// that is DEPLOYED_STARTED, in order. The first delivery failure stops
// that root's batch and puts the unsent commands back at the head of
// its queue. Roots in any other status are left alone.
func (o *Orchestrator) FlushAwaitingMessages() (FlushResult, error) {
	var result FlushResult
	d, err := o.messaging()
	if err != nil {
		return result, errors.Trace(err)
	}
	if !d.Transport().IsConnected() {
		o.cfg.Logger.Debugf("transport not connected, not flushing")
		return result, nil
	}
	for _, name := range o.Applications() {
		err := o.withApplication(name, func(app *application.ManagedApplication) error {
			o.flushApplication(d, app, &result)
			return nil
		})
		if err != nil && !errors.Is(err, errors.NotFound) {
			return result, errors.Trace(err)
		}
	}
	return result, nil
}

func (o *Orchestrator) flushApplication(d *messaging.Dispatcher, app *application.ManagedApplication, result *FlushResult) {
	for _, path := range app.AwaitingRoots() {
		root, ok := app.Tree().Get(path)
		if !ok {
			discarded := app.RemoveAwaitingMessages(path)
			o.cfg.Logger.Warningf("discarded %d commands queued for removed root %s%s", len(discarded), app.Name(), path)
			continue
		}
		if root.Status != status.DeployedStarted {
			continue
		}
		cmds := app.RemoveAwaitingMessages(path)
		for i, cmd := range cmds {
			if err := d.Send(app.Name(), path, cmd); err != nil {
				o.cfg.Logger.Warningf("%v; %d commands left queued", err, len(cmds)-i)
				app.RequeueAwaitingMessages(path, cmds[i:])
				result.Requeued += len(cmds) - i
				break
			}
			result.Sent++
		}
	}
}

// ProbeTarget is a root whose agent should answer liveness probes.
type ProbeTarget struct {
	Application string
	Root        instance.Path
	Status      status.Status

	// MachineID is the machine the probed agent runs on. A result for
	// a machine the root no longer has is ignored.
	MachineID string
}

// ProbeTargets returns the roots of every application whose agent is
// expected to be running or starting up.
func (o *Orchestrator) ProbeTargets() []ProbeTarget {
	var targets []ProbeTarget
	for _, name := range o.Applications() {
		_ = o.withApplication(name, func(app *application.ManagedApplication) error {
			for _, root := range app.Tree().Roots() {
				if root.Status.Provisioned() {
					targets = append(targets, ProbeTarget{
						Application: name,
						Root:        root.Path(),
						Status:      root.Status,
						MachineID:   root.MachineID(),
					})
				}
			}
			return nil
		})
	}
	return targets
}

// RecordProbe applies the outcome of a liveness probe of target. An
// unreachable DEPLOYED_STARTED root becomes PROBLEM; a reachable
// DEPLOYING or PROBLEM root becomes DEPLOYED_STARTED. The result is
// dropped when the root was reprovisioned since the target was taken.
func (o *Orchestrator) RecordProbe(target ProbeTarget, reachable bool) error {
	appName, root := target.Application, target.Root
	return o.withInstance(appName, root, func(app *application.ManagedApplication, inst *instance.Instance) error {
		if !inst.IsRoot() {
			return errors.NotValidf("probe of non-root %s", root)
		}
		if id := inst.MachineID(); id != target.MachineID {
			o.cfg.Logger.Debugf("ignoring probe of %s%s on machine %q, now on %q", appName, root, target.MachineID, id)
			return nil
		}
		if o.cfg.Collector != nil {
			o.cfg.Collector.Probed(reachable)
		}
		if reachable {
			o.agentAlive(app, inst)
			return nil
		}
		if inst.Status == status.DeployedStarted {
			o.cfg.Logger.Warningf("agent of %s%s did not answer", appName, root)
			o.setStatus(app, inst, status.Problem)
		}
		return nil
	})
}

// AcknowledgeHeartbeat records a heartbeat sent by the agent of a
// root, with the address it reports.
func (o *Orchestrator) AcknowledgeHeartbeat(appName string, root instance.Path, ipAddress string) error {
	return o.withInstance(appName, root, func(app *application.ManagedApplication, inst *instance.Instance) error {
		if !inst.IsRoot() {
			return errors.NotValidf("heartbeat from non-root %s", root)
		}
		if inst.Status == status.NotDeployed {
			o.cfg.Logger.Debugf("ignoring heartbeat of undeployed %s%s", appName, root)
			return nil
		}
		if ipAddress != "" {
			inst.SetData(instance.IPAddress, ipAddress)
		}
		o.agentAlive(app, inst)
		return nil
	})
}

func (o *Orchestrator) agentAlive(app *application.ManagedApplication, root *instance.Instance) {
	switch root.Status {
	case status.Deploying, status.Problem:
		o.cfg.Logger.Infof("agent of %s%s is up", app.Name(), root.Path())
		o.setStatus(app, root, status.DeployedStarted)
	}
}

// NotifyInstanceChanged records a status reported by an agent for one
// of its instances. Root status is owned by the orchestrator, so a
// report about a root fails with UnauthorizedTransition.
func (o *Orchestrator) NotifyInstanceChanged(appName string, path instance.Path, st status.Status) error {
	if !st.Valid() {
		return errors.NotValidf("status %q", st)
	}
	return o.withInstance(appName, path, func(app *application.ManagedApplication, inst *instance.Instance) error {
		if inst.IsRoot() {
			return errors.Annotatef(coreerrors.UnauthorizedTransition,
				"agent report of %s for root %s%s", st, appName, path)
		}
		o.setStatus(app, inst, st)
		return nil
	})
}
