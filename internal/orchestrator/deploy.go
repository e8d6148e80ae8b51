// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	stderrors "errors"

	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
	"github.com/juju/deploymgr/internal/messaging"
)

// ChangeInstanceState moves the instance at path toward target.
//
// On a root, only NOT_DEPLOYED -> DEPLOYED_STARTED (provision) and
// DEPLOYING, DEPLOYED_STARTED or PROBLEM -> NOT_DEPLOYED (deprovision)
// have an effect. Any other request is ignored.
//
// On any other instance, a ChangeInstanceState command is dispatched
// to the root's agent. The local status is left for the agent to
// confirm.
func (o *Orchestrator) ChangeInstanceState(appName string, path instance.Path, target status.Status) (err error) {
	span := o.startSpan("ChangeInstanceState", appName, path)
	defer func() { endSpan(span, err) }()

	if !target.Valid() {
		return errors.NotValidf("target status %q", target)
	}
	return o.withInstance(appName, path, func(app *application.ManagedApplication, inst *instance.Instance) error {
		return errors.Trace(o.changeInstanceState(app, inst, target))
	})
}

func (o *Orchestrator) changeInstanceState(app *application.ManagedApplication, inst *instance.Instance, target status.Status) error {
	if inst.IsRoot() {
		switch {
		case target == status.DeployedStarted && inst.Status == status.NotDeployed:
			return o.deployRoot(app, inst)
		case target == status.NotDeployed && inst.Status.Provisioned():
			return o.undeployRoot(app, inst)
		}
		o.cfg.Logger.Debugf("ignoring %s for root %s%s (%s)", target, app.Name(), inst.Path(), inst.Status)
		return nil
	}

	d, err := o.messaging()
	if err != nil {
		return errors.Trace(err)
	}
	return o.dispatchStateChange(d, app, inst, target)
}

// dispatchStateChange builds the state change command of inst and
// sends or queues it for its root.
func (o *Orchestrator) dispatchStateChange(d *messaging.Dispatcher, app *application.ManagedApplication, inst *instance.Instance, target status.Status) error {
	root, ok := app.Tree().RootOf(inst.Path())
	if !ok {
		return errors.NotFoundf("root of %s", inst.Path())
	}
	var resources map[string][]byte
	if target != status.NotDeployed {
		var err error
		if resources, err = o.model.Resources(app.Name(), inst); err != nil {
			return errors.Annotatef(err, "resources of %s%s", app.Name(), inst.Path())
		}
	}
	d.Dispatch(app, root, command.NewChangeInstanceState(inst.Path(), target, resources))
	return nil
}

// DeployRoot provisions the machine of the root instance at path. It
// does nothing for a non-root instance or a root that already has a
// machine.
func (o *Orchestrator) DeployRoot(appName string, path instance.Path) (err error) {
	span := o.startSpan("DeployRoot", appName, path)
	defer func() { endSpan(span, err) }()

	return o.withInstance(appName, path, func(app *application.ManagedApplication, inst *instance.Instance) error {
		return errors.Trace(o.deployRoot(app, inst))
	})
}

func (o *Orchestrator) deployRoot(app *application.ManagedApplication, root *instance.Instance) error {
	if !root.IsRoot() {
		return nil
	}
	if id := root.MachineID(); id != "" {
		o.cfg.Logger.Debugf("%s%s already provisioned as %q", app.Name(), root.Path(), id)
		return nil
	}
	d, err := o.messaging()
	if err != nil {
		return errors.Trace(err)
	}

	id, err := o.cfg.Provisioner.CreateMachine(app.Name(), root)
	o.recordProvisioning("create", err)
	if err != nil {
		return errors.Trace(err)
	}
	root.SetData(instance.MachineID, id)
	o.setStatus(app, root, status.Deploying)

	subtree := app.Tree().Subtree(root.Path())
	descriptions := make([]instance.Description, len(subtree))
	for i, inst := range subtree {
		descriptions[i] = inst.Description()
	}
	// The root is DEPLOYING so this always queues: there is no agent
	// to talk to yet.
	d.Dispatch(app, root, command.NewSetRootInstance(descriptions))
	o.cfg.Logger.Infof("deploying %s%s on machine %q", app.Name(), root.Path(), id)
	return nil
}

// UndeployRoot destroys the machine of the root instance at path and
// discards every command still queued for it. It does nothing for a
// non-root instance.
func (o *Orchestrator) UndeployRoot(appName string, path instance.Path) (err error) {
	span := o.startSpan("UndeployRoot", appName, path)
	defer func() { endSpan(span, err) }()

	return o.withInstance(appName, path, func(app *application.ManagedApplication, inst *instance.Instance) error {
		return errors.Trace(o.undeployRoot(app, inst))
	})
}

func (o *Orchestrator) undeployRoot(app *application.ManagedApplication, root *instance.Instance) error {
	if !root.IsRoot() {
		return nil
	}
	if root.MachineID() == "" {
		o.setStatus(app, root, status.NotDeployed)
		return nil
	}

	err := o.cfg.Provisioner.DestroyMachine(app.Name(), root)
	o.recordProvisioning("destroy", err)
	if err != nil {
		return errors.Trace(err)
	}
	delete(root.Data, instance.MachineID)
	delete(root.Data, instance.IPAddress)

	// The agent is gone with its machine, and so is everything it ran.
	for _, inst := range app.Tree().Subtree(root.Path()) {
		o.setStatus(app, inst, status.NotDeployed)
	}
	if discarded := app.RemoveAwaitingMessages(root.Path()); len(discarded) > 0 {
		o.cfg.Logger.Debugf("discarded %d commands queued for %s%s", len(discarded), app.Name(), root.Path())
	}
	o.cfg.Logger.Infof("undeployed %s%s", app.Name(), root.Path())
	return nil
}

// DeployAndStartAll deploys and starts instances top-down. An empty
// path targets the whole application: every root is deployed, then a
// start command is issued for each of its descendants. A root path
// does the same for that root only; any other path starts that
// instance and its descendants without provisioning.
func (o *Orchestrator) DeployAndStartAll(appName string, path instance.Path) (err error) {
	span := o.startSpan("DeployAndStartAll", appName, path)
	defer func() { endSpan(span, err) }()

	return o.withApplication(appName, func(app *application.ManagedApplication) error {
		d, err := o.messaging()
		if err != nil {
			return errors.Trace(err)
		}
		if path == "" {
			for _, root := range app.Tree().Roots() {
				if err := o.deployAndStartRoot(d, app, root); err != nil {
					return errors.Trace(err)
				}
			}
			return nil
		}

		inst, ok := app.Tree().Get(path)
		if !ok {
			return errors.NotFoundf("instance %s in application %q", path, appName)
		}
		if inst.IsRoot() {
			return errors.Trace(o.deployAndStartRoot(d, app, inst))
		}
		for _, target := range app.Tree().Subtree(path) {
			if err := o.dispatchStateChange(d, app, target, status.DeployedStarted); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

func (o *Orchestrator) deployAndStartRoot(d *messaging.Dispatcher, app *application.ManagedApplication, root *instance.Instance) error {
	if err := o.deployRoot(app, root); err != nil {
		return errors.Trace(err)
	}
	for _, inst := range app.Tree().Descendants(root.Path()) {
		if err := o.dispatchStateChange(d, app, inst, status.DeployedStarted); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// StopAll stops instances. An empty path targets the whole
// application: one stop command is issued per topmost non-root
// instance, the agent stopping the subtree below it. A non-root path
// issues one stop command for that instance. A root path does
// nothing.
func (o *Orchestrator) StopAll(appName string, path instance.Path) (err error) {
	span := o.startSpan("StopAll", appName, path)
	defer func() { endSpan(span, err) }()

	return o.withApplication(appName, func(app *application.ManagedApplication) error {
		var targets []*instance.Instance
		if path == "" {
			for _, root := range app.Tree().Roots() {
				targets = append(targets, app.Tree().Children(root.Path())...)
			}
		} else {
			inst, ok := app.Tree().Get(path)
			if !ok {
				return errors.NotFoundf("instance %s in application %q", path, appName)
			}
			if !inst.IsRoot() {
				targets = append(targets, inst)
			}
		}
		if len(targets) == 0 {
			return nil
		}

		d, err := o.messaging()
		if err != nil {
			return errors.Trace(err)
		}
		for _, inst := range targets {
			if err := o.dispatchStateChange(d, app, inst, status.DeployedStopped); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

// UndeployAll undeploys instances. An empty path undeploys every
// root; no agent is told since its machine goes away. Every root is
// attempted and the failures are combined. A root path undeploys that
// root; any other path issues one NOT_DEPLOYED command for it.
func (o *Orchestrator) UndeployAll(appName string, path instance.Path) (err error) {
	span := o.startSpan("UndeployAll", appName, path)
	defer func() { endSpan(span, err) }()

	return o.withApplication(appName, func(app *application.ManagedApplication) error {
		if path == "" {
			var errs []error
			for _, root := range app.Tree().Roots() {
				if err := o.undeployRoot(app, root); err != nil {
					errs = append(errs, err)
				}
			}
			return stderrors.Join(errs...)
		}

		inst, ok := app.Tree().Get(path)
		if !ok {
			return errors.NotFoundf("instance %s in application %q", path, appName)
		}
		if inst.IsRoot() {
			return errors.Trace(o.undeployRoot(app, inst))
		}
		d, err := o.messaging()
		if err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(o.dispatchStateChange(d, app, inst, status.NotDeployed))
	})
}

// ResynchronizeAgents asks the agent of every root that is not
// NOT_DEPLOYED to re-send its state. Commands are sent, never queued;
// every root is attempted and delivery failures are combined.
func (o *Orchestrator) ResynchronizeAgents(appName string) (err error) {
	span := o.startSpan("ResynchronizeAgents", appName, "")
	defer func() { endSpan(span, err) }()

	return o.withApplication(appName, func(app *application.ManagedApplication) error {
		d, err := o.messaging()
		if err != nil {
			return errors.Trace(err)
		}
		var errs []error
		for _, root := range app.Tree().Roots() {
			if root.Status == status.NotDeployed {
				continue
			}
			if err := d.Send(app.Name(), root.Path(), command.NewResynchronize()); err != nil {
				errs = append(errs, err)
			}
		}
		return stderrors.Join(errs...)
	})
}

func (o *Orchestrator) recordProvisioning(op string, err error) {
	if o.cfg.Collector != nil {
		o.cfg.Collector.Provisioned(op, err == nil)
	}
}
