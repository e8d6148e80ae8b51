// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/command"
	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
)

// AddInstance inserts inst under the instance at parent, or as a new
// root when parent is empty. It fails with ImpossibleInsertion when a
// sibling has the same name or the model refuses the placement.
func (o *Orchestrator) AddInstance(appName string, parent instance.Path, inst *instance.Instance) (err error) {
	span := o.startSpan("AddInstance", appName, parent)
	defer func() { endSpan(span, err) }()

	if inst == nil {
		return errors.NotValidf("nil instance")
	}
	return o.withApplication(appName, func(app *application.ManagedApplication) error {
		tree := app.Tree()
		var parentInst *instance.Instance
		if parent != "" {
			var ok bool
			if parentInst, ok = tree.Get(parent); !ok {
				return errors.Annotatef(coreerrors.ImpossibleInsertion, "parent %s not found in application %q", parent, appName)
			}
		}
		if !o.model.CanHaveChild(parentInst, inst) {
			return errors.Annotatef(coreerrors.ImpossibleInsertion,
				"component %q cannot be placed under %q", inst.Component, describeParent(parentInst))
		}

		inst.Status = status.NotDeployed
		delete(inst.Data, instance.MachineID)
		if err := tree.Add(parent, inst); err != nil {
			return errors.Trace(err)
		}
		if err := o.model.Validate(tree); err != nil {
			if _, rerr := tree.Remove(inst.Path()); rerr != nil {
				o.cfg.Logger.Errorf("rolling back %s: %v", inst.Path(), rerr)
			}
			return errors.Annotatef(coreerrors.ImpossibleInsertion, "adding %s: %v", inst.Name, err)
		}
		inst.SetData(instance.ApplicationName, appName)
		o.cfg.Logger.Infof("added %s%s", appName, inst.Path())
		return nil
	})
}

func describeParent(parent *instance.Instance) string {
	if parent == nil {
		return "(root)"
	}
	return parent.Component
}

// RemoveInstance removes the instance at path and its subtree. It
// fails with UnauthorizedTransition unless every removed instance is
// NOT_DEPLOYED. The agent of a deployed root is told about the
// removal.
func (o *Orchestrator) RemoveInstance(appName string, path instance.Path) (err error) {
	span := o.startSpan("RemoveInstance", appName, path)
	defer func() { endSpan(span, err) }()

	return o.withInstance(appName, path, func(app *application.ManagedApplication, inst *instance.Instance) error {
		tree := app.Tree()
		for _, sub := range tree.Subtree(path) {
			if sub.Status != status.NotDeployed {
				return errors.Annotatef(coreerrors.UnauthorizedTransition,
					"removing %s%s: %s is %s", appName, path, sub.Path(), sub.Status)
			}
		}

		root, _ := tree.RootOf(path)
		if _, err := tree.Remove(path); err != nil {
			return errors.Trace(err)
		}
		o.cfg.Logger.Infof("removed %s%s", appName, path)

		if inst.IsRoot() {
			app.RemoveAwaitingMessages(path)
			return nil
		}
		if root.Status == status.NotDeployed {
			return nil
		}
		d, err := o.messaging()
		if err != nil {
			o.cfg.Logger.Warningf("not telling %s%s about removal of %s: %v", appName, root.Path(), path, err)
			return nil
		}
		d.Dispatch(app, root, command.NewRemoveInstance(path))
		return nil
	})
}
