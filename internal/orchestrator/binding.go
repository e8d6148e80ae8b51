// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator

import (
	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
)

// BindApplication tells the agents of the application that exports
// with the given prefix are provided by the named applications. The
// command goes to every root that is not NOT_DEPLOYED, through the
// usual send-or-queue decision.
func (o *Orchestrator) BindApplication(appName, prefix string, boundApplications ...string) (err error) {
	span := o.startSpan("BindApplication", appName, "")
	defer func() { endSpan(span, err) }()

	cmd := command.NewChangeBinding(prefix, boundApplications...)
	if err := cmd.Validate(); err != nil {
		return errors.Trace(err)
	}
	return o.withApplication(appName, func(app *application.ManagedApplication) error {
		d, err := o.messaging()
		if err != nil {
			return errors.Trace(err)
		}
		for _, root := range app.Tree().Roots() {
			if root.Status == status.NotDeployed {
				continue
			}
			d.Dispatch(app, root, cmd)
		}
		return nil
	})
}
