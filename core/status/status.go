// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package status

import (
	"github.com/juju/errors"
)

// Status represents the deployment state of an instance.
//
// Root instances move through Deploying while their machine is being
// provisioned. All other instances move between NotDeployed,
// DeployedStopped and DeployedStarted under the control of the agent
// running on their root's machine.
type Status string

// String returns a string representation of the Status.
func (s Status) String() string {
	return string(s)
}

const (
	// NotDeployed is both the initial and the terminal status of an
	// instance. A root instance in this status has no machine.
	NotDeployed Status = "not-deployed"

	// Deploying is set on a root instance once its machine has been
	// requested from the provisioning backend, and until its agent
	// is known to be reachable.
	Deploying Status = "deploying"

	// DeployedStarted is set when:
	// The instance is deployed and running. For a root instance, this
	// means its agent is presumed reachable.
	DeployedStarted Status = "deployed-started"

	// DeployedStopped is set when the instance is installed but not
	// running.
	DeployedStopped Status = "deployed-stopped"

	// Starting is set by an agent while it starts an instance.
	Starting Status = "starting"

	// Problem is set when:
	// The agent did not answer a liveness probe, or it reported an error.
	Problem Status = "problem"
)

// Valid returns true if s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case
		NotDeployed,
		Deploying,
		DeployedStarted,
		DeployedStopped,
		Starting,
		Problem:
		return true
	}
	return false
}

// Provisioned returns true for the root statuses in which a machine
// exists for the root: DEPLOYING, DEPLOYED_STARTED and PROBLEM.
func (s Status) Provisioned() bool {
	switch s {
	case Deploying, DeployedStarted, Problem:
		return true
	}
	return false
}

// ParseStatus returns the Status named by value.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", errors.NotValidf("status %q", value)
	}
	return s, nil
}
