// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package errors holds the error values returned by the orchestration
// engine. Callers match them with errors.Is.
package errors

import "github.com/juju/errors"

const (
	// ConfigurationInvalid is returned when no usable transport or
	// provisioner is configured for the attempted operation. The
	// orchestrator remains usable for other applications.
	ConfigurationInvalid = errors.ConstError("configuration invalid")

	// ProvisioningFailure is returned when no backend can be resolved
	// for a root instance, or when the backend rejects a create or
	// destroy request. The backend's own error is kept in the chain.
	ProvisioningFailure = errors.ConstError("provisioning failure")

	// DeliveryFailure is returned by a transport when a command cannot
	// be handed to the message bus.
	DeliveryFailure = errors.ConstError("delivery failure")

	// UnauthorizedTransition is returned when a business rule forbids
	// the requested change, such as removing a deployed instance.
	UnauthorizedTransition = errors.ConstError("unauthorized transition")

	// ImpossibleInsertion is returned when an instance cannot be added
	// to the tree at the requested place.
	ImpossibleInsertion = errors.ConstError("impossible insertion")
)
