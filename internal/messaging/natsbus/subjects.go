// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package natsbus

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/juju/errors"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "deploymgr"

// AgentSubject returns the subject the agent of the given root
// listens on for commands.
func AgentSubject(prefix, application string, root instance.Path) string {
	return strings.Join([]string{prefix, "agent", token(application), token(root.Name())}, ".")
}

// PingSubject returns the subject the agent of the given root answers
// liveness requests on.
func PingSubject(prefix, application string, root instance.Path) string {
	return AgentSubject(prefix, application, root) + ".ping"
}

// HeartbeatSubject returns the subject an agent publishes its
// heartbeats on.
func HeartbeatSubject(prefix, application string, root instance.Path) string {
	return strings.Join([]string{prefix, "heartbeat", token(application), token(root.Name())}, ".")
}

// heartbeatWildcard matches every agent heartbeat.
func heartbeatWildcard(prefix string) string {
	return prefix + ".heartbeat.>"
}

// StatusSubject returns the subject an agent publishes the status of
// its instances on.
func StatusSubject(prefix, application string, root instance.Path) string {
	return strings.Join([]string{prefix, "status", token(application), token(root.Name())}, ".")
}

// statusWildcard matches every agent status report.
func statusWildcard(prefix string) string {
	return prefix + ".status.>"
}

// token makes s usable as a single subject token. Separators,
// wildcards and white space become underscores.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', unicode.IsSpace(r):
			return '_'
		}
		return r
	}, s)
}

// Envelope is the payload of a command message.
type Envelope struct {
	Application string          `json:"application"`
	Root        instance.Path   `json:"root"`
	Command     command.Command `json:"command"`
}

// Heartbeat is the payload an agent publishes periodically.
type Heartbeat struct {
	Application string        `json:"application"`
	Root        instance.Path `json:"root"`
	IPAddress   string        `json:"ip-address,omitempty"`
}

// StatusReport is the payload an agent publishes when one of its
// instances changes status.
type StatusReport struct {
	Application string        `json:"application"`
	Path        instance.Path `json:"path"`
	Status      status.Status `json:"status"`
}

func encodeEnvelope(application string, root instance.Path, cmd command.Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	data, err := json.Marshal(Envelope{
		Application: application,
		Root:        root,
		Command:     cmd,
	})
	return data, errors.Trace(err)
}

// DecodeEnvelope parses a command message, as an agent does.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, errors.Annotate(err, "decoding command")
	}
	if err := env.Command.Validate(); err != nil {
		return Envelope{}, errors.Trace(err)
	}
	return env, nil
}

func decodeHeartbeat(data []byte) (Heartbeat, error) {
	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return Heartbeat{}, errors.Annotate(err, "decoding heartbeat")
	}
	if hb.Application == "" || !hb.Root.IsRoot() {
		return Heartbeat{}, errors.NotValidf("heartbeat from %q %q", hb.Application, hb.Root)
	}
	return hb, nil
}

func decodeStatusReport(data []byte) (StatusReport, error) {
	var report StatusReport
	if err := json.Unmarshal(data, &report); err != nil {
		return StatusReport{}, errors.Annotate(err, "decoding status report")
	}
	if report.Application == "" || report.Path == "" || !report.Status.Valid() {
		return StatusReport{}, errors.NotValidf("status report %q %q %q", report.Application, report.Path, report.Status)
	}
	return report, nil
}
