// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator_test

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/deploymgr/core/command"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/application"
	"github.com/juju/deploymgr/internal/messaging"
	"github.com/juju/deploymgr/internal/messaging/memory"
	"github.com/juju/deploymgr/internal/orchestrator"
	"github.com/juju/deploymgr/internal/provider"
	"github.com/juju/deploymgr/internal/provider/dummy"
	dmtesting "github.com/juju/deploymgr/internal/testing"
)

// baseSuite manages one application "app" made of:
//
//	/vm1 (vm)
//	  /vm1/server (tomcat)
//	    /vm1/server/app1 (war)
//	    /vm1/server/app2 (war)
//	/vm2 (vm)
//	  /vm2/db (mysql)
type baseSuite struct {
	testing.IsolationSuite

	transport    *memory.Transport
	factoryCalls int
	backend      *dummy.Backend
	collector    *orchestrator.Collector
	orchestrator *orchestrator.Orchestrator
	app          *application.ManagedApplication
}

func (s *baseSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)

	s.transport = memory.NewTransport()
	s.factoryCalls = 0
	s.backend = dummy.New()
	s.collector = orchestrator.NewMetricsCollector()
	s.orchestrator = s.newOrchestrator(c, func(cfg *orchestrator.Config) {})
	s.app = s.addApplication(c, "app")
}

func (s *baseSuite) factory() (messaging.Transport, error) {
	s.factoryCalls++
	return s.transport, nil
}

func (s *baseSuite) config(c *gc.C) orchestrator.Config {
	registry := provider.NewRegistry()
	c.Assert(registry.Register("dummy", s.backend), jc.ErrorIsNil)
	registry.SetDefault("dummy")
	provisioner, err := provider.NewProvisioner(provider.ProvisionerConfig{
		Resolver:        registry,
		Clock:           clock.WallClock,
		Logger:          dmtesting.NewCheckLogger(c),
		DestroyAttempts: 1,
		DestroyDelay:    time.Millisecond,
	})
	c.Assert(err, jc.ErrorIsNil)

	return orchestrator.Config{
		TransportFactory: s.factory,
		Provisioner:      provisioner,
		Collector:        s.collector,
		Clock:            clock.WallClock,
		Logger:           dmtesting.NewCheckLogger(c),
	}
}

func (s *baseSuite) newOrchestrator(c *gc.C, mutate func(*orchestrator.Config)) *orchestrator.Orchestrator {
	cfg := s.config(c)
	mutate(&cfg)
	o, err := orchestrator.New(cfg)
	c.Assert(err, jc.ErrorIsNil)
	s.AddCleanup(func(*gc.C) { o.Shutdown() })
	return o
}

func (s *baseSuite) addApplication(c *gc.C, name string) *application.ManagedApplication {
	tree := instance.NewTree()
	c.Assert(tree.Add("", instance.New("vm1", "vm")), jc.ErrorIsNil)
	c.Assert(tree.Add("/vm1", instance.New("server", "tomcat")), jc.ErrorIsNil)
	c.Assert(tree.Add("/vm1/server", instance.New("app1", "war")), jc.ErrorIsNil)
	c.Assert(tree.Add("/vm1/server", instance.New("app2", "war")), jc.ErrorIsNil)
	c.Assert(tree.Add("", instance.New("vm2", "vm")), jc.ErrorIsNil)
	c.Assert(tree.Add("/vm2", instance.New("db", "mysql")), jc.ErrorIsNil)

	app := application.New(name, tree)
	c.Assert(s.orchestrator.AddApplication(app), jc.ErrorIsNil)
	return app
}

func (s *baseSuite) instance(c *gc.C, path instance.Path) *instance.Instance {
	inst, ok := s.app.Tree().Get(path)
	c.Assert(ok, jc.IsTrue, gc.Commentf("instance %s", path))
	return inst
}

// startRoot deploys the root at path and marks its agent as up.
func (s *baseSuite) startRoot(c *gc.C, path instance.Path) {
	c.Assert(s.orchestrator.DeployRoot("app", path), jc.ErrorIsNil)
	c.Assert(s.orchestrator.AcknowledgeHeartbeat("app", path, "10.0.0.1"), jc.ErrorIsNil)
	c.Assert(s.instance(c, path).Status, gc.Equals, status.DeployedStarted)
}

// target returns the probe target of the root at path as the
// heartbeat worker would see it now.
func (s *baseSuite) target(c *gc.C, path instance.Path) orchestrator.ProbeTarget {
	root := s.instance(c, path)
	return orchestrator.ProbeTarget{
		Application: "app",
		Root:        path,
		Status:      root.Status,
		MachineID:   root.MachineID(),
	}
}

func (s *baseSuite) start(path instance.Path) command.Command {
	return command.NewChangeInstanceState(path, status.DeployedStarted, nil)
}

func (s *baseSuite) stop(path instance.Path) command.Command {
	return command.NewChangeInstanceState(path, status.DeployedStopped, nil)
}

// kinds returns the kinds of the given commands, for short checks.
func kinds(cmds []command.Command) []command.Kind {
	var result []command.Kind
	for _, cmd := range cmds {
		result = append(result, cmd.Kind)
	}
	return result
}
