// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package orchestrator_test

import (
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/deploymgr/core/command"
	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/core/status"
	"github.com/juju/deploymgr/internal/messaging"
	"github.com/juju/deploymgr/internal/model"
	"github.com/juju/deploymgr/internal/orchestrator"
	"github.com/juju/deploymgr/internal/provider/dummy"
)

type deploySuite struct {
	baseSuite
}

var _ = gc.Suite(&deploySuite{})

func (s *deploySuite) TestDeployRoot(c *gc.C) {
	err := s.orchestrator.DeployRoot("app", "/vm1")
	c.Assert(err, jc.ErrorIsNil)

	root := s.instance(c, "/vm1")
	c.Check(root.Status, gc.Equals, status.Deploying)
	c.Check(root.MachineID(), gc.Matches, "dummy-.+")
	c.Check(s.backend.CreateCount(), gc.Equals, 1)
	c.Check(s.backend.Machines(), jc.DeepEquals, map[string]bool{"app/vm1": true})

	queued := s.app.AwaitingMessages("/vm1")
	c.Assert(queued, gc.HasLen, 1)
	c.Check(queued[0].Kind, gc.Equals, command.SetRootInstance)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
}

func (s *deploySuite) TestDeployRootCarriesSubtree(c *gc.C) {
	err := s.orchestrator.DeployRoot("app", "/vm1")
	c.Assert(err, jc.ErrorIsNil)

	cmd := s.app.AwaitingMessages("/vm1")[0]
	c.Assert(cmd.Validate(), jc.ErrorIsNil)
	var paths []instance.Path
	for _, desc := range cmd.Instances {
		paths = append(paths, desc.Path)
	}
	c.Check(paths, jc.DeepEquals, []instance.Path{
		"/vm1", "/vm1/server", "/vm1/server/app1", "/vm1/server/app2",
	})
	c.Check(cmd.Instances[0].Data[instance.MachineID], gc.Equals, s.instance(c, "/vm1").MachineID())
	c.Check(cmd.Instances[0].Data[instance.ApplicationName], gc.Equals, "app")
}

func (s *deploySuite) TestDeployRootIsIdempotent(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)

	c.Check(s.backend.CreateCount(), gc.Equals, 1)
	c.Check(s.app.AwaitingMessages("/vm1"), gc.HasLen, 1)
}

func (s *deploySuite) TestDeployRootIgnoresNonRoot(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1/server"), jc.ErrorIsNil)

	c.Check(s.backend.CreateCount(), gc.Equals, 0)
	c.Check(s.instance(c, "/vm1/server").Status, gc.Equals, status.NotDeployed)
}

func (s *deploySuite) TestDeployRootProvisioningFailure(c *gc.C) {
	s.backend.SetBroken("CreateMachine")

	err := s.orchestrator.DeployRoot("app", "/vm1")
	c.Check(errors.Is(err, coreerrors.ProvisioningFailure), jc.IsTrue)
	c.Check(err, gc.ErrorMatches, `.*dummy.CreateMachine is broken`)

	root := s.instance(c, "/vm1")
	c.Check(root.Status, gc.Equals, status.NotDeployed)
	c.Check(root.MachineID(), gc.Equals, "")
	c.Check(s.app.HasAwaitingMessages("/vm1"), jc.IsFalse)
}

func (s *deploySuite) TestDeployRootWithoutMessaging(c *gc.C) {
	s.orchestrator = s.newOrchestrator(c, func(cfg *orchestrator.Config) {
		cfg.TransportFactory = nil
	})
	s.app = s.addApplication(c, "app")

	err := s.orchestrator.DeployRoot("app", "/vm1")
	c.Check(errors.Is(err, coreerrors.ConfigurationInvalid), jc.IsTrue)
	c.Check(s.backend.CreateCount(), gc.Equals, 0)
}

func (s *deploySuite) TestTransportFactoryFailure(c *gc.C) {
	cause := errors.New("no broker")
	s.orchestrator = s.newOrchestrator(c, func(cfg *orchestrator.Config) {
		cfg.TransportFactory = func() (messaging.Transport, error) {
			return nil, cause
		}
	})
	s.app = s.addApplication(c, "app")

	err := s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.DeployedStarted)
	c.Check(errors.Is(err, coreerrors.ConfigurationInvalid), jc.IsTrue)
	c.Check(errors.Is(err, cause), jc.IsTrue)
}

func (s *deploySuite) TestTransportCreatedOnce(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
	c.Assert(s.orchestrator.DeployRoot("app", "/vm2"), jc.ErrorIsNil)
	c.Check(s.factoryCalls, gc.Equals, 1)
}

func (s *deploySuite) TestUndeployRoot(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
	c.Assert(s.orchestrator.AcknowledgeHeartbeat("app", "/vm1", ""), jc.ErrorIsNil)
	c.Assert(s.orchestrator.NotifyInstanceChanged("app", "/vm1/server", status.DeployedStarted), jc.ErrorIsNil)
	s.app.StoreAwaitingMessage("/vm1", s.start("/vm1/server/app1"))

	err := s.orchestrator.UndeployRoot("app", "/vm1")
	c.Assert(err, jc.ErrorIsNil)

	root := s.instance(c, "/vm1")
	c.Check(root.Status, gc.Equals, status.NotDeployed)
	c.Check(root.MachineID(), gc.Equals, "")
	c.Check(s.instance(c, "/vm1/server").Status, gc.Equals, status.NotDeployed)
	c.Check(s.backend.Machines(), jc.DeepEquals, map[string]bool{"app/vm1": false})
	c.Check(s.backend.DestroyCount(), gc.Equals, 1)
	c.Check(s.app.HasAwaitingMessages("/vm1"), jc.IsFalse)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
}

func (s *deploySuite) TestUndeployRootWithoutMachine(c *gc.C) {
	s.instance(c, "/vm1").Status = status.Problem
	s.app.StoreAwaitingMessage("/vm1", s.start("/vm1/server"))

	err := s.orchestrator.UndeployRoot("app", "/vm1")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.NotDeployed)
	c.Check(s.backend.DestroyCount(), gc.Equals, 0)
	c.Check(s.app.AwaitingMessages("/vm1"), gc.HasLen, 1)
}

func (s *deploySuite) TestUndeployRootDestroyFailure(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
	s.backend.SetBroken("DestroyMachine")

	err := s.orchestrator.UndeployRoot("app", "/vm1")
	c.Check(errors.Is(err, coreerrors.ProvisioningFailure), jc.IsTrue)

	root := s.instance(c, "/vm1")
	c.Check(root.Status, gc.Equals, status.Deploying)
	c.Check(root.MachineID(), gc.Not(gc.Equals), "")
	c.Check(s.app.HasAwaitingMessages("/vm1"), jc.IsTrue)
}

func (s *deploySuite) TestChangeInstanceStateRootNoop(c *gc.C) {
	for _, target := range []status.Status{status.DeployedStopped, status.Starting, status.Problem, status.NotDeployed} {
		err := s.orchestrator.ChangeInstanceState("app", "/vm1", target)
		c.Assert(err, jc.ErrorIsNil)
	}
	c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.NotDeployed)
	c.Check(s.backend.CreateCount(), gc.Equals, 0)
	c.Check(s.backend.DestroyCount(), gc.Equals, 0)
	c.Check(s.app.AwaitingRoots(), gc.HasLen, 0)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
}

func (s *deploySuite) TestChangeInstanceStateRootDeployAndUndeploy(c *gc.C) {
	err := s.orchestrator.ChangeInstanceState("app", "/vm1", status.DeployedStarted)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.Deploying)

	// Deploying again is ignored: the root is no longer NOT_DEPLOYED.
	err = s.orchestrator.ChangeInstanceState("app", "/vm1", status.DeployedStarted)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.backend.CreateCount(), gc.Equals, 1)

	err = s.orchestrator.ChangeInstanceState("app", "/vm1", status.NotDeployed)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.NotDeployed)
	c.Check(s.backend.DestroyCount(), gc.Equals, 1)
}

func (s *deploySuite) TestChangeInstanceStateRootUndeployOnlyFromProvisionedStatus(c *gc.C) {
	for _, current := range []status.Status{status.DeployedStopped, status.Starting} {
		s.backend = dummy.New()
		s.orchestrator = s.newOrchestrator(c, func(*orchestrator.Config) {})
		s.app = s.addApplication(c, "app")
		c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
		root := s.instance(c, "/vm1")
		machineID := root.MachineID()
		root.Status = current

		err := s.orchestrator.ChangeInstanceState("app", "/vm1", status.NotDeployed)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(root.Status, gc.Equals, current)
		c.Check(root.MachineID(), gc.Equals, machineID)
		c.Check(s.backend.DestroyCount(), gc.Equals, 0, gc.Commentf("from %s", current))
	}

	for _, current := range []status.Status{status.Deploying, status.DeployedStarted, status.Problem} {
		s.backend = dummy.New()
		s.orchestrator = s.newOrchestrator(c, func(*orchestrator.Config) {})
		s.app = s.addApplication(c, "app")
		c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
		s.instance(c, "/vm1").Status = current

		err := s.orchestrator.ChangeInstanceState("app", "/vm1", status.NotDeployed)
		c.Assert(err, jc.ErrorIsNil)
		c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.NotDeployed)
		c.Check(s.backend.DestroyCount(), gc.Equals, 1, gc.Commentf("from %s", current))
	}
}

func (s *deploySuite) TestChangeInstanceStateChildQueuedWhileDeploying(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
	s.app.RemoveAwaitingMessages("/vm1")

	err := s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.DeployedStarted)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.app.AwaitingMessages("/vm1"), jc.DeepEquals, []command.Command{s.start("/vm1/server")})
	c.Check(s.transport.Messages(), gc.HasLen, 0)
	c.Check(s.instance(c, "/vm1/server").Status, gc.Equals, status.NotDeployed)
}

func (s *deploySuite) TestChangeInstanceStateChildSentWhenStarted(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.app.RemoveAwaitingMessages("/vm1")

	err := s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.DeployedStarted)
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.transport.Commands("app", "/vm1"), jc.DeepEquals, []command.Command{s.start("/vm1/server")})
	c.Check(s.app.HasAwaitingMessages("/vm1"), jc.IsFalse)
}

func (s *deploySuite) TestChangeInstanceStateChildSendFailureSwallowed(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.app.RemoveAwaitingMessages("/vm1")
	s.transport.SetFailures(errors.New("agent gone"))

	err := s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.DeployedStopped)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
	c.Check(s.app.HasAwaitingMessages("/vm1"), jc.IsFalse)
}

func (s *deploySuite) TestChangeInstanceStateChildWithoutMessaging(c *gc.C) {
	s.orchestrator = s.newOrchestrator(c, func(cfg *orchestrator.Config) {
		cfg.TransportFactory = nil
	})
	s.app = s.addApplication(c, "app")

	err := s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.DeployedStarted)
	c.Check(errors.Is(err, coreerrors.ConfigurationInvalid), jc.IsTrue)
	c.Check(s.app.AwaitingRoots(), gc.HasLen, 0)

	// Undeploying a root needs no messaging.
	c.Check(s.orchestrator.UndeployRoot("app", "/vm1"), jc.ErrorIsNil)
}

func (s *deploySuite) TestChangeInstanceStateResources(c *gc.C) {
	rules, err := model.NewRules([]model.Component{
		{Name: "vm", Root: true, Children: []string{"tomcat", "mysql"}},
		{Name: "tomcat", Children: []string{"war"}, Resources: map[string]string{"start.sh": "run"}},
		{Name: "war"},
		{Name: "mysql"},
	})
	c.Assert(err, jc.ErrorIsNil)
	s.orchestrator = s.newOrchestrator(c, func(cfg *orchestrator.Config) {
		cfg.Model = rules
	})
	s.app = s.addApplication(c, "app")

	c.Assert(s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.DeployedStarted), jc.ErrorIsNil)
	c.Assert(s.orchestrator.ChangeInstanceState("app", "/vm1/server", status.NotDeployed), jc.ErrorIsNil)

	queued := s.app.AwaitingMessages("/vm1")
	c.Assert(queued, gc.HasLen, 2)
	c.Check(queued[0].Resources, jc.DeepEquals, map[string][]byte{"start.sh": []byte("run")})
	c.Check(queued[1].Resources, gc.IsNil)
	c.Check(queued[1].Status, gc.Equals, status.NotDeployed)
}

func (s *deploySuite) TestChangeInstanceStateUnknown(c *gc.C) {
	err := s.orchestrator.ChangeInstanceState("app", "/nope", status.DeployedStarted)
	c.Check(err, jc.ErrorIs, errors.NotFound)
	err = s.orchestrator.ChangeInstanceState("other", "/vm1", status.DeployedStarted)
	c.Check(err, jc.ErrorIs, errors.NotFound)
	err = s.orchestrator.ChangeInstanceState("app", "/vm1", status.Status("bogus"))
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *deploySuite) TestDeployAndStartAllWholeApplication(c *gc.C) {
	err := s.orchestrator.DeployAndStartAll("app", "")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.backend.CreateCount(), gc.Equals, 2)
	c.Check(s.transport.Messages(), gc.HasLen, 0)

	vm1 := s.app.AwaitingMessages("/vm1")
	c.Assert(vm1, gc.HasLen, 4)
	c.Check(vm1[0].Kind, gc.Equals, command.SetRootInstance)
	c.Check(vm1[1:], jc.DeepEquals, []command.Command{
		s.start("/vm1/server"),
		s.start("/vm1/server/app1"),
		s.start("/vm1/server/app2"),
	})

	vm2 := s.app.AwaitingMessages("/vm2")
	c.Assert(vm2, gc.HasLen, 2)
	c.Check(vm2[0].Kind, gc.Equals, command.SetRootInstance)
	c.Check(vm2[1], jc.DeepEquals, s.start("/vm2/db"))
}

func (s *deploySuite) TestDeployAndStartAllSendsToStartedRoot(c *gc.C) {
	s.startRoot(c, "/vm2")
	s.app.RemoveAwaitingMessages("/vm2")

	err := s.orchestrator.DeployAndStartAll("app", "")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.backend.CreateCount(), gc.Equals, 2)
	c.Check(s.transport.Commands("app", "/vm2"), jc.DeepEquals, []command.Command{s.start("/vm2/db")})
	c.Check(s.app.HasAwaitingMessages("/vm2"), jc.IsFalse)
	c.Check(kinds(s.app.AwaitingMessages("/vm1")), jc.DeepEquals, []command.Kind{
		command.SetRootInstance,
		command.ChangeInstanceState,
		command.ChangeInstanceState,
		command.ChangeInstanceState,
	})
}

func (s *deploySuite) TestDeployAndStartAllRoot(c *gc.C) {
	err := s.orchestrator.DeployAndStartAll("app", "/vm2")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.backend.CreateCount(), gc.Equals, 1)
	c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.NotDeployed)
	c.Check(kinds(s.app.AwaitingMessages("/vm2")), jc.DeepEquals, []command.Kind{
		command.SetRootInstance,
		command.ChangeInstanceState,
	})
	c.Check(s.app.HasAwaitingMessages("/vm1"), jc.IsFalse)
}

func (s *deploySuite) TestDeployAndStartAllNonRoot(c *gc.C) {
	err := s.orchestrator.DeployAndStartAll("app", "/vm1/server")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.backend.CreateCount(), gc.Equals, 0)
	c.Check(s.app.AwaitingMessages("/vm1"), jc.DeepEquals, []command.Command{
		s.start("/vm1/server"),
		s.start("/vm1/server/app1"),
		s.start("/vm1/server/app2"),
	})
}

func (s *deploySuite) TestDeployAndStartAllStopsAtProvisioningFailure(c *gc.C) {
	s.backend.SetBroken("CreateMachine")

	err := s.orchestrator.DeployAndStartAll("app", "")
	c.Check(errors.Is(err, coreerrors.ProvisioningFailure), jc.IsTrue)
	c.Check(s.app.AwaitingRoots(), gc.HasLen, 0)
}

func (s *deploySuite) TestStopAllWholeApplication(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.startRoot(c, "/vm2")
	s.app.ClearAwaitingMessages()

	err := s.orchestrator.StopAll("app", "")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.transport.Commands("app", "/vm1"), jc.DeepEquals, []command.Command{s.stop("/vm1/server")})
	c.Check(s.transport.Commands("app", "/vm2"), jc.DeepEquals, []command.Command{s.stop("/vm2/db")})
	c.Check(s.transport.Messages(), gc.HasLen, 2)
}

func (s *deploySuite) TestStopAllQueuesForUnstartedRoots(c *gc.C) {
	err := s.orchestrator.StopAll("app", "")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.app.AwaitingMessages("/vm1"), jc.DeepEquals, []command.Command{s.stop("/vm1/server")})
	c.Check(s.app.AwaitingMessages("/vm2"), jc.DeepEquals, []command.Command{s.stop("/vm2/db")})
	c.Check(s.transport.Messages(), gc.HasLen, 0)
}

func (s *deploySuite) TestStopAllRootIsNoop(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.app.ClearAwaitingMessages()

	err := s.orchestrator.StopAll("app", "/vm1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
	c.Check(s.app.AwaitingRoots(), gc.HasLen, 0)
}

func (s *deploySuite) TestStopAllNonRoot(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.app.ClearAwaitingMessages()

	err := s.orchestrator.StopAll("app", "/vm1/server/app2")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.transport.Messages(), gc.HasLen, 1)
	c.Check(s.transport.Commands("app", "/vm1"), jc.DeepEquals, []command.Command{s.stop("/vm1/server/app2")})
}

func (s *deploySuite) TestUndeployAllWholeApplication(c *gc.C) {
	s.startRoot(c, "/vm1")
	c.Assert(s.orchestrator.DeployRoot("app", "/vm2"), jc.ErrorIsNil)

	err := s.orchestrator.UndeployAll("app", "")
	c.Assert(err, jc.ErrorIsNil)

	for _, inst := range s.app.Tree().All() {
		c.Check(inst.Status, gc.Equals, status.NotDeployed, gc.Commentf("%s", inst.Path()))
	}
	c.Check(s.backend.Machines(), jc.DeepEquals, map[string]bool{"app/vm1": false, "app/vm2": false})
	c.Check(s.app.AwaitingRoots(), gc.HasLen, 0)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
}

func (s *deploySuite) TestUndeployAllCombinesFailures(c *gc.C) {
	c.Assert(s.orchestrator.DeployRoot("app", "/vm1"), jc.ErrorIsNil)
	c.Assert(s.orchestrator.DeployRoot("app", "/vm2"), jc.ErrorIsNil)
	s.backend.SetBroken("DestroyMachine")

	err := s.orchestrator.UndeployAll("app", "")
	c.Check(errors.Is(err, coreerrors.ProvisioningFailure), jc.IsTrue)
	c.Check(err, gc.ErrorMatches, `(?s).*/vm1.*\n.*/vm2.*`)
}

func (s *deploySuite) TestUndeployAllNonRoot(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.app.ClearAwaitingMessages()

	err := s.orchestrator.UndeployAll("app", "/vm1/server")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.transport.Commands("app", "/vm1"), jc.DeepEquals, []command.Command{
		command.NewChangeInstanceState("/vm1/server", status.NotDeployed, nil),
	})
	c.Check(s.backend.DestroyCount(), gc.Equals, 0)
}

func (s *deploySuite) TestUndeployAllRoot(c *gc.C) {
	s.startRoot(c, "/vm1")

	err := s.orchestrator.UndeployAll("app", "/vm1")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.instance(c, "/vm1").Status, gc.Equals, status.NotDeployed)
	c.Check(s.backend.DestroyCount(), gc.Equals, 1)
}

func (s *deploySuite) TestResynchronizeAgents(c *gc.C) {
	s.startRoot(c, "/vm1")
	c.Assert(s.orchestrator.DeployRoot("app", "/vm2"), jc.ErrorIsNil)

	err := s.orchestrator.ResynchronizeAgents("app")
	c.Assert(err, jc.ErrorIsNil)

	c.Check(s.transport.Commands("app", "/vm1"), jc.DeepEquals, []command.Command{command.NewResynchronize()})
	c.Check(s.transport.Commands("app", "/vm2"), jc.DeepEquals, []command.Command{command.NewResynchronize()})
	c.Check(kinds(s.app.AwaitingMessages("/vm2")), jc.DeepEquals, []command.Kind{command.SetRootInstance})
}

func (s *deploySuite) TestResynchronizeAgentsNothingDeployed(c *gc.C) {
	err := s.orchestrator.ResynchronizeAgents("app")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.transport.Messages(), gc.HasLen, 0)
}

func (s *deploySuite) TestResynchronizeAgentsSurfacesFailures(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.startRoot(c, "/vm2")
	s.transport.SetFailures(errors.New("boom"))

	err := s.orchestrator.ResynchronizeAgents("app")
	c.Check(errors.Is(err, coreerrors.DeliveryFailure), jc.IsTrue)
	c.Check(err, gc.ErrorMatches, `sending resynchronize to app//vm1: delivery failure: boom`)
	c.Check(s.transport.Commands("app", "/vm2"), jc.DeepEquals, []command.Command{command.NewResynchronize()})
	c.Check(s.app.AwaitingRoots(), jc.DeepEquals, []instance.Path{"/vm1", "/vm2"})
}

func (s *deploySuite) TestBindApplication(c *gc.C) {
	s.startRoot(c, "/vm1")
	s.app.ClearAwaitingMessages()

	err := s.orchestrator.BindApplication("app", "db", "other")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.transport.Commands("app", "/vm1"), jc.DeepEquals, []command.Command{
		command.NewChangeBinding("db", "other"),
	})
	c.Check(s.app.HasAwaitingMessages("/vm2"), jc.IsFalse)

	err = s.orchestrator.BindApplication("app", "")
	c.Check(err, jc.ErrorIs, errors.NotValid)
}
