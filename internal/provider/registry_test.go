// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package provider_test

import (
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coreerrors "github.com/juju/deploymgr/core/errors"
	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/internal/provider"
	"github.com/juju/deploymgr/internal/provider/dummy"
)

type registrySuite struct {
	testing.IsolationSuite

	registry *provider.Registry
	vms      *dummy.Backend
	lxd      *dummy.Backend
}

var _ = gc.Suite(&registrySuite{})

func (s *registrySuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.registry = provider.NewRegistry()
	s.vms = dummy.New()
	s.lxd = dummy.New()
	c.Assert(s.registry.Register("vms", s.vms), jc.ErrorIsNil)
	c.Assert(s.registry.Register("lxd", s.lxd), jc.ErrorIsNil)
}

func (s *registrySuite) root(c *gc.C, name, component string) *instance.Instance {
	tree := instance.NewTree()
	inst := instance.New(name, component)
	c.Assert(tree.Add("", inst), jc.ErrorIsNil)
	return inst
}

func (s *registrySuite) TestRegisterInvalid(c *gc.C) {
	err := s.registry.Register("", dummy.New())
	c.Check(err, jc.ErrorIs, errors.NotValid)
	err = s.registry.Register("nil", nil)
	c.Check(err, jc.ErrorIs, errors.NotValid)
	err = s.registry.Register("vms", dummy.New())
	c.Check(err, jc.ErrorIs, errors.AlreadyExists)
}

func (s *registrySuite) TestNames(c *gc.C) {
	c.Check(s.registry.Names(), jc.DeepEquals, []string{"lxd", "vms"})
}

func (s *registrySuite) TestResolveNothingConfigured(c *gc.C) {
	_, err := s.registry.Resolve("app", s.root(c, "vm", "vm"))
	c.Check(err, gc.ErrorMatches, `no backend configured for app/vm: provisioning failure`)
	c.Check(errors.Is(err, coreerrors.ProvisioningFailure), jc.IsTrue)
}

func (s *registrySuite) TestResolveDefault(c *gc.C) {
	s.registry.SetDefault("vms")
	backend, err := s.registry.Resolve("app", s.root(c, "vm", "vm"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(backend, gc.Equals, s.vms)
}

func (s *registrySuite) TestResolveComponentBeatsDefault(c *gc.C) {
	s.registry.SetDefault("vms")
	s.registry.MapComponent("container", "lxd")
	backend, err := s.registry.Resolve("app", s.root(c, "ct", "container"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(backend, gc.Equals, s.lxd)
}

func (s *registrySuite) TestResolveTargetBeatsComponent(c *gc.C) {
	s.registry.MapComponent("container", "lxd")
	root := s.root(c, "ct", "container")
	root.SetData(provider.TargetKey, "vms")
	backend, err := s.registry.Resolve("app", root)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(backend, gc.Equals, s.vms)
}

func (s *registrySuite) TestResolveUnregistered(c *gc.C) {
	root := s.root(c, "vm", "vm")
	root.SetData(provider.TargetKey, "ec2")
	_, err := s.registry.Resolve("app", root)
	c.Check(err, gc.ErrorMatches, `backend "ec2" for app/vm not registered: provisioning failure`)
	c.Check(errors.Is(err, coreerrors.ProvisioningFailure), jc.IsTrue)
}
