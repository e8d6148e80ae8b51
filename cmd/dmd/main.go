// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Command dmd runs the deployment manager: it provisions the machines
// of the configured applications and drives their agents over the
// message bus.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo/v2"

	"github.com/juju/deploymgr/internal/config"
	"github.com/juju/deploymgr/internal/worker/signalhandler"
)

var logger = loggo.GetLogger("deploymgr.dmd")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := gnuflag.NewFlagSet("dmd", gnuflag.ContinueOnError)
	var configPath string
	flags.StringVar(&configPath, "config", "/etc/deploymgr/deploymgr.yaml", "path to the configuration file")
	flags.StringVar(&configPath, "c", "/etc/deploymgr/deploymgr.yaml", "")
	var check bool
	flags.BoolVar(&check, "check", false, "validate the configuration and exit")
	if err := flags.Parse(true, args); err != nil {
		return 2
	}

	cfg, err := config.Read(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR %v\n", err)
		return 1
	}
	if check {
		return 0
	}
	if err := loggo.ConfigureLoggers(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR configuring logging: %v\n", err)
		return 1
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	d, err := newDaemon(cfg, clock.WallClock, signals)
	if err != nil {
		logger.Errorf("starting: %v", err)
		return 1
	}
	if err := d.Wait(); err != nil && !errors.Is(err, signalhandler.ErrShutdown) {
		logger.Errorf("stopped: %v", err)
		return 1
	}
	logger.Infof("stopped")
	return 0
}
