// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package journal records instance status changes to a file, one JSON
// object per line.
package journal

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/pubsub/v2"
	"gopkg.in/tomb.v2"

	"github.com/juju/deploymgr/core/logger"
	"github.com/juju/deploymgr/internal/orchestrator"
)

const (
	stateFlushed = "flushed"
	stateTicked  = "ticked"
)

// Entry is one journal line.
type Entry struct {
	Application string    `json:"application"`
	Path        string    `json:"path"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	At          time.Time `json:"at"`
}

// Config holds the parameters of a Journal.
type Config struct {
	Hub *pubsub.SimpleHub

	// Writer is owned by the journal and closed when it stops.
	Writer io.WriteCloser

	// BatchSize is the number of entries collected before a write.
	BatchSize int

	// FlushInterval bounds how long an entry waits to be written.
	FlushInterval time.Duration

	Clock  clock.Clock
	Logger logger.Logger
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if c.Writer == nil {
		return errors.NotValidf("nil Writer")
	}
	if c.BatchSize < 1 {
		return errors.NotValidf("batch size %d", c.BatchSize)
	}
	if c.FlushInterval <= 0 {
		return errors.NotValidf("flush interval %v", c.FlushInterval)
	}
	if c.Clock == nil {
		return errors.NotValidf("nil Clock")
	}
	if c.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// Journal is a worker writing every status change published on the
// hub. There can only be one journal writing to the same file.
type Journal struct {
	tomb           tomb.Tomb
	cfg            Config
	watcher        *orchestrator.StatusWatcher
	internalStates chan string
}

// New starts a journal.
func New(cfg Config) (*Journal, error) {
	return newJournal(cfg, nil)
}

func newJournal(cfg Config, internalStates chan string) (*Journal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	j := &Journal{
		cfg:            cfg,
		watcher:        orchestrator.NewStatusWatcher(cfg.Hub, ""),
		internalStates: internalStates,
	}
	j.tomb.Go(j.loop)
	return j, nil
}

// Kill is part of the worker.Worker interface.
func (j *Journal) Kill() {
	j.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (j *Journal) Wait() error {
	return j.tomb.Wait()
}

func (j *Journal) loop() error {
	defer func() { _ = j.cfg.Writer.Close() }()

	defer func() {
		j.watcher.Kill()
		_ = j.watcher.Wait()
	}()

	buffer := new(bytes.Buffer)
	encoder := json.NewEncoder(buffer)

	timer := j.cfg.Clock.NewTimer(j.cfg.FlushInterval)
	defer timer.Stop()

	var entries []Entry
	for {
		select {
		case <-j.tomb.Dying():
			j.write(buffer, encoder, entries)
			return tomb.ErrDying

		case change, ok := <-j.watcher.Changes():
			if !ok {
				return errors.New("status watcher closed")
			}
			entries = append(entries, Entry{
				Application: change.Application,
				Path:        change.Path.String(),
				From:        change.From.String(),
				To:          change.To.String(),
				At:          change.At.UTC(),
			})
			if len(entries) < j.cfg.BatchSize {
				continue
			}
			j.write(buffer, encoder, entries)
			entries = nil

		case <-timer.Chan():
			if len(entries) > 0 {
				j.reportInternalState(stateTicked)
				j.write(buffer, encoder, entries)
				entries = nil
			}
			timer.Reset(j.cfg.FlushInterval)
		}
	}
}

// write logs failures and never stops the journal.
func (j *Journal) write(buffer *bytes.Buffer, encoder *json.Encoder, entries []Entry) {
	if len(entries) == 0 {
		return
	}
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			j.cfg.Logger.Errorf("failed to encode journal entry: %v", err)
		}
	}
	if _, err := j.cfg.Writer.Write(buffer.Bytes()); err != nil {
		j.cfg.Logger.Errorf("failed to write %d journal entries: %v", len(entries), err)
	}
	buffer.Reset()

	j.reportInternalState(stateFlushed)
}

func (j *Journal) reportInternalState(state string) {
	if j.internalStates == nil {
		return
	}
	select {
	case <-j.tomb.Dying():
	case j.internalStates <- state:
	}
}

// ReadEntries decodes a journal.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	decoder := json.NewDecoder(r)
	for {
		var entry Entry
		err := decoder.Decode(&entry)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return entries, errors.Annotatef(err, "reading entry %d", len(entries)+1)
		}
		entries = append(entries, entry)
	}
}
