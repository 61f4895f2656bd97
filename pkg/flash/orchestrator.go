// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package flash

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/GOcontroll/go-modules/pkg/hardware"
	"github.com/GOcontroll/go-modules/pkg/moduline"
)

// DeviceOpener claims the peripherals for a slot. Production uses
// hardware.OpenDevice; tests inject fakes.
type DeviceOpener func(slot moduline.Slot) (*hardware.Device, error)

// Job is one slot to flash and the image to put there.
type Job struct {
	Slot     moduline.Slot
	Firmware *moduline.Firmware
	Options  []Option
}

// Orchestrator flashes several slots concurrently. Slots sharing an SPI
// bus are flashed one after another; distinct buses run in parallel, up to
// the concurrency limit.
type Orchestrator struct {
	open  DeviceOpener
	log   logrus.FieldLogger
	limit int

	mu        sync.Mutex
	sessions  []*Session
	cancelled atomic.Bool
}

// NewOrchestrator builds an orchestrator. A nil opener means real hardware.
func NewOrchestrator(open DeviceOpener, log logrus.FieldLogger) *Orchestrator {
	if open == nil {
		open = hardware.OpenDevice
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{open: open, log: log}
}

// SetLimit caps how many buses are flashed at once. Zero or negative means
// no cap beyond the bus count.
func (o *Orchestrator) SetLimit(n int) {
	o.limit = n
}

// RequestCancel asks every running session to stop at its next safe point
// and keeps queued jobs from starting.
func (o *Orchestrator) RequestCancel() {
	o.cancelled.Store(true)
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range o.sessions {
		s.RequestCancel()
	}
}

// track registers a session for the cancel broadcast. A broadcast that
// lands between a job's cancelled check and this registration would miss
// the session, so the flag is re-checked under the same lock the broadcast
// iterates with.
func (o *Orchestrator) track(s *Session) {
	o.mu.Lock()
	o.sessions = append(o.sessions, s)
	cancelled := o.cancelled.Load()
	o.mu.Unlock()
	if cancelled {
		s.RequestCancel()
	}
}

// Run flashes all jobs and returns one outcome per job, in slot order. A
// slot whose peripherals cannot be opened gets an aborted outcome; the
// other slots are unaffected.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) []*Outcome {
	byBus := make(map[int][]Job)
	for _, job := range jobs {
		byBus[job.Slot.Bus] = append(byBus[job.Slot.Bus], job)
	}

	var (
		mu       sync.Mutex
		outcomes []*Outcome
	)
	collect := func(out *Outcome) {
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}
	for _, busJobs := range byBus {
		busJobs := busJobs
		g.Go(func() error {
			for _, job := range busJobs {
				collect(o.runJob(ctx, job))
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Slot < outcomes[j].Slot })
	return outcomes
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) *Outcome {
	if o.cancelled.Load() {
		return &Outcome{Slot: job.Slot.Index, State: StateCancelled, Phase: PhaseIdle, Err: ErrCancelled}
	}
	dev, err := o.open(job.Slot)
	if err != nil {
		o.log.WithField("slot", job.Slot.Index).Errorf("cannot open slot: %v", err)
		return &Outcome{Slot: job.Slot.Index, State: StateAborted, Phase: PhaseIdle, Err: err}
	}
	defer dev.Close()

	opts := append([]Option{WithLogger(o.log)}, job.Options...)
	session := NewSession(job.Slot, dev, job.Firmware, opts...)
	o.track(session)
	return session.Run(ctx)
}

// Scan probes every given slot and reports what is plugged in. Empty slots
// return no entry; probing happens bus by bus like flashing does.
func (o *Orchestrator) Scan(ctx context.Context, slots []moduline.Slot) []ScanResult {
	byBus := make(map[int][]moduline.Slot)
	for _, s := range slots {
		byBus[s.Bus] = append(byBus[s.Bus], s)
	}

	var (
		mu      sync.Mutex
		results []ScanResult
	)

	g, ctx := errgroup.WithContext(ctx)
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}
	for _, busSlots := range byBus {
		busSlots := busSlots
		g.Go(func() error {
			for _, slot := range busSlots {
				res := o.probeSlot(ctx, slot)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Slot < results[j].Slot })
	return results
}

// ScanResult is what probing one slot found. Err is set when the slot did
// not answer, which usually just means it is empty.
type ScanResult struct {
	Slot   int
	Module moduline.Module
	Err    error
}

func (o *Orchestrator) probeSlot(ctx context.Context, slot moduline.Slot) ScanResult {
	res := ScanResult{Slot: slot.Index}
	dev, err := o.open(slot)
	if err != nil {
		res.Err = err
		return res
	}
	defer dev.Close()

	session := NewSession(slot, dev, nil, WithLogger(o.log))
	o.track(session)
	info, err := session.Probe(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Module = moduline.Module{
		Slot:         slot.Index,
		Version:      moduline.Version(info.Version),
		Manufacturer: info.Manufacturer,
		QRFront:      info.QRFront,
		QRBack:       info.QRBack,
	}
	return res
}
