// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package flash

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"github.com/sirupsen/logrus"

	"github.com/GOcontroll/go-modules/pkg/bootproto"
	"github.com/GOcontroll/go-modules/pkg/hardware"
	"github.com/GOcontroll/go-modules/pkg/moduline"
)

const (
	// DefaultBlockSize is how much firmware one write frame carries. The
	// bootloader buffers a block in RAM before committing it.
	DefaultBlockSize = 256

	// DefaultBlockRetries bounds the write attempts per block, counting
	// both status re-polls and rewrites.
	DefaultBlockRetries = 10

	enterAttempts = 3
	enterSettle   = 200 * time.Millisecond
	syncAttempts  = 3
	eraseAttempts = 2

	// readyTimeout paces ordinary frames; eraseTimeout covers a full chip
	// erase, which the slowest module parts need seconds for.
	readyTimeout = 500 * time.Millisecond
	eraseTimeout = 3500 * time.Millisecond
)

// ProgressFunc is called as a session advances: the phase it is in and, for
// block-oriented phases, how many blocks of the total are done. Counts are
// blocks, not bytes; multiply by the session block size for bytes.
type ProgressFunc func(phase Phase, done, total int)

// Session flashes the firmware image into the module in one slot.
type Session struct {
	slot     moduline.Slot
	dev      *hardware.Device
	firmware *moduline.Firmware

	blockSize    int
	blockRetries int
	verify       bool
	log          logrus.FieldLogger
	progress     ProgressFunc

	cancelled atomic.Bool
}

// Option configures a Session.
type Option func(*Session)

// WithBlockSize overrides the firmware bytes carried per write frame.
func WithBlockSize(n int) Option {
	return func(s *Session) { s.blockSize = n }
}

// WithBlockRetries overrides the per-block retry bound.
func WithBlockRetries(n int) Option {
	return func(s *Session) { s.blockRetries = n }
}

// WithVerify controls the read-back verification pass, on by default.
func WithVerify(on bool) Option {
	return func(s *Session) { s.verify = on }
}

// WithLogger sets the session logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = log }
}

// WithProgress sets the progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Session) { s.progress = fn }
}

// NewSession builds a session for one slot. The firmware may be nil when
// the session is only used to Probe.
func NewSession(slot moduline.Slot, dev *hardware.Device, fw *moduline.Firmware, opts ...Option) *Session {
	s := &Session{
		slot:         slot,
		dev:          dev,
		firmware:     fw,
		blockSize:    DefaultBlockSize,
		blockRetries: DefaultBlockRetries,
		verify:       true,
		log:          logrus.StandardLogger(),
		progress:     func(Phase, int, int) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.blockSize <= 0 || s.blockSize+bootproto.OffsetSize > bootproto.MaxPayloadSize {
		s.blockSize = DefaultBlockSize
	}
	if s.blockRetries < 0 {
		s.blockRetries = DefaultBlockRetries
	}
	s.log = s.log.WithField("slot", slot.Index)
	return s
}

// RequestCancel asks the session to stop at its next safe point: between
// blocks, never mid-erase or mid-block. Safe to call from any goroutine.
func (s *Session) RequestCancel() {
	s.cancelled.Store(true)
}

func (s *Session) stopRequested(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

// exchange sends one frame and collects the module's response: clock the
// request out, wait for the ready line, clock the fixed-size response
// window back and decode it.
func (s *Session) exchange(ctx context.Context, req []byte, timeout time.Duration) (bootproto.Frame, error) {
	if _, err := s.dev.Transport.Transfer(ctx, req, 0); err != nil {
		return bootproto.Frame{}, err
	}
	if err := s.dev.Lines.WaitReady(timeout); err != nil {
		return bootproto.Frame{}, err
	}
	raw, err := s.dev.Transport.Transfer(ctx, nil, bootproto.ResponseLength)
	if err != nil {
		return bootproto.Frame{}, err
	}
	return bootproto.DecodeFrame(raw)
}

// enterBootloader resets the module with the boot select line asserted so
// it comes up in its bootloader instead of the application.
func (s *Session) enterBootloader(ctx context.Context) error {
	err := retry.Do(
		func() error {
			if err := s.dev.Lines.AssertReset(); err != nil {
				return err
			}
			if err := s.dev.Lines.SelectBootMode(true); err != nil {
				return err
			}
			time.Sleep(enterSettle)
			if err := s.dev.Lines.ReleaseReset(); err != nil {
				return err
			}
			return s.dev.Lines.WaitReady(time.Second)
		},
		retry.Context(ctx),
		retry.Attempts(enterAttempts),
		retry.Delay(enterSettle),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnterTimeout, err)
	}
	return nil
}

// handshake syncs with the bootloader and reads back what the module is.
func (s *Session) handshake(ctx context.Context) (bootproto.ModuleInfo, error) {
	var info bootproto.ModuleInfo
	err := retry.Do(
		func() error {
			frame, err := s.exchange(ctx, bootproto.NewSync(), readyTimeout)
			if err != nil {
				return err
			}
			info, err = bootproto.ParseSyncResponse(frame)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(syncAttempts),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return info, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	return info, nil
}

// erase clears the application area and stamps the version the module will
// report once the new image is committed. Not interruptible: a module with
// half-erased flash is in a worse state than one that finishes.
func (s *Session) erase(ctx context.Context, version moduline.Version) error {
	err := retry.Do(
		func() error {
			frame, err := s.exchange(ctx, bootproto.NewErase(version.Hardware(), version.Software()), eraseTimeout)
			if err != nil {
				return err
			}
			return bootproto.ParseEraseAck(frame, bootproto.CmdErase)
		},
		retry.Context(ctx),
		retry.Attempts(eraseAttempts),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEraseFailed, err)
	}
	return nil
}

// blocks cuts the firmware image into write-sized blocks, padding the tail
// with 0xFF so every block commits a full flash row.
func (s *Session) blocks() [][]byte {
	data := s.firmware.Data
	count := (len(data) + s.blockSize - 1) / s.blockSize
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		block := make([]byte, s.blockSize)
		for j := range block {
			block[j] = 0xFF
		}
		copy(block, data[i*s.blockSize:])
		out = append(out, block)
	}
	return out
}

// writeBlock pushes one block until it is acknowledged. After a failed
// attempt it polls status first: if the ack was lost but the write landed
// the module says so and the block is not sent again.
func (s *Session) writeBlock(ctx context.Context, offset uint32, block []byte, retries *int) error {
	attempts := 0
	req := bootproto.NewWriteBlock(offset, block)
	for {
		frame, err := s.exchange(ctx, req, readyTimeout)
		if err == nil {
			err = bootproto.ParseBlockAck(frame, bootproto.CmdWriteBlock, offset)
		}
		if err == nil {
			return nil
		}
		attempts++
		*retries++
		if attempts > s.blockRetries {
			return fmt.Errorf("%w: block %#x: %v", ErrTransferFailed, offset, err)
		}
		s.log.WithField("offset", offset).Debugf("block write attempt %d failed: %v", attempts, err)

		frame, pollErr := s.exchange(ctx, bootproto.NewStatus(), readyTimeout)
		if pollErr == nil && bootproto.ParseBlockAck(frame, bootproto.CmdStatus, offset) == nil {
			return nil
		}
	}
}

// transfer writes every block in ascending offset order, stopping between
// blocks when cancellation is requested.
func (s *Session) transfer(ctx context.Context, blocks [][]byte, retries *int) (int, error) {
	for i, block := range blocks {
		if s.stopRequested(ctx) {
			return i, ErrCancelled
		}
		offset := uint32(i * s.blockSize)
		if err := s.writeBlock(ctx, offset, block, retries); err != nil {
			return i, err
		}
		s.progress(PhaseTransferring, i+1, len(blocks))
	}
	return len(blocks), nil
}

// verifyImage asks the module to checksum each written block and compares
// against the image.
func (s *Session) verifyImage(ctx context.Context, blocks [][]byte) error {
	for i, block := range blocks {
		if s.stopRequested(ctx) {
			return ErrCancelled
		}
		offset := uint32(i * s.blockSize)
		req := bootproto.NewVerifyBlock(offset, bootproto.Checksum(block))
		frame, err := s.exchange(ctx, req, readyTimeout)
		if err == nil {
			err = bootproto.ParseBlockAck(frame, bootproto.CmdVerifyBlock, offset)
		}
		if err != nil {
			return fmt.Errorf("%w: block %#x: %v", ErrVerifyFailed, offset, err)
		}
		s.progress(PhaseVerifying, i+1, len(blocks))
	}
	return nil
}

// startApplication tells the bootloader to run the image and resets the
// module with the boot select line released so it stays in the application.
func (s *Session) startApplication(ctx context.Context) error {
	if _, err := s.dev.Transport.Transfer(ctx, bootproto.NewRun(), 0); err != nil {
		return err
	}
	if err := s.dev.Lines.AssertReset(); err != nil {
		return err
	}
	if err := s.dev.Lines.SelectBootMode(false); err != nil {
		return err
	}
	time.Sleep(enterSettle)
	return s.dev.Lines.ReleaseReset()
}

// leaveSafe parks the module in a recoverable state on a failure exit:
// boot select back in the bootloader position and reset released. An
// aborted module must never be held in reset; in the bootloader a later
// attempt can pick it up again.
func (s *Session) leaveSafe() {
	if err := s.dev.Lines.SelectBootMode(true); err != nil {
		s.log.Debugf("boot select during abort: %v", err)
	}
	if err := s.dev.Lines.ReleaseReset(); err != nil {
		s.log.Warnf("could not release reset during abort: %v", err)
	}
}

// emergencyErase runs after a failed transfer or verify. A blank module is
// recoverable; one with a torn image may brick the bus it shares.
func (s *Session) emergencyErase(ctx context.Context) {
	blank := s.firmware.Version
	blank[4], blank[5], blank[6] = 255, 255, 255
	if err := s.erase(context.WithoutCancel(ctx), blank); err != nil {
		s.log.Errorf("emergency erase failed, module may hold a torn image: %v", err)
		return
	}
	s.log.Warn("transfer failed, module erased back to blank")
}

// Run executes the full flash sequence and always returns an outcome.
func (s *Session) Run(ctx context.Context) *Outcome {
	started := time.Now()
	out := &Outcome{Slot: s.slot.Index, State: StateAborted}
	defer func() { out.Duration = time.Since(started) }()

	fail := func(phase Phase, err error) *Outcome {
		s.leaveSafe()
		out.Phase = phase
		out.Err = err
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			out.State = StateCancelled
			out.Err = ErrCancelled
			s.log.WithField("phase", phase).Info("flash cancelled")
		} else {
			s.log.WithField("phase", phase).Errorf("flash failed: %v", err)
		}
		return out
	}

	if s.stopRequested(ctx) {
		return fail(PhaseIdle, ErrCancelled)
	}

	s.progress(PhaseEntering, 0, 0)
	if err := s.enterBootloader(ctx); err != nil {
		return fail(PhaseEntering, err)
	}

	s.progress(PhaseHandshaking, 0, 0)
	info, err := s.handshake(ctx)
	if err != nil {
		return fail(PhaseHandshaking, err)
	}
	s.log.Infof("bootloader up, module reports %s", moduline.Version(info.Version))

	if s.stopRequested(ctx) {
		return fail(PhaseHandshaking, ErrCancelled)
	}

	s.progress(PhaseErasing, 0, 0)
	if err := s.erase(ctx, s.firmware.Version); err != nil {
		return fail(PhaseErasing, err)
	}

	blocks := s.blocks()
	s.progress(PhaseTransferring, 0, len(blocks))
	written, err := s.transfer(ctx, blocks, &out.BlockRetries)
	out.BlocksWritten = written
	out.BytesWritten = written * s.blockSize
	if out.BytesWritten > len(s.firmware.Data) {
		// the final block is tail padding, only count image bytes
		out.BytesWritten = len(s.firmware.Data)
	}
	if err != nil {
		if errors.Is(err, ErrTransferFailed) {
			s.emergencyErase(ctx)
		}
		return fail(PhaseTransferring, err)
	}

	if s.verify {
		s.progress(PhaseVerifying, 0, len(blocks))
		if err := s.verifyImage(ctx, blocks); err != nil {
			if errors.Is(err, ErrVerifyFailed) {
				s.emergencyErase(ctx)
			}
			return fail(PhaseVerifying, err)
		}
	}

	s.progress(PhaseStarting, 0, 0)
	if err := s.startApplication(ctx); err != nil {
		return fail(PhaseStarting, err)
	}

	out.State = StateSuccess
	out.Phase = PhaseDone
	s.progress(PhaseDone, len(blocks), len(blocks))
	s.log.Infof("flashed %s, %d bytes in %d blocks (%d retries)", s.firmware.Version, out.BytesWritten, len(blocks), out.BlockRetries)
	return out
}

// Probe enters the bootloader just long enough to read the module's
// identity, then restarts the application. Used by scan.
func (s *Session) Probe(ctx context.Context) (bootproto.ModuleInfo, error) {
	var info bootproto.ModuleInfo
	if err := s.enterBootloader(ctx); err != nil {
		return info, err
	}
	info, err := s.handshake(ctx)
	if restartErr := s.startApplication(ctx); restartErr != nil && err == nil {
		err = restartErr
	}
	return info, err
}
