// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	ansi "github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/GOcontroll/go-modules/pkg/flash"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// newSlotBar builds the plain-mode progress bar for one slot.
func newSlotBar(slot int) *progressbar.ProgressBar {
	return progressbar.NewOptions(1,
		progressbar.OptionSetWriter(ansi.NewAnsiStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan]slot %d[reset] preparing", slot)),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// plainProgress adapts a slot bar to the session progress callback. Bars
// track block counts; the phases before transfer just update the label.
func plainProgress(slot int) flash.ProgressFunc {
	bar := newSlotBar(slot)
	var mu sync.Mutex
	return func(phase flash.Phase, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		bar.Describe(fmt.Sprintf("[cyan]slot %d[reset] %s", slot, phase))
		if total > 0 {
			bar.ChangeMax(total)
			bar.Set(done)
		}
	}
}

// printOutcomes reports the terminal state of every slot and returns how
// many did not succeed.
func printOutcomes(outcomes []*flash.Outcome) int {
	failed := 0
	for _, out := range outcomes {
		switch out.State {
		case flash.StateSuccess:
			okColor.Printf("slot %d: flashed %d bytes in %s (%d blocks, %d retries)\n",
				out.Slot, out.BytesWritten, out.Duration.Round(time.Millisecond), out.BlocksWritten, out.BlockRetries)
		case flash.StateCancelled:
			warnColor.Printf("slot %d: cancelled while %s\n", out.Slot, out.Phase)
			failed++
		default:
			failColor.Printf("slot %d: failed while %s: %v\n", out.Slot, out.Phase, out.Err)
			failed++
		}
	}
	return failed
}

// watchInterrupt turns the first SIGINT into a safe-point cancel and a
// second one into a hard context cancel. The returned stop function must
// be called once flashing finishes.
func watchInterrupt(ctx context.Context, orch *flash.Orchestrator) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			warnColor.Fprintln(os.Stderr, "\ninterrupt: stopping after the current block (press again to abort)")
			orch.RequestCancel()
		case <-done:
			return
		}
		select {
		case <-sigs:
			cancel()
		case <-done:
		}
	}()
	return ctx, func() {
		close(done)
		cancel()
	}
}
