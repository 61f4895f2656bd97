// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 GOcontroll B.V.

package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/GOcontroll/go-modules/pkg/flash"
)

// Messages from the flashing goroutine
type slotProgressMsg struct {
	slot  int
	phase flash.Phase
	done  int
	total int
}

type flashDoneMsg struct {
	outcomes []*flash.Outcome
}

// Per-slot row state
type slotRow struct {
	slot    int
	phase   flash.Phase
	done    int
	total   int
	bar     progress.Model
	outcome *flash.Outcome
}

// TUI model
type flashModel struct {
	orch     *flash.Orchestrator
	rows     map[int]*slotRow
	order    []int
	outcomes []*flash.Outcome
	quitting bool
	width    int
}

func newFlashModel(orch *flash.Orchestrator, jobs []flash.Job) flashModel {
	rows := make(map[int]*slotRow, len(jobs))
	order := make([]int, 0, len(jobs))
	for _, job := range jobs {
		rows[job.Slot.Index] = &slotRow{
			slot: job.Slot.Index,
			bar:  progress.New(progress.WithDefaultGradient()),
		}
		order = append(order, job.Slot.Index)
	}
	sort.Ints(order)
	return flashModel{orch: orch, rows: rows, order: order}
}

func (m flashModel) Init() tea.Cmd {
	return nil
}

func (m flashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.quitting {
				m.quitting = true
				m.orch.RequestCancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, row := range m.rows {
			row.bar.Width = msg.Width - 40
		}
		return m, nil

	case slotProgressMsg:
		if row, ok := m.rows[msg.slot]; ok {
			row.phase = msg.phase
			row.done = msg.done
			row.total = msg.total
		}
		return m, nil

	case flashDoneMsg:
		m.outcomes = msg.outcomes
		for _, out := range msg.outcomes {
			if row, ok := m.rows[out.Slot]; ok {
				row.outcome = out
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

var (
	tuiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	tuiSlotStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	tuiPhaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	tuiOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	tuiFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	tuiWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	tuiHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

func (m flashModel) View() string {
	var b strings.Builder
	b.WriteString(tuiTitleStyle.Render("Flashing modules"))
	b.WriteString("\n\n")
	for _, slot := range m.order {
		row := m.rows[slot]
		b.WriteString(tuiSlotStyle.Render(fmt.Sprintf("slot %d ", slot)))
		switch {
		case row.outcome != nil:
			b.WriteString(renderOutcome(row.outcome))
		case row.total > 0:
			b.WriteString(row.bar.ViewAs(float64(row.done) / float64(row.total)))
			b.WriteString(tuiPhaseStyle.Render(fmt.Sprintf(" %s (%d/%d)", row.phase, row.done, row.total)))
		default:
			b.WriteString(tuiPhaseStyle.Render(row.phase.String()))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.quitting {
		b.WriteString(tuiWarnStyle.Render("stopping at the next safe point..."))
	} else {
		b.WriteString(tuiHelpStyle.Render("q to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func renderOutcome(out *flash.Outcome) string {
	switch out.State {
	case flash.StateSuccess:
		return tuiOKStyle.Render(fmt.Sprintf("done (%d blocks)", out.BlocksWritten))
	case flash.StateCancelled:
		return tuiWarnStyle.Render(fmt.Sprintf("cancelled while %s", out.Phase))
	default:
		return tuiFailStyle.Render(fmt.Sprintf("failed while %s", out.Phase))
	}
}

// runFlashTUI drives the orchestrator behind a bubbletea view. Progress
// callbacks are forwarded into the program as messages.
func runFlashTUI(ctx context.Context, orch *flash.Orchestrator, jobs []flash.Job) ([]*flash.Outcome, error) {
	model := newFlashModel(orch, jobs)
	program := tea.NewProgram(model)

	for i := range jobs {
		slot := jobs[i].Slot.Index
		jobs[i].Options = append(jobs[i].Options,
			flash.WithProgress(func(phase flash.Phase, done, total int) {
				program.Send(slotProgressMsg{slot: slot, phase: phase, done: done, total: total})
			}))
	}

	var outcomes []*flash.Outcome
	go func() {
		outcomes = orch.Run(ctx, jobs)
		program.Send(flashDoneMsg{outcomes: outcomes})
	}()

	if _, err := program.Run(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
