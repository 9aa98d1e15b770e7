// Package tui shows dataset generation progress as a bubbletea program.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/tanksim/internal/viz"
)

const barWidth = 40

var ErrInterrupted = errors.New("tui: interrupted")

type ProgressMsg struct {
	Done, Total int
}

type DoneMsg struct {
	Err error
}

type Progress struct {
	title    string
	done     int
	total    int
	err      error
	finished bool
	quit     bool
	cancel   context.CancelFunc
}

func NewProgress(title string, total int, cancel context.CancelFunc) Progress {
	return Progress{title: title, total: total, cancel: cancel}
}

func (m Progress) Init() tea.Cmd { return nil }

func (m Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case ProgressMsg:
		// Callbacks from parallel workers can arrive out of order.
		if msg.Done > m.done {
			m.done = msg.Done
		}
		m.total = msg.Total
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Progress) Fraction() float64 {
	if m.total <= 0 {
		return 1
	}
	return float64(m.done) / float64(m.total)
}

func (m Progress) View() string {
	var sb strings.Builder
	sb.WriteString(viz.Header.Render(m.title))
	sb.WriteString("\n\n")
	sb.WriteString(viz.ProgressBar(m.Fraction(), barWidth))
	sb.WriteString(fmt.Sprintf(" %d/%d runs\n", m.done, m.total))

	switch {
	case m.err != nil:
		sb.WriteString(viz.StatusFault.Render("failed: " + m.err.Error()))
		sb.WriteString("\n")
	case m.finished:
		sb.WriteString(viz.StatusNormal.Render("done"))
		sb.WriteString("\n")
	case m.quit:
		sb.WriteString(viz.Subtle.Render("cancelling..."))
		sb.WriteString("\n")
	default:
		sb.WriteString(viz.KeyHint.Render("q to cancel"))
		sb.WriteString("\n")
	}
	return sb.String()
}

// Run drives work inside a progress program. work receives a report
// function to forward generator progress and a context that is cancelled
// when the user quits.
func Run(ctx context.Context, title string, total int, work func(ctx context.Context, report func(done, total int)) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewProgress(title, total, cancel), opts...)

	errc := make(chan error, 1)
	go func() {
		err := work(ctx, func(done, total int) {
			p.Send(ProgressMsg{Done: done, Total: total})
		})
		p.Send(DoneMsg{Err: err})
		errc <- err
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		<-errc
		return err
	}

	workErr := <-errc
	if m, ok := final.(Progress); ok && m.quit && !m.finished {
		return ErrInterrupted
	}
	return workErr
}
