package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/yildizm/glimpse/internal/console"
)

// EventsMsg carries one batch of console events. The whole batch is applied
// before the next render.
type EventsMsg struct {
	Events []console.Event
}

// DoneMsg reports that the capture loop has returned.
type DoneMsg struct {
	Err error
}

// sender is the part of *tea.Program the sink needs.
type sender interface {
	Send(msg tea.Msg)
}

// Sink forwards console events to a running program.
type Sink struct {
	p sender
}

// NewSink returns a sink that delivers events to p.
func NewSink(p *tea.Program) *Sink {
	return &Sink{p: p}
}

// Emit sends events as a single message. It blocks until the program
// receives it or has exited.
func (s *Sink) Emit(events ...console.Event) {
	if len(events) == 0 {
		return
	}
	batch := make([]console.Event, len(events))
	copy(batch, events)
	s.p.Send(EventsMsg{Events: batch})
}

// Done tells the program that the loop finished with err.
func (s *Sink) Done(err error) {
	s.p.Send(DoneMsg{Err: err})
}
