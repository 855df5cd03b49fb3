// Package console holds the state behind the scrollback pane: a bounded list of
// the most recent log lines, the number of lines evicted so far, and the
// current classification guess.
//
// State only changes through Transition, which never modifies its input. The
// previous State stays valid after a transition, so a renderer can hold on to
// it while the next one is being computed.
package console

import "strings"

// DefaultCapacity is the number of lines kept when no capacity is configured.
const DefaultCapacity = 20

// State is an immutable snapshot of the console.
type State struct {
	// Lines holds at most Capacity lines, oldest first.
	Lines []string
	// Discarded counts every line evicted over the lifetime of the console.
	Discarded int
	// Guess is the label of the latest classification.
	Guess string
	// Capacity is the maximum number of lines retained.
	Capacity int
}

// New returns an empty state that retains up to capacity lines.
// A capacity below 1 is clamped to 1.
func New(capacity int) State {
	if capacity < 1 {
		capacity = 1
	}
	return State{
		Lines:    make([]string, 0, capacity),
		Capacity: capacity,
	}
}

// Event is one of WriteLine or SetGuess.
type Event interface {
	isEvent()
}

// WriteLine appends a line, evicting the oldest one when the console is full.
type WriteLine struct {
	Line string
}

// SetGuess replaces the current classification label.
type SetGuess struct {
	Label string
}

func (WriteLine) isEvent() {}
func (SetGuess) isEvent()  {}

// Transition applies ev to s and returns the resulting state.
func Transition(s State, ev Event) State {
	switch ev := ev.(type) {
	case WriteLine:
		return s.write(ev.Line)
	case SetGuess:
		s.Guess = ev.Label
		return s
	default:
		return s
	}
}

// Apply folds events over s in order.
func Apply(s State, events ...Event) State {
	for _, ev := range events {
		s = Transition(s, ev)
	}
	return s
}

// write appends line. An insertion into a full console evicts the oldest line
// and counts exactly one discard. Lines beyond capacity in a hand-built state
// are trimmed without being counted.
func (s State) write(line string) State {
	capacity := s.Capacity
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	lines := make([]string, 0, capacity)
	if len(s.Lines) < capacity {
		lines = append(lines, s.Lines...)
	} else {
		lines = append(lines, s.Lines[len(s.Lines)-capacity+1:]...)
		s.Discarded++
	}
	s.Lines = append(lines, line)
	s.Capacity = capacity
	return s
}

// Key returns the stable identity of the line at index i. A line keeps its
// key while it moves towards the top of the pane as older lines are evicted.
func (s State) Key(i int) int {
	return s.Discarded + i
}

// Len returns the number of retained lines.
func (s State) Len() int {
	return len(s.Lines)
}

// ErrorPrefix starts every line that reports a failure.
const ErrorPrefix = "Error: "

// ErrorLine returns the event reporting err as the final console line.
func ErrorLine(err error) WriteLine {
	return WriteLine{Line: ErrorPrefix + err.Error()}
}

// IsError reports whether line was produced by ErrorLine.
func IsError(line string) bool {
	return strings.HasPrefix(line, ErrorPrefix)
}
