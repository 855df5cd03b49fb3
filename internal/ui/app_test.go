package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/yildizm/glimpse/internal/console"
	"github.com/yildizm/glimpse/internal/loop"
	"github.com/yildizm/glimpse/internal/monitor"
)

func newTestModel(capacity int) *Model {
	m := New(Options{Capacity: capacity, ModelName: "mobilenet", Source: "cat.jpg"})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func write(lines ...string) EventsMsg {
	events := make([]console.Event, 0, len(lines))
	for _, line := range lines {
		events = append(events, console.WriteLine{Line: line})
	}
	return EventsMsg{Events: events}
}

func TestViewBeforeResize(t *testing.T) {
	m := New(Options{ModelName: "mobilenet"})
	if !strings.Contains(m.View(), "Initializing glimpse") {
		t.Errorf("Expected initializing screen, got:\n%s", m.View())
	}
}

func TestEventsUpdateState(t *testing.T) {
	m := newTestModel(20)

	m.Update(write(loop.LineHello, loop.LoadingLine("mobilenet")))
	if m.status() != statusLoading {
		t.Errorf("Expected loading status, got %s", m.status())
	}

	m.Update(EventsMsg{Events: []console.Event{
		console.WriteLine{Line: loop.LineLoaded},
		console.WriteLine{Line: "goldfish (0.91)"},
		console.SetGuess{Label: "goldfish"},
	}})

	st := m.State()
	if st.Len() != 4 || st.Guess != "goldfish" {
		t.Fatalf("Unexpected state %+v", st)
	}
	if m.status() != statusRunning {
		t.Errorf("Expected running status, got %s", m.status())
	}

	view := m.View()
	for _, want := range []string{"glimpse", "running", "Guess:", "goldfish", "cat.jpg", "mobilenet", "goldfish (0.91)"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q:\n%s", want, view)
		}
	}
}

func TestLinesRenderedWithStableKeys(t *testing.T) {
	m := newTestModel(3)

	for i := 0; i < 5; i++ {
		m.Update(write(fmt.Sprintf("line %d", i)))
	}

	st := m.State()
	if st.Discarded != 2 || st.Len() != 3 {
		t.Fatalf("Unexpected state %+v", st)
	}

	rendered := strings.Split(m.renderLines(), "\n")
	if len(rendered) != 3 {
		t.Fatalf("Expected 3 rendered lines, got %d", len(rendered))
	}
	for i, line := range rendered {
		key := fmt.Sprintf("%5d", i+2)
		text := fmt.Sprintf("line %d", i+2)
		if !strings.Contains(line, key) || !strings.Contains(line, text) {
			t.Errorf("Rendered line %d = %q, want key %q and text %q", i, line, key, text)
		}
	}

	if !strings.Contains(m.View(), "2 discarded") {
		t.Errorf("Expected discarded count in footer:\n%s", m.View())
	}
}

func TestErrorLineStopsLoading(t *testing.T) {
	m := newTestModel(20)

	m.Update(write(loop.LineHello, loop.LoadingLine("mobilenet")))
	err := errors.New("failed to load model: missing file")
	m.Update(EventsMsg{Events: []console.Event{console.ErrorLine(err)}})
	m.Update(DoneMsg{Err: err})

	if m.status() != statusFailed {
		t.Errorf("Expected failed status, got %s", m.status())
	}
	if m.Err() != err {
		t.Errorf("Expected loop error to be kept, got %v", m.Err())
	}
	if !strings.Contains(m.View(), "Error: failed to load model: missing file") {
		t.Errorf("Expected error line in view:\n%s", m.View())
	}

	// The program stays open until the user quits.
	if m.quitting {
		t.Error("Model should not quit on loop failure")
	}
}

func TestDoneWithoutError(t *testing.T) {
	m := newTestModel(20)
	m.Update(write(loop.LineLoaded))
	m.Update(DoneMsg{})

	if m.status() != statusStopped {
		t.Errorf("Expected stopped status, got %s", m.status())
	}
}

func TestQuitKeysCancelLoop(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	}

	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			cancelled := false
			m := New(Options{Cancel: func() { cancelled = true }})

			_, cmd := m.Update(key)
			if !cancelled {
				t.Error("Expected loop to be cancelled")
			}
			if cmd == nil {
				t.Fatal("Expected quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("Expected tea.QuitMsg")
			}
			if m.View() != "" {
				t.Errorf("Expected empty view after quit, got %q", m.View())
			}
		})
	}
}

func TestSpinnerStopsAfterLoad(t *testing.T) {
	m := newTestModel(20)

	_, cmd := m.Update(m.spinner.Tick())
	if cmd == nil {
		t.Error("Expected spinner to keep ticking while loading")
	}

	m.Update(write(loop.LineLoaded))
	_, cmd = m.Update(spinner.TickMsg{})
	if cmd != nil {
		t.Error("Expected spinner to stop once loaded")
	}
}

func TestThemeByName(t *testing.T) {
	for _, name := range GetAvailableThemes() {
		theme, ok := ThemeByName(name)
		if !ok || theme.Name != name {
			t.Errorf("ThemeByName(%q) = %q, %v", name, theme.Name, ok)
		}
	}

	theme, ok := ThemeByName("neon")
	if ok || theme.Name != "default" {
		t.Errorf("Expected default fallback, got %q, %v", theme.Name, ok)
	}
}

type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

func TestSinkBatchesEvents(t *testing.T) {
	rec := &recordingSender{}
	s := &Sink{p: rec}

	events := []console.Event{console.WriteLine{Line: "tench (0.50)"}, console.SetGuess{Label: "tench"}}
	s.Emit(events...)
	s.Emit()
	events[0] = console.WriteLine{Line: "changed"}
	s.Done(nil)

	if len(rec.msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(rec.msgs))
	}
	batch, ok := rec.msgs[0].(EventsMsg)
	if !ok || len(batch.Events) != 2 {
		t.Fatalf("Expected one batch of 2 events, got %#v", rec.msgs[0])
	}
	if w := batch.Events[0].(console.WriteLine); w.Line != "tench (0.50)" {
		t.Errorf("Batch should not alias the caller's slice, got %q", w.Line)
	}
	if _, ok := rec.msgs[1].(DoneMsg); !ok {
		t.Errorf("Expected DoneMsg, got %#v", rec.msgs[1])
	}
}

func TestStatsShownInFooter(t *testing.T) {
	mon := monitor.New()
	mon.Record(monitor.OperationClassify, 31*time.Millisecond, false)

	m := New(Options{Monitor: mon})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	_, cmd := m.Update(statsTickMsg(time.Now()))
	if cmd == nil {
		t.Error("Expected stats to keep ticking")
	}
	if !strings.Contains(m.View(), "classify 31ms") {
		t.Errorf("Expected timings in footer:\n%s", m.View())
	}

	m.Update(DoneMsg{})
	if _, cmd := m.Update(statsTickMsg(time.Now())); cmd != nil {
		t.Error("Expected stats to stop once the loop is done")
	}
}
