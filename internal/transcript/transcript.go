// Package transcript records console output to a logfmt file so that a
// session can be reviewed afterwards with `glimpse history`.
package transcript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yildizm/glimpse/internal/console"
)

// Writer appends one logfmt record per console line:
//
//	time=2024-05-01T10:00:00.000Z level=info msg="goldfish (0.93)" guess=goldfish
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
	err    error
}

// New writes records to w.
func New(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Create opens path for appending, creating parent directories as needed.
func Create(path string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("transcript: failed to create directory: %w", err)
		}
	}
	// #nosec G304 - path comes from the user's configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("transcript: failed to open %s: %w", path, err)
	}
	w := New(f)
	w.closer = f
	return w, nil
}

// Emit records every WriteLine in events. A SetGuess in the same batch is
// attached to the last line only, so each batch counts as one guess.
func (t *Writer) Emit(events ...console.Event) {
	var guess string
	var lines []string
	for _, ev := range events {
		switch e := ev.(type) {
		case console.WriteLine:
			lines = append(lines, e.Line)
		case console.SetGuess:
			guess = e.Label
		}
	}
	if len(lines) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	last := len(lines) - 1
	for i, line := range lines {
		if t.err != nil {
			return
		}
		g := ""
		if i == last {
			g = guess
		}
		_, t.err = io.WriteString(t.w, t.record(line, g))
	}
}

func (t *Writer) record(line, guess string) string {
	level := "info"
	if console.IsError(line) {
		level = "error"
	}

	var b strings.Builder
	b.WriteString("time=")
	b.WriteString(t.now().UTC().Format(time.RFC3339Nano))
	b.WriteString(" level=")
	b.WriteString(level)
	b.WriteString(" msg=")
	b.WriteString(quote(line))
	if guess != "" {
		b.WriteString(" guess=")
		b.WriteString(quote(guess))
	}
	b.WriteByte('\n')
	return b.String()
}

// Err returns the first write error, if any. Records after a failed write
// are dropped.
func (t *Writer) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close closes the underlying file when the writer owns one.
func (t *Writer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// quote leaves bare words alone and quotes anything with spaces, quotes or
// equals signs. Backslashes are written as \x5c so that no value ever has a
// backslash in front of its closing quote; go-logparser would read that as an
// escaped quote. unquote reverses it.
func quote(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " =\"\t\n\\") {
		return strings.ReplaceAll(strconv.Quote(s), `\\`, `\x5c`)
	}
	return s
}

// unquote decodes a value read back by go-logparser, which strips the
// surrounding quotes but keeps escapes as written.
func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	v, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return v
}
