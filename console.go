package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/tts"
)

// consolePrinter prints each sentence as it is spoken. It is the highlight
// and status sink when there is no terminal to draw the reader on. Sink calls
// only queue lines; a separate goroutine writes them, so a slow writer never
// holds up the controller.
type consolePrinter struct {
	w    io.Writer
	text string

	mu      sync.Mutex
	pending string
	lines   []string
	muted   bool

	wake chan struct{}
	done chan struct{}
}

func newConsolePrinter(w io.Writer, text string) *consolePrinter {
	p := &consolePrinter{
		w:    w,
		text: text,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

// Highlight implements tts.HighlightSink. The sentence is printed with the
// status message that follows it.
func (p *consolePrinter) Highlight(start, length int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start = max(0, min(start, len(p.text)))
	end := max(start, min(start+length, len(p.text)))
	p.pending = strings.Join(strings.Fields(p.text[start:end]), " ")
}

// Clear implements tts.HighlightSink.
func (p *consolePrinter) Clear() {
	p.mu.Lock()
	p.pending = ""
	p.mu.Unlock()
}

// SetStatus implements tts.StatusSink.
func (p *consolePrinter) SetStatus(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.muted {
		return
	}

	var line string
	switch {
	case p.pending != "":
		line = fmt.Sprintf("%s %s\n", faintColor.Sprintf("[%s]", text), p.pending)
		p.pending = ""
	case strings.HasPrefix(text, "Skipped"):
		line = errorColor.Sprint(text) + "\n"
	case strings.HasPrefix(text, "Finished"):
		line = successColor.Sprint(text) + "\n"
	default:
		line = warningColor.Sprint(text) + "\n"
	}
	p.lines = append(p.lines, line)

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// writeLoop writes queued lines until the printer is closed.
func (p *consolePrinter) writeLoop() {
	defer close(p.done)
	for range p.wake {
		p.flush()
	}
	p.flush()
}

func (p *consolePrinter) flush() {
	p.mu.Lock()
	lines := p.lines
	p.lines = nil
	p.mu.Unlock()

	for _, line := range lines {
		_, _ = io.WriteString(p.w, line)
	}
}

// close drops everything printed after it and waits until the lines already
// queued are written. It is safe to call more than once.
func (p *consolePrinter) close() {
	p.mu.Lock()
	if !p.muted {
		p.muted = true
		close(p.wake)
	}
	p.mu.Unlock()

	<-p.done
}

// runConsole narrates text to the end, stopping early on SIGINT or SIGTERM.
func runConsole(ctrl *tts.Controller, p *consolePrinter, text string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer p.close()

	if err := ctrl.Play(text); err != nil {
		return fmt.Errorf("unable to start narration: %w", err)
	}

	select {
	case <-ctrl.Done():
		log.Debug("narration finished", "completed", ctrl.Completed())
	case <-ctx.Done():
		log.Info("interrupted, stopping narration")
		if err := ctrl.Stop(); err != nil {
			return err
		}
	}

	p.close()
	return ctrl.Close()
}

var (
	_ tts.HighlightSink = (*consolePrinter)(nil)
	_ tts.StatusSink    = (*consolePrinter)(nil)
)
