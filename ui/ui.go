// Package ui is the terminal reader: it shows the text being narrated,
// keeps the spoken sentence highlighted and maps keys to playback controls.
package ui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/fsnotify/fsnotify"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/dgnsrekt/narrate/tts"
	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

const (
	statusBarHeight      = 1
	statusMessageTimeout = 3 * time.Second
)

// Config contains what the reader needs to run.
type Config struct {
	Title string
	Text  string

	// Path is watched for changes when set; Load re-reads it.
	Path string
	Load func() (string, error)

	Controller     *tts.Controller
	Sink           *Sink
	HighlightColor string
	Engine         string
	EnableMouse    bool
}

type (
	errMsg                  struct{ err error }
	reloadMsg               struct{ text string }
	editorFinishedMsg       struct{ err error }
	statusMessageTimeoutMsg struct{}
)

func (e errMsg) Error() string { return e.err.Error() }

// Model is the bubbletea model of the reader.
type Model struct {
	cfg  Config
	ctrl *tts.Controller
	sink *Sink

	text        string
	highlight   ttssync.Range
	highlighted bool
	status      string
	follow      bool

	keys     keyMap
	help     help.Model
	viewport viewport.Model
	spinner  spinner.Model
	hl       highlighter

	width, height int

	message      string
	messageErr   bool
	messageTimer *time.Timer

	watcher *fsnotify.Watcher
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config) *tea.Program {
	log.Debug("starting reader", "title", cfg.Title, "engine", cfg.Engine)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
		// The text came through a pipe; read keys from the terminal.
		opts = append(opts, tea.WithInputTTY())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(New(cfg), opts...)
}

// New returns a reader model.
func New(cfg Config) Model {
	vp := viewport.New(0, 0)
	// Space and f belong to playback.
	vp.KeyMap.PageDown = key.NewBinding(key.WithKeys("pgdown"))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusBarMessageStyle

	sink := cfg.Sink
	if sink == nil {
		sink = NewSink()
	}

	return Model{
		cfg:      cfg,
		ctrl:     cfg.Controller,
		sink:     sink,
		text:     cfg.Text,
		status:   "Press space to play",
		follow:   true,
		keys:     newKeyMap(),
		help:     help.New(),
		viewport: vp,
		spinner:  sp,
		hl:       newHighlighter(cfg.HighlightColor, termenv.EnvColorProfile()),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.sink.Wait()}
	if m.cfg.Path != "" {
		cmds = append(cmds, m.watchFile())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.setSize()
		m.refresh()

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case sinkMsg:
		m.highlight, m.highlighted, m.status = m.sink.Snapshot()
		m.refresh()
		if m.follow && m.highlighted {
			m.scrollToHighlight()
		}
		cmds = append(cmds, m.sink.Wait())
		if m.running() {
			cmds = append(cmds, m.spinner.Tick)
		}

	case spinner.TickMsg:
		if !m.running() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case reloadMsg:
		m.text = msg.text
		m.refresh()
		log.Debug("reloaded text", "path", m.cfg.Path, "bytes", len(msg.text))
		cmds = append(cmds, m.showMessage("Reloaded", false))
		if m.cfg.Path != "" {
			cmds = append(cmds, m.watchFile())
		}

	case editorFinishedMsg:
		if msg.err != nil {
			return m, m.showMessage("Editor failed: "+msg.err.Error(), true)
		}
		return m, m.reload()

	case errMsg:
		log.Error("reader error", "err", msg.err)
		return m, m.showMessage(msg.Error(), true)

	case statusMessageTimeoutMsg:
		m.message = ""
		m.messageErr = false
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey runs playback and navigation keys. Keys it does not handle go
// to the viewport.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.close()
		return tea.Quit, true

	case key.Matches(msg, m.keys.Play):
		if m.ctrl == nil {
			return nil, true
		}
		var err error
		if m.ctrl.IsRunning() {
			err = m.ctrl.Pause()
		} else {
			err = m.ctrl.Play(m.text)
		}
		return m.playbackResult(err), true

	case key.Matches(msg, m.keys.Stop):
		if m.ctrl == nil {
			return nil, true
		}
		return m.playbackResult(m.ctrl.Stop()), true

	case key.Matches(msg, m.keys.Restart):
		if m.ctrl == nil {
			return nil, true
		}
		m.follow = true
		return m.playbackResult(m.ctrl.Restart(m.text)), true

	case key.Matches(msg, m.keys.Copy):
		return m.copySentence(), true

	case key.Matches(msg, m.keys.Follow):
		m.follow = !m.follow
		if m.follow {
			m.scrollToHighlight()
			return m.showMessage("Following narration", false), true
		}
		return m.showMessage("Not following narration", false), true

	case key.Matches(msg, m.keys.Edit):
		if m.cfg.Path == "" {
			return m.showMessage("Nothing to edit", true), true
		}
		return m.openEditor(), true

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		m.follow = false
		return nil, true

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		m.follow = false
		return nil, true

	case key.Matches(msg, m.keys.Up, m.keys.Down):
		m.follow = false

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.setSize()
		return nil, true
	}
	return nil, false
}

func (m *Model) playbackResult(err error) tea.Cmd {
	switch {
	case err == nil:
		return m.spinner.Tick
	case errors.Is(err, tts.ErrEmptyText):
		return m.showMessage("Nothing to read", true)
	default:
		return m.showMessage(err.Error(), true)
	}
}

func (m *Model) copySentence() tea.Cmd {
	if m.ctrl == nil || !m.highlighted {
		return m.showMessage("No sentence to copy", true)
	}
	sentence, _ := m.ctrl.Current()
	if sentence == "" {
		return m.showMessage("No sentence to copy", true)
	}

	// Copy using OSC 52
	termenv.Copy(sentence)
	// Copy using native system clipboard
	_ = clipboard.WriteAll(sentence)
	return m.showMessage("Copied sentence", false)
}

func (m *Model) close() {
	if m.ctrl != nil {
		if err := m.ctrl.Close(); err != nil {
			log.Debug("failed to close controller", "err", err)
		}
	}
	if m.watcher != nil {
		_ = m.watcher.Close()
	}
	if m.messageTimer != nil {
		m.messageTimer.Stop()
	}
}

func (m Model) running() bool {
	return m.ctrl != nil && m.ctrl.IsRunning()
}

func (m *Model) setSize() {
	h := m.height - statusBarHeight
	if m.help.ShowAll {
		h -= lineCount(m.help.View(m.keys))
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(0, h)
}

// refresh re-renders the text into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(render(m.text, m.highlight, m.highlighted, m.width, m.hl))
}

// scrollToHighlight keeps the highlighted sentence in the top third of the
// viewport when it has moved out of view.
func (m *Model) scrollToHighlight() {
	if !m.highlighted || m.viewport.Height <= 0 {
		return
	}
	top := lineOf(m.text, m.highlight.Start, m.width)
	bottom := lineOf(m.text, m.highlight.End(), m.width)
	if top >= m.viewport.YOffset && bottom < m.viewport.YOffset+m.viewport.Height {
		return
	}
	m.viewport.SetYOffset(max(0, top-m.viewport.Height/3))
}

func (m *Model) showMessage(msg string, isErr bool) tea.Cmd {
	m.message = msg
	m.messageErr = isErr
	if m.messageTimer != nil {
		m.messageTimer.Stop()
	}
	m.messageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.messageTimer)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	m.statusBarView(&b)
	if m.help.ShowAll {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m Model) statusBarView(b *strings.Builder) {
	logo := logoStyle.Render(" narrate ")
	if m.running() {
		logo = logoStyle.Render(" " + m.spinner.View() + "narrate ")
	}

	percent := max(0.0, min(1.0, m.viewport.ScrollPercent()))
	scrollPercent := statusBarScrollPosStyle.Render(fmt.Sprintf(" %3.f%% ", percent*100))

	noteStyle := statusBarNoteStyle
	note := m.status
	if m.cfg.Title != "" {
		note = m.cfg.Title + " · " + note
	}
	if m.message != "" {
		note = m.message
		noteStyle = statusBarMessageStyle
		if m.messageErr {
			noteStyle = statusBarErrorStyle
		}
	}

	avail := max(0, m.width-ansi.PrintableRuneWidth(logo)-ansi.PrintableRuneWidth(scrollPercent))
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec
	padding := max(0, avail-runewidth.StringWidth(note))

	fmt.Fprintf(b, "%s%s%s%s",
		logo,
		noteStyle.Render(note),
		noteStyle.Render(strings.Repeat(" ", padding)),
		scrollPercent,
	)
}

func (m Model) helpView() string {
	s := m.help.View(m.keys)

	// Fill up empty cells with spaces for background coloring
	lines := strings.Split("\n"+s+"\n", "\n")
	for i, l := range lines {
		lines[i] = "  " + l
		if n := m.width - ansi.PrintableRuneWidth(lines[i]); n > 0 {
			lines[i] += strings.Repeat(" ", n)
		}
	}
	return helpViewStyle.Render(strings.Join(lines, "\n"))
}

// COMMANDS

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func (m Model) reload() tea.Cmd {
	load := m.cfg.Load
	if load == nil {
		return nil
	}
	return func() tea.Msg {
		text, err := load()
		if err != nil {
			return errMsg{fmt.Errorf("failed to reload: %w", err)}
		}
		return reloadMsg{text}
	}
}

func (m *Model) openEditor() tea.Cmd {
	line := uint(m.viewport.YOffset + 1) //nolint:gosec
	c, err := editor.Cmd("narrate", m.cfg.Path, editor.LineNumber(line))
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	log.Info("opening editor", "file", m.cfg.Path, "line", line)
	return tea.ExecProcess(c, func(err error) tea.Msg {
		return editorFinishedMsg{err}
	})
}

// watchFile waits for the next write to the file and reloads it. The
// directory is watched so editors that replace the file are noticed.
func (m *Model) watchFile() tea.Cmd {
	if m.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			log.Error("error creating fsnotify watcher", "error", err)
			return nil
		}
		dir := filepath.Dir(m.cfg.Path)
		if err := w.Add(dir); err != nil {
			log.Error("error adding dir to fsnotify watcher", "error", err)
			_ = w.Close()
			return nil
		}
		log.Debug("fsnotify watching dir", "dir", dir)
		m.watcher = w
	}

	w, path, load := m.watcher, filepath.Clean(m.cfg.Path), m.cfg.Load
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				log.Debug("fsnotify event", "file", event.Name, "event", event.Op)
				if load == nil {
					return nil
				}
				text, err := load()
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						continue
					}
					return errMsg{err}
				}
				return reloadMsg{text}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				log.Debug("fsnotify error", "error", err)
			}
		}
	}
}

func lineCount(s string) int {
	return strings.Count(s, "\n") + 1
}
