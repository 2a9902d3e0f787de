package tts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/tts/sentence"
	ttssync "github.com/dgnsrekt/narrate/tts/sync"
)

// ControllerConfig holds timing settings for the controller.
type ControllerConfig struct {
	PollInterval time.Duration // How often a paused loop re-checks its state
	SentenceGap  time.Duration // Silence inserted between sentences
	CloseTimeout time.Duration // How long Close waits for the loop to exit
}

// DefaultControllerConfig returns a sensible default configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		PollInterval: 25 * time.Millisecond,
		SentenceGap:  150 * time.Millisecond,
		CloseTimeout: 2 * time.Second,
	}
}

// Controller narrates text one sentence at a time. Play, Pause, Stop and
// Restart may be called from any goroutine; at most one narration loop is
// active at a time.
//
// Sinks and the engine's StopImmediate are called while the controller's lock
// is held, so they must not block and must not call back into the controller.
type Controller struct {
	// Core components
	engine    SpeechEngine
	segmenter *sentence.Segmenter
	expander  *sentence.Expander
	highlight HighlightSink
	status    StatusSink

	config ControllerConfig
	logger *log.Logger

	// Base context; every session derives its own from it.
	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by mu
	mu        sync.Mutex
	state     *PlaybackState
	text      string
	sentences []string
	session   uint64
	stop      context.CancelFunc
	done      chan struct{}
	running   bool
	completed bool
	closed    bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithHighlightSink sets where highlight ranges are sent.
func WithHighlightSink(h HighlightSink) ControllerOption {
	return func(c *Controller) {
		if h != nil {
			c.highlight = h
		}
	}
}

// WithStatusSink sets where progress messages are sent.
func WithStatusSink(s StatusSink) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.status = s
		}
	}
}

// WithSegmenter replaces the default segmenter.
func WithSegmenter(s *sentence.Segmenter) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.segmenter = s
		}
	}
}

// WithExpander replaces the default pronunciation expander.
func WithExpander(e *sentence.Expander) ControllerOption {
	return func(c *Controller) {
		if e != nil {
			c.expander = e
		}
	}
}

// WithControllerConfig overrides DefaultControllerConfig.
func WithControllerConfig(cfg ControllerConfig) ControllerOption {
	return func(c *Controller) {
		defaults := DefaultControllerConfig()
		if cfg.PollInterval <= 0 {
			cfg.PollInterval = defaults.PollInterval
		}
		if cfg.SentenceGap < 0 {
			cfg.SentenceGap = 0
		}
		if cfg.CloseTimeout <= 0 {
			cfg.CloseTimeout = defaults.CloseTimeout
		}
		c.config = cfg
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(l *log.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a controller that speaks through engine.
func NewController(engine SpeechEngine, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		engine:    engine,
		segmenter: sentence.Default(),
		expander:  sentence.NewExpander(nil),
		highlight: nopSink{},
		status:    nopSink{},
		config:    DefaultControllerConfig(),
		logger:    log.Default(),
		ctx:       ctx,
		cancel:    cancel,
		state:     NewPlaybackState(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Play starts narrating text, or resumes at the paused sentence when paused.
// The text is segmented again on resume since it may have been edited; if
// the paused sentence no longer exists narration starts over. Play returns
// immediately; narration continues in the background. Calling Play while
// narration is running does nothing.
func (c *Controller) Play(text string) error {
	return c.play(text, false)
}

// Restart stops any narration and starts text from its first sentence,
// highlighting that sentence before any audio is produced.
func (c *Controller) Restart(text string) error {
	if err := c.Stop(); err != nil {
		return err
	}
	return c.play(text, true)
}

// Pause interrupts the sentence being spoken and remembers it so the next
// Play resumes there. The highlight stays on the paused sentence.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	if c.state.Current() != StatePlaying || !c.running {
		c.mu.Unlock()
		return nil
	}

	index := c.state.Index()
	if err := c.state.Pause(index); err != nil {
		c.mu.Unlock()
		return err
	}
	c.endSession()
	c.halt()
	c.status.SetStatus(fmt.Sprintf("Paused at sentence %d of %d", index+1, len(c.sentences)))
	c.mu.Unlock()

	c.logger.Debug("paused", "index", index)
	return nil
}

// Stop interrupts narration, returns to the first sentence and clears the
// highlight. It is safe to call in any state.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	c.endSession()
	c.halt()
	c.state.Stop()
	c.completed = false
	c.highlight.Clear()
	c.status.SetStatus("Stopped")
	c.mu.Unlock()

	c.logger.Debug("stopped")
	return nil
}

// Close stops narration and waits briefly for the loop to exit. The
// controller cannot be used afterwards.
func (c *Controller) Close() error {
	if err := c.Stop(); err != nil {
		return err
	}

	c.mu.Lock()
	c.closed = true
	done := c.done
	c.mu.Unlock()

	c.cancel()
	if done != nil {
		select {
		case <-done:
		case <-time.After(c.config.CloseTimeout):
			c.logger.Warn("narration loop did not exit before close timeout")
		}
	}
	return nil
}

// State returns the playback state.
func (c *Controller) State() StateType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Current()
}

// Index returns the index of the current sentence.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Index()
}

// PausedIndex returns the resume index, or -1 when not paused.
func (c *Controller) PausedIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.PausedIndex()
}

// Current returns the sentence being spoken and its range in the text.
func (c *Controller) Current() (string, ttssync.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Sentence(), c.state.Highlight()
}

// Sentences returns the sentences of the current session.
func (c *Controller) Sentences() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sentences))
	copy(out, c.sentences)
	return out
}

// IsRunning reports whether a narration loop is active.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Completed reports whether the last session reached the end of its text.
func (c *Controller) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Done returns a channel that is closed when the current narration loop
// exits, whether it finished, paused or stopped.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.done
}

func (c *Controller) play(text string, restart bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrControllerClosed
	}
	if c.state.Current() == StatePlaying && c.running {
		return nil
	}

	sentences := c.segmenter.Segment(text)

	start := 0
	resumed := false
	switch c.state.Current() {
	case StatePaused:
		index := c.state.PausedIndex()
		if index >= 0 && index < len(sentences) && c.state.Resume() {
			start = index
			resumed = true
		} else {
			c.logger.Info("resume point no longer exists, starting over",
				"err", ErrInvalidResumeIndex, "index", index, "sentences", len(sentences))
			c.state.Stop()
		}
	case StatePlaying:
		// A finished session leaves the state playing at index 0.
		c.state.Stop()
	}

	if len(sentences) == 0 {
		c.state.Stop()
		c.highlight.Clear()
		return ErrEmptyText
	}

	if !resumed {
		c.highlight.Clear()
		if err := c.state.Play(); err != nil {
			return err
		}
		if restart {
			first := ttssync.Locate(text, sentences[0], 0)
			c.state.SetCurrent(0, sentences[0], first)
			c.highlight.Highlight(first.Start, first.Length)
		}
	}

	c.session++
	ctx, stop := context.WithCancel(c.ctx)
	prev := c.done
	done := make(chan struct{})

	c.stop = stop
	c.done = done
	c.running = true
	c.completed = false
	c.text = text
	c.sentences = sentences

	c.logger.Debug("narration started", "session", c.session, "start", start, "sentences", len(sentences))
	go c.run(ctx, c.session, prev, done, text, sentences, start)
	return nil
}

// run is the narration loop for one session.
func (c *Controller) run(ctx context.Context, session uint64, prev <-chan struct{}, done chan struct{}, text string, sentences []string, start int) {
	defer close(done)

	// Drain the previous loop even when cancelled, so done never closes while
	// an older loop is still speaking. Every older session is already
	// cancelled, so this terminates.
	if prev != nil {
		<-prev
	}
	if ctx.Err() != nil {
		return
	}

	tracker := ttssync.NewTracker(text)
	tracker.Skip(sentences[:start])
	total := len(sentences)

	for i := start; i < total; i++ {
		if ctx.Err() != nil {
			return
		}
		if err := c.waitWhilePaused(ctx, session); err != nil {
			return
		}

		s := sentences[i]
		r := tracker.Next(s)
		if !r.Found {
			c.logger.Debug("sentence not found in text", "index", i, "cursor", tracker.Cursor())
		}
		if !c.begin(session, i, total, s, r) {
			return
		}

		err := c.speak(ctx, c.expander.Expand(s))
		switch {
		case err == nil:
		case IsCancellation(err) || ctx.Err() != nil:
			return
		default:
			c.skip(session, i, total, err)
		}

		if !c.active(session) {
			return
		}
		if i < total-1 {
			if err := sleep(ctx, c.config.SentenceGap); err != nil {
				return
			}
		}
	}

	c.finish(session)
}

// begin records sentence i as current and publishes its range. It reports
// false when the session is no longer the active one.
func (c *Controller) begin(session uint64, i, total int, s string, r ttssync.Range) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session != c.session || !c.state.SetCurrent(i, s, r) {
		return false
	}
	c.highlight.Highlight(r.Start, r.Length)
	c.status.SetStatus(fmt.Sprintf("Sentence %d of %d", i+1, total))
	return true
}

// skip reports a sentence the engine failed to speak.
func (c *Controller) skip(session uint64, i, total int, err error) {
	c.logger.Warn("sentence not spoken", "index", i, "err", err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if session == c.session {
		c.status.SetStatus(fmt.Sprintf("Skipped sentence %d of %d: %v", i+1, total, err))
	}
}

// finish rewinds a session that reached the end of its text.
func (c *Controller) finish(session uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session != c.session {
		return
	}
	c.running = false
	if c.state.Current() == StatePlaying {
		c.state.Rewind()
		c.completed = true
		c.status.SetStatus(fmt.Sprintf("Finished %d sentences", len(c.sentences)))
		c.logger.Debug("narration finished", "session", session)
	}
}

// active reports whether session is current and still playing.
func (c *Controller) active(session uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session == c.session && c.state.Current() == StatePlaying
}

// waitWhilePaused polls until the state leaves StatePaused or ctx ends.
func (c *Controller) waitWhilePaused(ctx context.Context, session uint64) error {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		c.mu.Lock()
		stale := session != c.session
		paused := c.state.Current() == StatePaused
		c.mu.Unlock()

		if stale {
			return ErrCanceled
		}
		if !paused {
			return nil
		}

		if ticker == nil {
			ticker = time.NewTicker(c.config.PollInterval)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// speak calls the engine, converting a panic into a synthesis failure.
func (c *Controller) speak(ctx context.Context, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: engine panic: %v", ErrSynthesisFailed, r)
		}
	}()
	return c.engine.Speak(ctx, text)
}

// endSession cancels the active session. Callers hold mu.
func (c *Controller) endSession() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.session++
	c.running = false
}

// halt asks the engine to go quiet without waiting for cancellation to reach
// it. Callers hold mu.
func (c *Controller) halt() {
	if err := c.engine.StopImmediate(); err != nil {
		c.logger.Debug("engine stop failed", "err", err)
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
