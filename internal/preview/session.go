// Package preview hosts live surfaces of a zine document. A Session owns the
// arrangement, the animator and the fitter of one document; a single control
// loop applies surface commands to it and streams the resulting frames back.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/flip"
	"github.com/yuanying/zinespread/internal/imposition"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/scale"
	"github.com/yuanying/zinespread/internal/spread"
	"github.com/yuanying/zinespread/internal/styles"
	"github.com/yuanying/zinespread/internal/surface"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrNoPath        = errors.New("document has no file to save to")
)

// Saver persists a document's source.
type Saver interface {
	Save(path, source string) error
}

// FileSaver writes documents to the local file system.
type FileSaver struct{}

func (FileSaver) Save(path, source string) error {
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Config holds what every session of a host shares.
type Config struct {
	Model *spread.Model
	Sheet imposition.Sheet
	Mode  layout.Mode
	// Margin is the fitter margin in CSS pixels.
	Margin float64
	// SettleDelay is how long a surface waits after loading before it reports its size.
	SettleDelay time.Duration
	// FrameInterval is the period of animation frames.
	FrameInterval time.Duration
	Duration      time.Duration
	InboxSize     int
	Clock         flip.Clock
	Saver         Saver
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.Model == nil {
		c.Model = spread.Reference()
	}
	if c.Sheet.Rows == 0 {
		c.Sheet = imposition.Reference(imposition.ReferenceGeometry())
	}
	if c.Margin < 0 {
		c.Margin = 0
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = 16 * time.Millisecond
	}
	if c.Duration <= 0 {
		c.Duration = flip.DefaultDuration
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 16
	}
	if c.Clock == nil {
		c.Clock = flip.SystemClock{}
	}
	if c.Saver == nil {
		c.Saver = FileSaver{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Engine returns a layout engine for the configured model and geometry.
func (c Config) Engine() *layout.Engine {
	g := c.Sheet.Geometry
	return layout.New(c.Model, layout.Options{PageWidth: g.PageWidth, Unit: g.Unit, Logger: c.Logger})
}

func newStyles(c Config) *styles.Set { return styles.New(c.Model, c.Sheet) }

// Session is one document shown on any number of surfaces.
type Session struct {
	id     string
	cfg    Config
	engine *layout.Engine
	styles *styles.Set
	logger *slog.Logger

	mu         sync.Mutex
	doc        *document.Document
	dom        *goquery.Document
	mode       layout.Mode
	anim       *flip.Animator
	fitter     *scale.Fitter
	fullscreen bool
	channels   map[surface.Channel]struct{}

	inbox     chan surface.Inbound
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession arranges d at spread 0.
func NewSession(id string, d *document.Document, cfg Config) (*Session, error) {
	cfg.defaults()
	s := &Session{
		id:       id,
		cfg:      cfg,
		engine:   cfg.Engine(),
		styles:   newStyles(cfg),
		logger:   cfg.Logger.With("session", id),
		mode:     cfg.Mode,
		fitter:   scale.NewFitter(cfg.Margin),
		channels: make(map[surface.Channel]struct{}),
		inbox:    make(chan surface.Inbound, cfg.InboxSize),
		done:     make(chan struct{}),
	}
	s.anim = flip.New(cfg.Model, flip.Options{
		Duration:  cfg.Duration,
		PageWidth: cfg.Sheet.Geometry.PageWidth,
		Clock:     cfg.Clock,
		Logger:    s.logger,
		OnComplete: func(f flip.Frame) {
			s.logger.Debug("spread reached", "spread", f.Spread, "label", f.Label)
		},
	})
	if err := s.load(d, 0); err != nil {
		return nil, err
	}
	return s, nil
}

// load parses d and arranges it at index. Callers hold mu or own s exclusively.
func (s *Session) load(d *document.Document, index int) error {
	dom, err := d.Parse()
	if err != nil {
		return err
	}
	document.Clean(dom, s.engine)
	s.anim.Reset(index)
	if _, err := s.engine.Build(dom, s.mode, s.anim.Current()); err != nil {
		return fmt.Errorf("failed to arrange document: %w", err)
	}
	if r := document.Pages(dom, s.cfg.Model); len(r.Missing) > 0 {
		s.logger.Debug("document is missing pages", "pages", r.Missing)
	}
	s.doc, s.dom = d, dom
	return nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Engine returns the layout engine of the session.
func (s *Session) Engine() *layout.Engine { return s.engine }

// Styles returns the stylesheet set of the session.
func (s *Session) Styles() *styles.Set { return s.styles }

// Document returns the document shown.
func (s *Session) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Mode returns the layout mode.
func (s *Session) Mode() layout.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Current returns the navigation position.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anim.Current()
}

// Frame returns the frame surfaces currently show.
func (s *Session) Frame() flip.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anim.Frame()
}

// Scale returns the last good container scale.
func (s *Session) Scale() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fitter.Scale()
}

// Fullscreen reports the fullscreen flag.
func (s *Session) Fullscreen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullscreen
}

// Attach registers a surface channel and brings it up to date.
func (s *Session) Attach(ch surface.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	s.channels[ch] = struct{}{}
	s.send(ch, surface.FrameUpdate(s.anim.Frame(), s.fitter.Scale(), s.engine.Unit()))
	s.logger.Debug("surface attached", "surfaces", len(s.channels))
	return nil
}

// Detach forgets a surface channel.
func (s *Session) Detach(ch surface.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, ch)
}

// Surfaces counts attached channels.
func (s *Session) Surfaces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.channels)
}

// Submit queues an inbound surface frame for the control loop. It never
// blocks: when the inbox is full the frame is dropped and Submit returns false.
func (s *Session) Submit(in surface.Inbound) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- in:
		return true
	default:
		s.logger.Debug("surface frame dropped, inbox full", "command", in.Command)
		return false
	}
}

// Run is the control loop. It handles inbound frames in arrival order and
// drives animation frames while a leaf is turning. It returns when ctx ends
// or the session is closed.
func (s *Session) Run(ctx context.Context) error {
	var ticker *time.Ticker
	var tick <-chan time.Time
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case in := <-s.inbox:
			if s.Handle(in) && ticker == nil {
				ticker = time.NewTicker(s.cfg.FrameInterval)
				tick = ticker.C
			}
		case <-tick:
			if !s.Advance() {
				stop()
			}
		}
	}
}

// Handle applies one inbound frame and reports whether a turn is in progress
// afterwards.
func (s *Session) Handle(in surface.Inbound) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Report != nil {
		s.handleReport(*in.Report)
		return s.anim.Animating()
	}

	switch in.Command {
	case surface.PrevSpread, surface.NextSpread:
		s.navigate(in.Command.Delta())
	case surface.ToggleFullscreen:
		s.fullscreen = !s.fullscreen
		s.broadcast(surface.FullscreenUpdate(s.fullscreen, s.anim.Current()))
	case surface.SaveFile:
		if err := s.save(); err != nil {
			s.logger.Warn("save failed", "error", err)
		}
	default:
		s.logger.Debug("ignoring unknown command", "command", in.Command)
	}
	return s.anim.Animating()
}

func (s *Session) handleReport(r surface.Report) {
	sc, ok := s.fitter.Update(r.Content, r.Viewport)
	if !ok {
		s.logger.Debug("degenerate measurement skipped", "viewport", r.Viewport, "content", r.Content)
		return
	}
	if err := s.engine.ApplyScale(s.dom, sc); err != nil {
		s.logger.Debug("scale not applied", "error", err)
	}
	s.broadcast(surface.FrameUpdate(s.anim.Frame(), sc, s.engine.Unit()))
}

func (s *Session) navigate(delta int) {
	m := s.cfg.Model
	from := s.anim.Current()
	if m.ClampIndex(from+delta) == from {
		return
	}

	if s.mode == layout.Flat {
		if !s.anim.Jump(from + delta) {
			return
		}
		if _, err := s.engine.Build(s.dom, layout.Flat, s.anim.Current()); err != nil {
			s.logger.Warn("rebuild failed", "error", err)
			return
		}
		s.broadcast(surface.ReloadUpdate(s.anim.Current()))
		return
	}

	if !s.anim.Step(delta) {
		return
	}
	s.applyFrame(s.anim.Frame())
}

// Advance samples the animator once and streams the frame. It reports
// whether the turn is still in progress.
func (s *Session) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.anim.Animating() {
		return false
	}
	s.applyFrame(s.anim.Tick())
	return s.anim.Animating()
}

func (s *Session) applyFrame(f flip.Frame) {
	if err := s.engine.Apply(s.dom, f); err != nil {
		s.logger.Debug("frame not applied", "error", err)
	}
	s.broadcast(surface.FrameUpdate(f, s.fitter.Scale(), s.engine.Unit()))
}

func (s *Session) save() error {
	if s.doc.Path == "" {
		return ErrNoPath
	}
	if err := s.cfg.Saver.Save(s.doc.Path, s.doc.Source); err != nil {
		return err
	}
	s.logger.Info("document saved", "path", s.doc.Path)
	return nil
}

// Reload replaces the document source, discarding every animator state, and
// rests at spread 0. Surfaces are told to reload.
func (s *Session) Reload(source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(document.New(source, s.doc.Path), 0); err != nil {
		return err
	}
	s.broadcast(surface.ReloadUpdate(0))
	return nil
}

// SetMode switches between the flat and book arrangements at the current spread.
func (s *Session) SetMode(mode layout.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == s.mode {
		return nil
	}
	s.mode = mode
	if err := s.load(s.doc, s.anim.Current()); err != nil {
		return err
	}
	s.broadcast(surface.ReloadUpdate(s.anim.Current()))
	return nil
}

// Save writes the document back to the file it was loaded from.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// broadcast sends u to every surface. Failed surfaces stay attached and are
// retried on the next update; their connection loop detaches them.
func (s *Session) broadcast(u surface.Update) {
	for ch := range s.channels {
		s.send(ch, u)
	}
}

func (s *Session) send(ch surface.Channel, u surface.Update) {
	if err := ch.Send(u); err != nil {
		s.logger.Debug("surface unavailable", "kind", u.Kind, "error", err)
	}
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close stops the control loop and closes every surface channel.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		defer s.mu.Unlock()
		for ch := range s.channels {
			ch.Close()
			delete(s.channels, ch)
		}
		s.logger.Debug("session closed")
	})
}
