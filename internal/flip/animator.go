package flip

import (
	"log/slog"
	"time"

	"github.com/yuanying/zinespread/internal/spread"
)

// Clock supplies the current time to the animator.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Options configures an Animator.
type Options struct {
	Duration   time.Duration
	PageWidth  float64 // unit of Frame.Shift
	Clock      Clock
	OnComplete func(Frame)
	Logger     *slog.Logger
}

type flight struct {
	leaf      int
	from, to  int
	start     time.Time
	fromRot   float64
	toRot     float64
	fromShift float64
	toShift   float64
	final     LeafState
}

// Animator turns one leaf at a time between two adjacent spreads.
//
// It owns the navigation position and the per-leaf state of one rendered
// surface. At most one leaf is Flipping at any time: a request made while a
// turn is in progress is dropped, not queued. Animator is not safe for
// concurrent use; its owner serializes access.
type Animator struct {
	model      *spread.Model
	clock      Clock
	duration   time.Duration
	pageWidth  float64
	onComplete func(Frame)
	logger     *slog.Logger

	current  int
	states   []LeafState
	flight   *flight
	progress float64
}

// New creates an animator resting at spread 0.
func New(m *spread.Model, opts Options) *Animator {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	a := &Animator{
		model:      m,
		clock:      opts.Clock,
		duration:   opts.Duration,
		pageWidth:  opts.PageWidth,
		onComplete: opts.OnComplete,
		logger:     opts.Logger,
	}
	a.Reset(0)
	return a
}

// Reset discards any turn in progress and rests the book at index.
// This is the rebuild path; there is no other way to cancel a turn.
func (a *Animator) Reset(index int) {
	a.current = a.model.ClampIndex(index)
	a.states = CommittedStates(a.current, a.model.LeafCount())
	a.flight = nil
	a.progress = 1
}

// Jump moves to index without animation. It is refused while a leaf is turning.
func (a *Animator) Jump(index int) bool {
	if a.flight != nil {
		return false
	}
	a.Reset(index)
	return true
}

// Current returns the navigation position. During a turn it is already the target.
func (a *Animator) Current() int { return a.current }

// Animating reports whether a leaf is turning.
func (a *Animator) Animating() bool { return a.flight != nil }

// States returns a copy of the per-leaf states.
func (a *Animator) States() []LeafState {
	out := make([]LeafState, len(a.states))
	copy(out, a.states)
	return out
}

// Step navigates delta spreads away from the current one.
func (a *Animator) Step(delta int) bool {
	return a.Navigate(a.current + delta)
}

// Navigate starts turning toward spread to. The target is clamped to the model
// and a jump of more than one spread is shortened to a single step. It returns
// false, changing nothing, when a turn is already in progress or when the
// clamped target is the current spread.
func (a *Animator) Navigate(to int) bool {
	if a.flight != nil {
		a.logger.Debug("navigation dropped, turn in progress", "to", to)
		return false
	}

	from := a.current
	to = a.model.ClampIndex(to)
	switch {
	case to > from+1:
		to = from + 1
	case to < from-1:
		to = from - 1
	}

	leaf, ok := a.model.LeafIndexAffectedByTransition(from, to)
	if !ok {
		return false
	}

	f := &flight{
		leaf:      leaf,
		from:      from,
		to:        to,
		start:     a.clock.Now(),
		fromShift: Shift(a.model, from, a.pageWidth),
		toShift:   Shift(a.model, to, a.pageWidth),
	}
	if to > from {
		f.fromRot, f.toRot, f.final = ClosedRotation, OpenRotation, Open
	} else {
		f.fromRot, f.toRot, f.final = OpenRotation, ClosedRotation, Closed
	}

	a.states[leaf] = Flipping
	a.current = to
	a.flight = f
	a.progress = 0
	a.logger.Debug("turn started", "leaf", leaf, "from", from, "to", to)
	return true
}

// Tick samples the clock, advances the turn in progress and returns the frame to draw.
// When the turn reaches its end the leaf state is committed, the single-flight
// flag is cleared and the completion callback runs before Tick returns.
func (a *Animator) Tick() Frame {
	if a.flight == nil {
		return a.Frame()
	}

	a.progress = Progress(a.flight.start, a.clock.Now(), a.duration)
	if a.progress < 1 {
		return a.Frame()
	}

	f := a.flight
	a.states[f.leaf] = f.final
	a.flight = nil
	a.logger.Debug("turn completed", "leaf", f.leaf, "spread", a.current, "state", f.final)

	fr := a.Frame()
	if a.onComplete != nil {
		a.onComplete(fr)
	}
	return fr
}

// Frame returns the presentation at the last sampled instant.
func (a *Animator) Frame() Frame {
	shown := a.current
	if a.flight != nil {
		shown = a.flight.from
	}

	n := len(a.states)
	fr := Frame{
		Spread:    a.current,
		Label:     a.model.Label(shown),
		Leaves:    make([]LeafFrame, n),
		Shift:     Shift(a.model, a.current, a.pageWidth),
		Progress:  a.progress,
		Animating: a.flight != nil,
		AtStart:   shown == 0,
		AtEnd:     shown == a.model.Count()-1,
	}

	var eased float64
	if a.flight != nil {
		eased = Ease(a.progress)
		fr.Shift = lerp(a.flight.fromShift, a.flight.toShift, eased)
	}

	for i, st := range a.states {
		lf := LeafFrame{Index: i, State: st, Rotation: Rotation(st), Z: ZIndex(i, n, st)}
		if st == Flipping && a.flight != nil {
			lf.Rotation = lerp(a.flight.fromRot, a.flight.toRot, eased)
		}
		fr.Leaves[i] = lf
	}
	return fr
}
