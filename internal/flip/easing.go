package flip

import "time"

// DefaultDuration is the length of one page turn.
const DefaultDuration = 600 * time.Millisecond

// Ease is the ease-in-out cubic curve used for both the leaf rotation and the book shift.
func Ease(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	case t < 0.5:
		return 4 * t * t * t
	default:
		u := -2*t + 2
		return 1 - u*u*u/2
	}
}

// Progress maps wall-clock time onto [0,1] for an animation that began at start.
// It is sampled from elapsed time rather than counted in ticks, so the total
// duration does not depend on frame rate.
func Progress(start, now time.Time, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	elapsed := now.Sub(start)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= duration {
		return 1
	}
	return float64(elapsed) / float64(duration)
}

// Curve samples Ease at n+1 evenly spaced points from 0 to 1.
func Curve(n int) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n+1)
	for i := range out {
		out[i] = Ease(float64(i) / float64(n))
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
