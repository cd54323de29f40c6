package flip

import (
	"time"

	"github.com/yuanying/zinespread/internal/spread"
)

// Plan describes one page turn between adjacent spreads: the frame drawn on
// the first animation step, the committed frame at the end, and the values
// that are interpolated in between.
type Plan struct {
	From         int     `json:"from"`
	To           int     `json:"to"`
	Leaf         int     `json:"leaf"`
	FromRotation float64 `json:"fromRotation"`
	ToRotation   float64 `json:"toRotation"`
	FromShift    float64 `json:"fromShift"`
	ToShift      float64 `json:"toShift"`
	Start        Frame   `json:"start"`
	End          Frame   `json:"end"`
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// Plans derives every forward and backward turn of the model by running an
// Animator, so any surface replaying them draws exactly what the animator draws.
func Plans(m *spread.Model, pageWidth float64) []Plan {
	clock := fixedClock(time.Unix(0, 0))
	plans := make([]Plan, 0, 2*m.LeafCount())

	for from := 0; from < m.Count(); from++ {
		for _, to := range []int{from + 1, from - 1} {
			leaf, ok := m.LeafIndexAffectedByTransition(from, to)
			if !ok {
				continue
			}
			a := New(m, Options{PageWidth: pageWidth, Clock: clock})
			a.Reset(from)
			a.Navigate(to)

			p := Plan{
				From:      from,
				To:        to,
				Leaf:      leaf,
				FromShift: a.flight.fromShift,
				ToShift:   a.flight.toShift,
				Start:     a.Frame(),
				End:       StaticFrame(m, to, pageWidth),
			}
			p.FromRotation, p.ToRotation = a.flight.fromRot, a.flight.toRot
			plans = append(plans, p)
		}
	}
	return plans
}
