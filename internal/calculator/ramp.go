package calculator

import (
	"time"

	"github.com/gyaneshwarpardhi/nodegraph/internal/model"
)

// Ramp counts from min_value to max_value, one step per interval while
// is_running is set, wrapping back to min_value.
type Ramp struct {
	last time.Time
}

func (r *Ramp) Update(n *model.Node) error {
	propagate(n, "value", n.Attributes().Int("value"))
	return nil
}

// Tick advances the ramp if its interval has elapsed since the last step.
// It reports whether the value changed.
func (r *Ramp) Tick(n *model.Node, now time.Time) bool {
	a := n.Attributes()
	if !a.Bool("is_running") {
		r.last = time.Time{}
		return false
	}
	if r.last.IsZero() {
		r.last = now
		return false
	}
	interval := time.Duration(max(a.Int("interval"), 1)) * time.Millisecond
	if now.Sub(r.last) < interval {
		return false
	}
	r.last = now

	lo, hi := a.Int("min_value"), a.Int("max_value")
	v := a.Int("value") + 1
	if v > hi || v < lo {
		v = lo
	}
	before := a.Int("value")
	if err := n.SetAttribute("value", v); err != nil {
		return false
	}
	return v != before
}
