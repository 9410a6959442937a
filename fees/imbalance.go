package fees

import (
	"math"

	"github.com/pkg/errors"
)

// Point is one corner of a penalty curve: keeping Capacity on the edge costs
// the mediator Penalty.
type Point struct {
	Capacity int64
	Penalty  int64
}

// ImbalancePenalty charges for how much a transfer skews the mediator's
// directional capacity.  The penalty curve is piecewise linear between
// Points; the fee is the penalty after the transfer minus the penalty
// before it, plus Base.  Points must have strictly ascending capacities and
// non-increasing penalties: draining an edge never gets cheaper.
type ImbalancePenalty struct {
	Base   int64
	Points []Point
}

func (ImbalancePenalty) Kind() Kind { return KindImbalancePenalty }

func (ip ImbalancePenalty) Validate() error {
	if ip.Base < 0 {
		return errors.Wrap(ErrInvalidSchedule, "negative base fee")
	}
	if len(ip.Points) == 0 {
		return errors.Wrap(ErrInvalidSchedule, "no penalty points")
	}
	for i, p := range ip.Points {
		if p.Capacity < 0 || p.Penalty < 0 {
			return errors.Wrapf(ErrInvalidSchedule, "point %d is negative", i)
		}
		if i == 0 {
			continue
		}
		prev := ip.Points[i-1]
		if p.Capacity <= prev.Capacity {
			return errors.Wrapf(ErrInvalidSchedule, "point %d capacity not ascending", i)
		}
		if p.Penalty > prev.Penalty {
			return errors.Wrapf(ErrInvalidSchedule, "point %d penalty increases", i)
		}
	}
	return nil
}

// penalty evaluates the curve at x, flat outside the outermost points.
func (ip ImbalancePenalty) penalty(x int64) int64 {
	pts := ip.Points
	if x <= pts[0].Capacity {
		return pts[0].Penalty
	}
	last := pts[len(pts)-1]
	if x >= last.Capacity {
		return last.Penalty
	}
	for i := 1; i < len(pts); i++ {
		hi := pts[i]
		if x > hi.Capacity {
			continue
		}
		lo := pts[i-1]
		// penalties only fall, so the slope is <= 0 and truncation keeps
		// the curve monotone
		drop := float64(lo.Penalty-hi.Penalty) * float64(x-lo.Capacity) / float64(hi.Capacity-lo.Capacity)
		return lo.Penalty - int64(drop)
	}
	return last.Penalty
}

func (ip ImbalancePenalty) Fee(capacity, amount int64) (int64, error) {
	if len(ip.Points) == 0 {
		return ip.Base, nil
	}
	diff := ip.penalty(capacity-amount) - ip.penalty(capacity)
	if diff < 0 {
		// only reachable with a curve that failed Validate
		diff = 0
	}
	if diff > math.MaxInt64-ip.Base {
		return 0, ErrOverflow
	}
	return ip.Base + diff, nil
}
