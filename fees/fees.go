// Package fees computes what a mediator charges to forward an amount over
// one directed edge.
//
// A schedule belongs to the mediating participant and reaches us through its
// signed fee updates.  Every schedule here is non-decreasing in the forwarded
// amount; the route search depends on that to keep fee totals consistent
// with the amounts that produced them.
package fees

import (
	"math"

	"github.com/pkg/errors"
)

// Kind is the tag of a schedule variant.
type Kind uint8

const (
	KindFlat Kind = iota + 1
	KindProportional
	KindImbalancePenalty
)

func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "flat"
	case KindProportional:
		return "proportional"
	case KindImbalancePenalty:
		return "imbalance"
	}
	return "unknown"
}

var (
	// ErrInsufficientCapacity is returned when the amount can't pass the edge at all.
	ErrInsufficientCapacity = errors.New("amount exceeds capacity")

	// ErrNegativeAmount is returned for amounts below zero.
	ErrNegativeAmount = errors.New("negative amount")

	// ErrOverflow is returned when a fee doesn't fit in an int64.
	ErrOverflow = errors.New("fee overflows")

	// ErrInvalidSchedule is the cause of every Validate failure.
	ErrInvalidSchedule = errors.New("invalid fee schedule")
)

// Schedule is one of the fee variants below.
type Schedule interface {
	Kind() Kind
	// Fee is what forwarding amount costs over an edge that can currently
	// deliver capacity in its direction.
	Fee(capacity, amount int64) (int64, error)
	Validate() error
}

// Compute is Fee with a nil schedule meaning free.
func Compute(s Schedule, capacity, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrNegativeAmount
	}
	if amount > capacity {
		return 0, ErrInsufficientCapacity
	}
	if s == nil {
		return 0, nil
	}
	return s.Fee(capacity, amount)
}

// Flat charges the same whatever the amount.
type Flat struct {
	Base int64
}

func (Flat) Kind() Kind { return KindFlat }

func (f Flat) Fee(capacity, amount int64) (int64, error) {
	return f.Base, nil
}

func (f Flat) Validate() error {
	if f.Base < 0 {
		return errors.Wrap(ErrInvalidSchedule, "negative base fee")
	}
	return nil
}

// Proportional is a base fee plus a rate in parts per million of the amount.
type Proportional struct {
	Base    int64
	RatePPM int64
}

func (Proportional) Kind() Kind { return KindProportional }

func (p Proportional) Fee(capacity, amount int64) (int64, error) {
	if p.RatePPM != 0 && amount > math.MaxInt64/p.RatePPM {
		return 0, ErrOverflow
	}
	rate := amount * p.RatePPM / 1000000
	if rate > math.MaxInt64-p.Base {
		return 0, ErrOverflow
	}
	return p.Base + rate, nil
}

func (p Proportional) Validate() error {
	if p.Base < 0 || p.RatePPM < 0 {
		return errors.Wrap(ErrInvalidSchedule, "negative fee component")
	}
	return nil
}
