package fees

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name     string
		s        Schedule
		capacity int64
		amount   int64
		fee      int64
		err      error
	}{
		{name: "nil is free", s: nil, capacity: 100, amount: 50, fee: 0},
		{name: "flat", s: Flat{Base: 1}, capacity: 100, amount: 10, fee: 1},
		{name: "flat with zero amount", s: Flat{Base: 1}, capacity: 0, amount: 0, fee: 1},
		{name: "proportional", s: Proportional{Base: 2, RatePPM: 10000}, capacity: 1000, amount: 500, fee: 7},
		{name: "proportional rounds down", s: Proportional{RatePPM: 1}, capacity: 1000, amount: 999, fee: 0},
		{name: "over capacity", s: Flat{Base: 1}, capacity: 5, amount: 10, err: ErrInsufficientCapacity},
		{name: "negative amount", s: Flat{}, capacity: 5, amount: -1, err: ErrNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee, err := Compute(tc.s, tc.capacity, tc.amount)
			if tc.err != nil {
				assert.Equal(t, tc.err, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.fee, fee)
		})
	}
}

func TestProportionalOverflow(t *testing.T) {
	fee, err := Proportional{RatePPM: 1000000}.Fee(1<<40, 1<<40)
	assert.NoError(t, err)
	assert.Equal(t, int64(1<<40), fee)
	_, err = Proportional{RatePPM: 1000000000}.Fee(1<<40, 1<<40)
	assert.Equal(t, ErrOverflow, err)
}

func TestImbalancePenalty(t *testing.T) {
	// penalty 100 when the edge is empty, falling to 0 at 100
	ip := ImbalancePenalty{
		Base: 1,
		Points: []Point{
			{Capacity: 0, Penalty: 100},
			{Capacity: 100, Penalty: 0},
		},
	}
	require.NoError(t, ip.Validate())

	fee, err := Compute(ip, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fee)

	fee, err = Compute(ip, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(51), fee)

	// a more skewed edge is more expensive for the same amount
	skewed, err := Compute(ip, 60, 50)
	require.NoError(t, err)
	assert.True(t, skewed >= fee)

	// beyond the curve the penalty is flat
	fee, err = Compute(ip, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fee)
}

func TestImbalanceMonotone(t *testing.T) {
	ip := ImbalancePenalty{
		Points: []Point{
			{Capacity: 10, Penalty: 70},
			{Capacity: 40, Penalty: 33},
			{Capacity: 45, Penalty: 33},
			{Capacity: 300, Penalty: 2},
		},
	}
	require.NoError(t, ip.Validate())

	for capacity := int64(0); capacity <= 320; capacity += 7 {
		last := int64(-1)
		for amount := int64(0); amount <= capacity; amount++ {
			fee, err := Compute(ip, capacity, amount)
			require.NoError(t, err)
			require.True(t, fee >= last, "capacity %d amount %d: %d < %d", capacity, amount, fee, last)
			last = fee
		}
	}
}

func TestValidate(t *testing.T) {
	bad := []Schedule{
		Flat{Base: -1},
		Proportional{RatePPM: -3},
		ImbalancePenalty{},
		ImbalancePenalty{Points: []Point{{Capacity: 5, Penalty: 1}, {Capacity: 5, Penalty: 0}}},
		ImbalancePenalty{Points: []Point{{Capacity: 5, Penalty: 1}, {Capacity: 6, Penalty: 2}}},
		ImbalancePenalty{Points: []Point{{Capacity: -1, Penalty: 1}}},
	}
	for _, s := range bad {
		err := s.Validate()
		require.Error(t, err, "%#v", s)
		assert.Equal(t, ErrInvalidSchedule, errors.Cause(err))
	}
}

func TestCodec(t *testing.T) {
	schedules := []Schedule{
		Flat{Base: 12},
		Proportional{Base: 1, RatePPM: 250},
		ImbalancePenalty{Base: 3, Points: []Point{{0, 10}, {50, 4}, {100, 0}}},
	}
	for _, s := range schedules {
		t.Run(s.Kind().String(), func(t *testing.T) {
			back, err := Decode(Encode(s))
			require.NoError(t, err)
			assert.Equal(t, s, back)
		})
	}

	s, err := Decode(Encode(nil))
	require.NoError(t, err)
	assert.Nil(t, s)

	_, err = Decode([]byte{99})
	assert.Error(t, err)

	truncated := Encode(Proportional{Base: 1, RatePPM: 2})
	_, err = Decode(truncated[:len(truncated)-3])
	assert.Error(t, err)

	invalid := Encode(Flat{Base: -4})
	_, err = Decode(invalid)
	assert.Equal(t, ErrInvalidSchedule, errors.Cause(err))
}
