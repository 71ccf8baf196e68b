package trust

import (
	"testing"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	ledger   *Ledger
	values   []int
	breaches []int
	// score observed at the moment of the breach
	atBreach Score
}

func (r *recorder) TrustChanged(_ string, value int) {
	r.values = append(r.values, value)
}

func (r *recorder) TrustBreached(_ string, value int) {
	r.breaches = append(r.breaches, value)
	if r.ledger != nil {
		r.atBreach = r.ledger.Score()
	}
}

func newScore(current int) Score {
	return Score{
		Current:    current,
		Max:        100,
		Thresholds: Thresholds{Low: 32, Mid: 60, High: 85},
	}
}

func TestNewLedger(t *testing.T) {
	t.Run("clamps starting value", func(t *testing.T) {
		l, err := NewLedger("innkeeper", newScore(140), nil, 0, nil)
		require.NoError(t, err)
		assert.Equal(t, 100, l.Score().Current)
	})

	t.Run("rejects unordered thresholds", func(t *testing.T) {
		s := newScore(50)
		s.Mid = 20
		_, err := NewLedger("innkeeper", s, nil, 0, nil)
		assert.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("rejects non-positive max", func(t *testing.T) {
		_, err := NewLedger("innkeeper", Score{Max: 0}, nil, 0, nil)
		assert.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("stepped ledger needs a scheduler", func(t *testing.T) {
		_, err := NewLedger("innkeeper", newScore(50), nil, time.Millisecond, nil)
		assert.ErrorIs(t, err, fault.ErrConfiguration)
	})
}

func TestLedger_ApplyDelta(t *testing.T) {
	t.Run("rejects zero", func(t *testing.T) {
		l, err := NewLedger("innkeeper", newScore(50), nil, 0, nil)
		require.NoError(t, err)
		assert.ErrorIs(t, l.ApplyDelta(0, nil), ErrZeroDelta)
		assert.Equal(t, 0, l.Score().LastDelta)
	})

	t.Run("applies unit steps and records last delta", func(t *testing.T) {
		l, err := NewLedger("innkeeper", newScore(50), nil, 0, nil)
		require.NoError(t, err)
		rec := &recorder{}
		l.Observe(rec)

		var res Result
		require.NoError(t, l.ApplyDelta(3, func(r Result) { res = r }))
		assert.Equal(t, []int{51, 52, 53}, rec.values)
		assert.Equal(t, Result{Requested: 3, Applied: 3, Final: 53}, res)
		assert.Equal(t, 3, l.Score().LastDelta)
	})

	t.Run("clamps at max on every step", func(t *testing.T) {
		l, err := NewLedger("innkeeper", newScore(98), nil, 0, nil)
		require.NoError(t, err)
		rec := &recorder{}
		l.Observe(rec)

		var res Result
		require.NoError(t, l.ApplyDelta(10, func(r Result) { res = r }))
		assert.Equal(t, []int{99, 100}, rec.values)
		assert.Equal(t, 2, res.Applied)
		assert.Equal(t, 100, l.Score().Current)
	})

	t.Run("clamps at zero", func(t *testing.T) {
		s := newScore(3)
		s.Thresholds = Thresholds{}
		l, err := NewLedger("innkeeper", s, nil, 0, nil)
		require.NoError(t, err)
		require.NoError(t, l.ApplyDelta(-10, nil))
		assert.Equal(t, 0, l.Score().Current)
	})
}

// trust=100, low=32, delta -15: 85 stays above the threshold, no breach.
func TestLedger_NoBreachAboveThreshold(t *testing.T) {
	l, err := NewLedger("innkeeper", newScore(100), nil, 0, nil)
	require.NoError(t, err)
	rec := &recorder{}
	l.Observe(rec)

	var res Result
	require.NoError(t, l.ApplyDelta(-15, func(r Result) { res = r }))
	assert.Empty(t, rec.breaches)
	assert.False(t, res.Breached)
	assert.Equal(t, 85, res.Final)
}

// trust=40, low=32, delta -15: the breach is reported on the step that reaches 32,
// while the remaining steps have not landed yet.
func TestLedger_BreachMidApplication(t *testing.T) {
	t.Run("synchronous steps", func(t *testing.T) {
		l, err := NewLedger("innkeeper", newScore(40), nil, 0, nil)
		require.NoError(t, err)
		rec := &recorder{ledger: l}
		l.Observe(rec)

		var res Result
		require.NoError(t, l.ApplyDelta(-15, func(r Result) { res = r }))
		assert.Equal(t, []int{32}, rec.breaches)
		assert.Equal(t, 32, rec.atBreach.Current)
		assert.True(t, res.Breached)
		assert.Equal(t, 25, res.Final)
	})

	t.Run("scheduled steps", func(t *testing.T) {
		s := sched.New()
		l, err := NewLedger("innkeeper", newScore(40), s, 50*time.Millisecond, nil)
		require.NoError(t, err)
		rec := &recorder{ledger: l}
		l.Observe(rec)

		done := false
		require.NoError(t, l.ApplyDelta(-15, func(Result) { done = true }))
		assert.True(t, l.InFlight())

		// 8 steps of 50ms reach 32.
		s.Advance(400 * time.Millisecond)
		assert.Equal(t, []int{32}, rec.breaches)
		assert.Equal(t, 32, l.Score().Current)
		assert.False(t, done)

		s.Advance(time.Second)
		assert.True(t, done)
		assert.Equal(t, 25, l.Score().Current)
		assert.False(t, l.InFlight())
	})
}

func TestLedger_BoundsHoldOnEveryStep(t *testing.T) {
	s := sched.New()
	l, err := NewLedger("innkeeper", newScore(5), s, 10*time.Millisecond, nil)
	require.NoError(t, err)
	rec := &recorder{}
	l.Observe(rec)

	require.NoError(t, l.ApplyDelta(-40, nil))
	for i := 0; i < 50; i++ {
		s.Advance(10 * time.Millisecond)
		sc := l.Score()
		assert.GreaterOrEqual(t, sc.Current, 0)
		assert.LessOrEqual(t, sc.Current, sc.Max)
	}
	require.NoError(t, l.ApplyDelta(500, nil))
	l.Flush()
	for _, v := range rec.values {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
	}
	assert.Equal(t, 100, l.Score().Current)
}

func TestLedger_NewDeltaFlushesPrevious(t *testing.T) {
	s := sched.New()
	l, err := NewLedger("innkeeper", newScore(50), s, 100*time.Millisecond, nil)
	require.NoError(t, err)

	var first Result
	require.NoError(t, l.ApplyDelta(5, func(r Result) { first = r }))
	s.Advance(100 * time.Millisecond)
	assert.Equal(t, 51, l.Score().Current)

	require.NoError(t, l.ApplyDelta(-2, nil))
	assert.Equal(t, 55, first.Final)
	assert.Equal(t, 5, first.Applied)

	s.Advance(time.Second)
	assert.Equal(t, 53, l.Score().Current)
}

func TestScore_Tier(t *testing.T) {
	tests := []struct {
		current int
		want    Tier
	}{
		{0, TierHostile},
		{32, TierHostile},
		{33, TierLow},
		{60, TierMid},
		{84, TierMid},
		{85, TierHigh},
		{100, TierHigh},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, newScore(tt.current).Tier())
		})
	}
}
