package vision

import (
	"errors"
	"testing"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpatial struct {
	target  Entity
	present bool
	blocked bool
	losErr  error
	queries int
}

func (f *fakeSpatial) Locate(id string) (Entity, bool) {
	if !f.present || id != f.target.ID {
		return Entity{}, false
	}
	return f.target, true
}

func (f *fakeSpatial) FindEntitiesInRadius(pos geom.Vec2, r float64, filter Filter) []Entity {
	if !f.present || pos.Dist(f.target.Pos) > r || !filter(f.target) {
		return nil
	}
	return []Entity{f.target}
}

func (f *fakeSpatial) LineOfSightClear(a, b geom.Vec2, obstruction Filter) (bool, error) {
	f.queries++
	if f.losErr != nil {
		return false, f.losErr
	}
	return !f.blocked, nil
}

type fakeObserver struct {
	pos      geom.Vec2
	facing   geom.Vec2
	eligible bool
}

func (o *fakeObserver) Position() geom.Vec2        { return o.pos }
func (o *fakeObserver) Facing() geom.Vec2          { return o.facing }
func (o *fakeObserver) ConversationEligible() bool { return o.eligible }

type eventLog struct {
	events []string
	lost   []geom.Vec2
}

func (l *eventLog) PlayerDetected(id string, pos geom.Vec2) { l.events = append(l.events, "detected") }
func (l *eventLog) PlayerLost(id string, last geom.Vec2) {
	l.events = append(l.events, "lost")
	l.lost = append(l.lost, last)
}
func (l *eventLog) ConversationRequested(id string) { l.events = append(l.events, "talk") }

func newTestSensor(cfg Config) (*Sensor, *fakeSpatial, *fakeObserver, *eventLog) {
	sp := &fakeSpatial{target: Entity{ID: "player", Pos: geom.V(5, 0), Tags: []string{TagPlayer}}, present: true}
	obs := &fakeObserver{facing: geom.V(1, 0)}
	log := &eventLog{}
	return NewSensor("g1", cfg, "player", sp, obs, log, nil), sp, obs, log
}

func TestSensor_PollCadence(t *testing.T) {
	s, _, _, _ := newTestSensor(Config{Radius: 10, FOVDegrees: 90})

	assert.True(t, s.Update(0))
	assert.False(t, s.Update(100*time.Millisecond))
	assert.False(t, s.Update(199*time.Millisecond))
	assert.True(t, s.Update(200*time.Millisecond))
	assert.Equal(t, 2, s.Polls())

	t.Run("long gap yields one sample", func(t *testing.T) {
		assert.True(t, s.Update(5*time.Second))
		assert.False(t, s.Update(5*time.Second))
		assert.True(t, s.Update(5200*time.Millisecond))
		assert.Equal(t, 4, s.Polls())
	})
}

func TestSensor_EdgeTriggered(t *testing.T) {
	s, sp, _, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90})

	now := time.Duration(0)
	step := func() {
		s.Update(now)
		now += DefaultPollInterval
	}

	for range 5 {
		step()
	}
	assert.Equal(t, []string{"detected"}, log.events, "continuous visibility detects once")
	assert.True(t, s.State().CanSeeTarget)
	assert.Equal(t, geom.V(5, 0), s.State().LastKnownPosition)

	sp.target.Pos = geom.V(8, 0)
	step()
	sp.blocked = true
	for range 3 {
		step()
	}
	assert.Equal(t, []string{"detected", "lost"}, log.events)
	assert.Equal(t, []geom.Vec2{geom.V(8, 0)}, log.lost, "lost reports the last sighting")
	assert.False(t, s.State().CanSeeTarget)
}

func TestSensor_Oscillation(t *testing.T) {
	s, sp, _, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90})

	pattern := []bool{true, true, false, true, false, false, true, false, true, true, true, false}
	now := time.Duration(0)
	for _, visible := range pattern {
		sp.blocked = !visible
		s.Update(now)
		now += DefaultPollInterval
	}

	var detected, lost int
	for i, e := range log.events {
		if i > 0 {
			assert.NotEqual(t, log.events[i-1], e, "events must alternate")
		}
		switch e {
		case "detected":
			detected++
		case "lost":
			lost++
		}
	}
	assert.Equal(t, "detected", log.events[0])
	assert.Equal(t, 4, detected)
	assert.Equal(t, 4, lost)
}

func TestSensor_Visibility(t *testing.T) {
	tests := []struct {
		name    string
		pos     geom.Vec2
		facing  geom.Vec2
		fov     float64
		blocked bool
		want    bool
	}{
		{name: "in front", pos: geom.V(5, 0), facing: geom.V(1, 0), fov: 90, want: true},
		{name: "at radius", pos: geom.V(10, 0), facing: geom.V(1, 0), fov: 90, want: true},
		{name: "beyond radius", pos: geom.V(10.5, 0), facing: geom.V(1, 0), fov: 90, want: false},
		{name: "edge of cone", pos: geom.V(5, 4.9), facing: geom.V(1, 0), fov: 90, want: true},
		{name: "outside cone", pos: geom.V(5, 5.5), facing: geom.V(1, 0), fov: 90, want: false},
		{name: "behind", pos: geom.V(-5, 0), facing: geom.V(1, 0), fov: 90, want: false},
		{name: "behind with full circle", pos: geom.V(-5, 0), facing: geom.V(1, 0), fov: 360, want: true},
		{name: "occluded", pos: geom.V(5, 0), facing: geom.V(1, 0), fov: 90, blocked: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sp, obs, log := newTestSensor(Config{Radius: 10, FOVDegrees: tt.fov})
			sp.target.Pos = tt.pos
			sp.blocked = tt.blocked
			obs.facing = tt.facing

			s.Update(0)
			assert.Equal(t, tt.want, s.State().CanSeeTarget)
			assert.Equal(t, tt.want, len(log.events) == 1)
		})
	}
}

func TestSensor_LineOfSightFailure(t *testing.T) {
	s, sp, _, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90})
	s.Update(0)
	require.True(t, s.State().CanSeeTarget)

	sp.losErr = errors.New("navmesh unavailable")
	s.Update(DefaultPollInterval)

	assert.False(t, s.State().CanSeeTarget)
	assert.Equal(t, []string{"detected", "lost"}, log.events)
	assert.Equal(t, 1, s.Failures())
}

func TestSensor_ConversationRequest(t *testing.T) {
	s, sp, obs, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90, ConversationRadius: 3})
	obs.eligible = true
	sp.target.Pos = geom.V(6, 0)

	s.Update(0)
	assert.Equal(t, []string{"detected"}, log.events)

	sp.target.Pos = geom.V(2, 0)
	s.Update(200 * time.Millisecond)
	s.Update(400 * time.Millisecond)
	assert.Equal(t, []string{"detected", "talk"}, log.events, "requested once per entry")

	sp.target.Pos = geom.V(6, 0)
	s.Update(600 * time.Millisecond)
	sp.target.Pos = geom.V(2, 0)
	s.Update(800 * time.Millisecond)
	assert.Equal(t, []string{"detected", "talk", "talk"}, log.events)

	t.Run("ineligible observer stays quiet", func(t *testing.T) {
		s, sp, obs, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90, ConversationRadius: 3})
		obs.eligible = false
		sp.target.Pos = geom.V(2, 0)
		s.Update(0)
		assert.Equal(t, []string{"detected"}, log.events)
	})

	t.Run("behind the observer still counts", func(t *testing.T) {
		s, sp, obs, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90, ConversationRadius: 3})
		obs.eligible = true
		sp.target.Pos = geom.V(-2, 0)
		s.Update(0)
		assert.Equal(t, []string{"talk"}, log.events)
	})
}

func TestSensor_MissingTarget(t *testing.T) {
	s, sp, _, log := newTestSensor(Config{Radius: 10, FOVDegrees: 90})
	sp.present = false
	s.Update(0)
	assert.False(t, s.State().CanSeeTarget)
	assert.Empty(t, log.events)
	assert.Zero(t, sp.queries)
}
