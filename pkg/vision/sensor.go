package vision

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
)

// DefaultPollInterval is how often a sensor samples.
const DefaultPollInterval = 200 * time.Millisecond

// Config tunes a sensor.
type Config struct {
	Radius     float64 `json:"radius" yaml:"radius"`
	FOVDegrees float64 `json:"fov_degrees" yaml:"fov_degrees"`
	// ConversationRadius is the smaller "notice and talk" range; zero disables it.
	ConversationRadius float64       `json:"conversation_radius" yaml:"conversation_radius"`
	PollInterval       time.Duration `json:"poll_interval" yaml:"-"`
}

// VisionState is what a sensor currently knows about its target.
type VisionState struct {
	CanSeeTarget      bool          `json:"can_see_target"`
	HasSighting       bool          `json:"has_sighting"`
	LastKnownPosition geom.Vec2     `json:"last_known_position"`
	LastSeenAt        time.Duration `json:"last_seen_at"`
}

// Observer is the entity the sensor is mounted on.
type Observer interface {
	Position() geom.Vec2
	Facing() geom.Vec2
	ConversationEligible() bool
}

// Listener receives edge-triggered sensor events.
type Listener interface {
	PlayerDetected(targetID string, pos geom.Vec2)
	PlayerLost(targetID string, lastKnown geom.Vec2)
	ConversationRequested(targetID string)
}

// Sensor samples visibility of one target at a fixed interval and reports only state edges.
type Sensor struct {
	ownerID     string
	cfg         Config
	targetID    string
	spatial     Spatial
	observer    Observer
	listener    Listener
	obstruction Filter
	logger      *slog.Logger

	state          VisionState
	nextPoll       time.Duration
	inConversation bool
	polls          int
	failures       int
}

func NewSensor(ownerID string, cfg Config, targetID string, spatial Spatial, observer Observer, listener Listener, logger *slog.Logger) *Sensor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FOVDegrees <= 0 {
		cfg.FOVDegrees = 360
	}
	return &Sensor{
		ownerID:     ownerID,
		cfg:         cfg,
		targetID:    targetID,
		spatial:     spatial,
		observer:    observer,
		listener:    listener,
		obstruction: Opaque,
		logger:      logger,
	}
}

// State returns the current vision state.
func (s *Sensor) State() VisionState {
	return s.state
}

// Polls returns how many samples have been taken.
func (s *Sensor) Polls() int {
	return s.polls
}

// Failures returns how many line-of-sight queries failed.
func (s *Sensor) Failures() int {
	return s.failures
}

// Update samples once if the poll interval has elapsed and reports whether it did. A long gap between
// calls yields a single sample, never a burst.
func (s *Sensor) Update(now time.Duration) bool {
	if now < s.nextPoll {
		return false
	}
	s.nextPoll += s.cfg.PollInterval
	if s.nextPoll <= now {
		s.nextPoll = now + s.cfg.PollInterval
	}
	s.poll(now)
	return true
}

func (s *Sensor) poll(now time.Duration) {
	s.polls++
	visible, inConv, pos := s.sample()

	if visible {
		s.state.LastKnownPosition = pos
		s.state.LastSeenAt = now
		s.state.HasSighting = true
	}
	switch {
	case visible && !s.state.CanSeeTarget:
		s.state.CanSeeTarget = true
		s.logger.Debug("Target detected", "guard_id", s.ownerID, "target_id", s.targetID)
		s.listener.PlayerDetected(s.targetID, pos)
	case !visible && s.state.CanSeeTarget:
		s.state.CanSeeTarget = false
		s.logger.Debug("Target lost", "guard_id", s.ownerID, "target_id", s.targetID)
		s.listener.PlayerLost(s.targetID, s.state.LastKnownPosition)
	}

	if inConv && !s.inConversation {
		s.inConversation = true
		if s.observer.ConversationEligible() {
			s.listener.ConversationRequested(s.targetID)
		}
	} else if !inConv {
		s.inConversation = false
	}
}

func (s *Sensor) sample() (visible, inConv bool, pos geom.Vec2) {
	eye := s.observer.Position()
	reach := math.Max(s.cfg.Radius, s.cfg.ConversationRadius)
	found := s.spatial.FindEntitiesInRadius(eye, reach, WithID(s.targetID))
	if len(found) == 0 {
		return false, false, geom.Vec2{}
	}
	target := found[0]
	pos = target.Pos
	d := eye.Dist(pos)

	inRange := d <= s.cfg.Radius
	inConvRange := s.cfg.ConversationRadius > 0 && d <= s.cfg.ConversationRadius
	if !inRange && !inConvRange {
		return false, false, pos
	}

	open, err := s.spatial.LineOfSightClear(eye, pos, s.obstruction)
	if err != nil {
		s.failures++
		s.logger.Debug("Line of sight query failed, treating as not visible",
			"guard_id", s.ownerID,
			"target_id", s.targetID,
			"error", errors.Join(fault.ErrTransientSensor, err))
		return false, false, pos
	}
	if !open {
		return false, false, pos
	}

	inFOV := s.cfg.FOVDegrees >= 360 ||
		s.observer.Facing().AngleTo(pos.Sub(eye)) <= geom.Deg2Rad(s.cfg.FOVDegrees)/2
	return inRange && inFOV, inConvRange, pos
}
