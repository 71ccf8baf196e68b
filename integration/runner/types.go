package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/queue"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name     string     `json:"name" yaml:"name"`
	Scenario string     `json:"scenario,omitempty" yaml:"scenario,omitempty"` // Used for regular tests
	Steps    []TestStep `json:"steps,omitempty" yaml:"steps,omitempty"`       // Used for regular tests
	Cases    []string   `json:"cases,omitempty" yaml:"cases,omitempty"`       // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep sends at most one command, then polls the encounter until every expectation holds or the step
// times out. A step with no command only waits.
type TestStep struct {
	Name         string       `json:"name,omitempty" yaml:"name,omitempty"`
	Command      *StepCommand `json:"command,omitempty" yaml:"command,omitempty"`
	Timeout      float64      `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds; DefaultStepTimeout when zero
	Expectations Expectations `json:"expect" yaml:"expect"`
}

// StepCommand mirrors the command endpoint's request body
type StepCommand struct {
	Type      queue.CommandType `json:"type" yaml:"type"`
	NPCID     string            `json:"npc_id,omitempty" yaml:"npc_id,omitempty"`
	Choice    int               `json:"choice,omitempty" yaml:"choice,omitempty"`
	Direction geom.Vec2         `json:"direction" yaml:"direction"`
}

// Expectations are checked against the encounter snapshot
type Expectations struct {
	Alarmed  *bool `json:"alarmed,omitempty" yaml:"alarmed,omitempty"`
	Caught   *bool `json:"caught,omitempty" yaml:"caught,omitempty"`
	GateOpen *bool `json:"gate_open,omitempty" yaml:"gate_open,omitempty"`

	InRange       []string          `json:"in_range,omitempty" yaml:"in_range,omitempty"`             // NPCs the player must be near
	SessionStates map[string]string `json:"session_states,omitempty" yaml:"session_states,omitempty"` // npc -> dialogue state
	NoSession     []string          `json:"no_session,omitempty" yaml:"no_session,omitempty"`         // NPCs that must not be talking
	GuardStates   map[string]string `json:"guard_states,omitempty" yaml:"guard_states,omitempty"`     // guard -> fsm state
	Tiers         map[string]string `json:"tiers,omitempty" yaml:"tiers,omitempty"`                   // npc -> trust tier
	TrustAtLeast  map[string]int    `json:"trust_at_least,omitempty" yaml:"trust_at_least,omitempty"`
	TrustAtMost   map[string]int    `json:"trust_at_most,omitempty" yaml:"trust_at_most,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName  string
	StepName  string
	Success   bool
	Error     error
	Duration  time.Duration
	CommandID string
	Tick      uint64 // snapshot tick at which the expectations held
}

// TestJob represents a test suite to be executed by a worker
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job         TestJob
	Results     []TestResult
	Error       error
	Duration    time.Duration
	EncounterID uuid.UUID // ID of the encounter used for this test
}
