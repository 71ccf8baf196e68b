package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/world"
	"gopkg.in/yaml.v3"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running stealth-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	ScenarioOverride  string // If set, overrides the scenario for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           DefaultStepTimeout,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON or YAML file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &suite); err != nil {
			return TestSuite{}, fmt.Errorf("failed to parse YAML in %s: %w", filename, err)
		}
	default:
		if err := json.Unmarshal(content, &suite); err != nil {
			return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
		}
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite starts a fresh encounter, runs every step against it and deletes it afterwards
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	scenario := suite.Scenario
	if r.ScenarioOverride != "" {
		scenario = r.ScenarioOverride
	}
	encounterID, err := CreateEncounter(ctx, r.Client, r.BaseURL, scenario)
	if err != nil {
		result.Error = fmt.Errorf("failed to create encounter: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.EncounterID = encounterID
	defer func() {
		if err := DeleteEncounter(context.Background(), r.Client, r.BaseURL, encounterID); err != nil {
			r.Logger("    Warning: failed to delete encounter %s: %v", encounterID, err)
		}
	}()

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, encounterID, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s at tick %d (%v)", i+1, len(suite.Steps), step.Name, stepResult.Tick, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep sends the step's command, if any, then waits for its expectations
func (r *Runner) runStep(ctx context.Context, encounterID uuid.UUID, step TestStep) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	if step.Command != nil {
		commandID, err := PostCommand(ctx, r.Client, r.BaseURL, encounterID, *step.Command)
		if err != nil {
			result.Error = fmt.Errorf("failed to post command: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		result.CommandID = commandID
	}

	timeout := r.Timeout
	if step.Timeout > 0 {
		timeout = time.Duration(step.Timeout * float64(time.Second))
	}

	snap, err := PollForExpectations(ctx, r.Client, r.BaseURL, encounterID, step.Expectations, timeout)
	if err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Tick = snap.Tick
	result.Duration = time.Since(start)
	return result
}

// CheckExpectations validates the expectations against a snapshot
func CheckExpectations(exp Expectations, snap *world.Snapshot) error {
	if exp.Alarmed != nil && snap.Alarmed != *exp.Alarmed {
		return fmt.Errorf("expected alarmed to be %t, got %t", *exp.Alarmed, snap.Alarmed)
	}
	if exp.Caught != nil && snap.Caught != *exp.Caught {
		return fmt.Errorf("expected caught to be %t, got %t", *exp.Caught, snap.Caught)
	}
	if exp.GateOpen != nil && snap.GateOpen != *exp.GateOpen {
		return fmt.Errorf("expected gate_open to be %t, got %t", *exp.GateOpen, snap.GateOpen)
	}

	npcs := make(map[string]world.NPCView, len(snap.NPCs))
	for _, n := range snap.NPCs {
		npcs[n.ID] = n
	}
	npc := func(id string) (world.NPCView, error) {
		n, ok := npcs[id]
		if !ok {
			return n, fmt.Errorf("expected NPC %s to exist, but it doesn't", id)
		}
		return n, nil
	}

	for _, id := range exp.InRange {
		n, err := npc(id)
		if err != nil {
			return err
		}
		if !n.InRange {
			return fmt.Errorf("expected player in range of %s at %v", id, snap.Player.Position)
		}
	}

	sessions := make(map[string]string, len(snap.Sessions))
	for _, s := range snap.Sessions {
		sessions[s.NPCID] = s.State.String()
	}
	for id, want := range exp.SessionStates {
		got, ok := sessions[id]
		if !ok {
			return fmt.Errorf("expected a session with %s, but there is none", id)
		}
		if got != want {
			return fmt.Errorf("expected session with %s to be %s, got %s", id, want, got)
		}
	}
	for _, id := range exp.NoSession {
		if state, ok := sessions[id]; ok && state != "ended" {
			return fmt.Errorf("expected no session with %s, got one in %s", id, state)
		}
	}

	guards := make(map[string]string, len(snap.Guards))
	for _, g := range snap.Guards {
		guards[g.ID] = g.State
	}
	for id, want := range exp.GuardStates {
		got, ok := guards[id]
		if !ok {
			return fmt.Errorf("expected guard %s to exist, but it doesn't", id)
		}
		if got != want {
			return fmt.Errorf("expected guard %s to be %s, got %s", id, want, got)
		}
	}

	for id, want := range exp.Tiers {
		n, err := npc(id)
		if err != nil {
			return err
		}
		if n.Tier != want {
			return fmt.Errorf("expected %s tier %s, got %s", id, want, n.Tier)
		}
	}
	for id, floor := range exp.TrustAtLeast {
		n, err := npc(id)
		if err != nil {
			return err
		}
		if n.Trust.Current < floor {
			return fmt.Errorf("expected %s trust >= %d, got %d", id, floor, n.Trust.Current)
		}
	}
	for id, ceiling := range exp.TrustAtMost {
		n, err := npc(id)
		if err != nil {
			return err
		}
		if n.Trust.Current > ceiling {
			return fmt.Errorf("expected %s trust <= %d, got %d", id, ceiling, n.Trust.Current)
		}
	}

	return nil
}
