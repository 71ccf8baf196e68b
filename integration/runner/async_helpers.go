package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/world"
)

const (
	// PollInterval is how often to check the encounter snapshot
	PollInterval = 200 * time.Millisecond
	// DefaultStepTimeout is how long a step waits for its expectations
	DefaultStepTimeout = 10 * time.Second
)

type createEncounterResponse struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	WorkerID    string    `json:"worker_id"`
}

type commandResponse struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

// CreateEncounter starts an encounter from a scenario file and returns its ID
func CreateEncounter(ctx context.Context, client *http.Client, baseURL, scenario string) (uuid.UUID, error) {
	body, err := json.Marshal(map[string]string{"scenario": scenario})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/encounters", bytes.NewBuffer(body))
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create encounter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return uuid.Nil, fmt.Errorf("create encounter returned %d: %s", resp.StatusCode, string(b))
	}

	var created createEncounterResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return uuid.Nil, fmt.Errorf("failed to decode created encounter: %w", err)
	}
	return created.EncounterID, nil
}

// DeleteEncounter stops the encounter and drops its snapshot
func DeleteEncounter(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, baseURL+"/v1/encounters/"+encounterID.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create DELETE request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete encounter: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete encounter returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

// PostCommand queues a command and returns its ID
func PostCommand(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID, cmd StepCommand) (string, error) {
	reqBody, err := json.Marshal(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to marshal command: %w", err)
	}

	url := fmt.Sprintf("%s/v1/encounters/%s/commands", baseURL, encounterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("command endpoint returned %d (expected 202): %s", resp.StatusCode, string(b))
	}

	var cr commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("failed to parse command response: %w", err)
	}
	return cr.CommandID, nil
}

// GetSnapshot retrieves the current encounter snapshot
func GetSnapshot(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID) (*world.Snapshot, error) {
	url := fmt.Sprintf("%s/v1/encounters/%s", baseURL, encounterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send snapshot request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("encounter endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var snap world.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

// PollForExpectations polls the snapshot until exp holds. On timeout it returns the last mismatch.
func PollForExpectations(ctx context.Context, client *http.Client, baseURL string, encounterID uuid.UUID, exp Expectations, timeout time.Duration) (*world.Snapshot, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	lastErr := fmt.Errorf("no snapshot received")
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for expectations (waited %v): %w", timeout, lastErr)
		case <-ticker.C:
			snap, err := GetSnapshot(ctx, client, baseURL, encounterID)
			if err != nil {
				// Keep polling; the worker may not have saved yet
				lastErr = err
				continue
			}
			if err := CheckExpectations(exp, snap); err != nil {
				lastErr = err
				continue
			}
			return snap, nil
		}
	}
}
