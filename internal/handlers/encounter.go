package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/internal/worker"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/queue"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		logger.Error("Failed to encode error response", "error", err)
	}
}

// Runner starts and tracks encounters running in this process.
type Runner interface {
	Start(scn *scenario.Scenario) (*worker.Worker, error)
	Get(encounterID uuid.UUID) (*worker.Worker, bool)
	Stop(encounterID uuid.UUID) bool
}

// CommandEnqueuer hands player commands to whichever worker owns the encounter.
type CommandEnqueuer interface {
	Enqueue(ctx context.Context, cmd *queue.Command) error
}

// CreateEncounterRequest defines the request body for starting an encounter
type CreateEncounterRequest struct {
	Scenario string `json:"scenario"`
}

type CreateEncounterResponse struct {
	EncounterID uuid.UUID `json:"encounter_id"`
	WorkerID    string    `json:"worker_id"`
	Scenario    string    `json:"scenario"`
}

// CommandRequest is the body of a command post
type CommandRequest struct {
	Type      queue.CommandType `json:"type"`
	NPCID     string            `json:"npc_id,omitempty"`
	Choice    int               `json:"choice,omitempty"`
	Direction geom.Vec2         `json:"direction"`
}

type CommandResponse struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

type EncounterHandler struct {
	storage  storage.Storage
	commands CommandEnqueuer
	runner   Runner
	events   *EventsHandler
	logger   *slog.Logger
}

// NewEncounterHandler wires the encounter routes. runner and events may be nil when this process hosts no
// workers or has no event stream.
func NewEncounterHandler(logger *slog.Logger, storage storage.Storage, commands CommandEnqueuer, runner Runner, events *EventsHandler) *EncounterHandler {
	return &EncounterHandler{
		storage:  storage,
		commands: commands,
		runner:   runner,
		events:   events,
		logger:   logger,
	}
}

// ServeHTTP handles HTTP requests for encounters
// Routes:
// POST /v1/encounters                 - Start an encounter from a scenario file
// GET /v1/encounters/{id}             - Current snapshot
// DELETE /v1/encounters/{id}          - Stop the encounter and drop its snapshot
// POST /v1/encounters/{id}/commands   - Queue a player command
// GET /v1/encounters/{id}/events      - SSE event stream
func (h *EncounterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/encounters"), "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	encounterID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid encounter ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid encounter ID format")
		return
	}

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.handleRead(w, r, encounterID)
		case http.MethodDelete:
			h.handleDelete(w, r, encounterID)
		default:
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
		}
	case len(parts) == 2 && parts[1] == "commands":
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCommand(w, r, encounterID)
	case len(parts) == 2 && parts[1] == "events" && h.events != nil:
		h.events.serveEncounter(w, r, encounterID)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *EncounterHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "This server does not host encounters")
		return
	}

	var req CreateEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	if req.Scenario == "" {
		writeError(w, h.logger, http.StatusBadRequest, "scenario is required")
		return
	}

	scn, err := h.storage.GetScenario(r.Context(), req.Scenario)
	if err != nil {
		if errors.Is(err, storage.ErrScenarioNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Scenario not found")
			return
		}
		h.logger.Error("Failed to load scenario", "error", err, "scenario", req.Scenario)
		writeError(w, h.logger, http.StatusBadRequest, "Failed to load scenario: "+err.Error())
		return
	}

	wk, err := h.runner.Start(scn)
	if err != nil {
		h.logger.Error("Failed to start encounter", "error", err, "scenario", req.Scenario)
		writeError(w, h.logger, http.StatusUnprocessableEntity, "Failed to start encounter: "+err.Error())
		return
	}

	h.logger.Info("Encounter started",
		"encounter_id", wk.EncounterID().String(),
		"worker_id", wk.ID(),
		"scenario", req.Scenario)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(CreateEncounterResponse{
		EncounterID: wk.EncounterID(),
		WorkerID:    wk.ID(),
		Scenario:    req.Scenario,
	}); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// handleRead serves the live snapshot when the encounter runs here, otherwise the last stored one.
func (h *EncounterHandler) handleRead(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	w.Header().Set("Content-Type", "application/json")

	if h.runner != nil {
		if wk, ok := h.runner.Get(encounterID); ok {
			if err := json.NewEncoder(w).Encode(wk.Snapshot()); err != nil {
				h.logger.Error("Failed to encode snapshot", "error", err)
			}
			return
		}
	}

	snap, err := h.storage.LoadSnapshot(r.Context(), encounterID)
	if err != nil {
		h.logger.Error("Failed to load snapshot", "error", err, "encounter_id", encounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load encounter")
		return
	}
	if snap == nil {
		writeError(w, h.logger, http.StatusNotFound, "Encounter not found")
		return
	}
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.logger.Error("Failed to encode snapshot", "error", err)
	}
}

func (h *EncounterHandler) handleDelete(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	stopped := h.runner != nil && h.runner.Stop(encounterID)
	if err := h.storage.DeleteSnapshot(r.Context(), encounterID); err != nil {
		h.logger.Error("Failed to delete snapshot", "error", err, "encounter_id", encounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete encounter")
		return
	}
	h.logger.Info("Encounter deleted", "encounter_id", encounterID.String(), "stopped", stopped)
	w.WriteHeader(http.StatusNoContent)
}

func (h *EncounterHandler) handleCommand(w http.ResponseWriter, r *http.Request, encounterID uuid.UUID) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}

	cmd := queue.NewCommand(encounterID, req.Type)
	cmd.NPCID = req.NPCID
	cmd.Choice = req.Choice
	cmd.Direction = req.Direction
	if err := cmd.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.commands.Enqueue(r.Context(), cmd); err != nil {
		h.logger.Error("Failed to enqueue command", "error", err, "encounter_id", encounterID.String())
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue command")
		return
	}

	h.logger.Debug("Command queued",
		"encounter_id", encounterID.String(),
		"command_id", cmd.CommandID,
		"type", cmd.Type)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(CommandResponse{CommandID: cmd.CommandID, Status: "queued"}); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}
