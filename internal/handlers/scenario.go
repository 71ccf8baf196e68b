package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/stealth-engine/pkg/storage"
)

type ScenarioHandler struct {
	log     *slog.Logger
	storage storage.Storage
}

func NewScenarioHandler(log *slog.Logger, storage storage.Storage) *ScenarioHandler {
	return &ScenarioHandler{
		log:     log,
		storage: storage,
	}
}

// ServeHTTP handles scenario lookups
// Routes:
// GET /v1/scenarios        - Map of scenario name to file name
// GET /v1/scenarios/{file} - One scenario
func (h *ScenarioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScenarioHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	filename := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/v1/scenarios"), "/"))
	if filename == "" {
		h.handleList(w, r)
		return
	}

	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	scn, err := h.storage.GetScenario(r.Context(), filename)
	if err != nil {
		if errors.Is(err, storage.ErrScenarioNotFound) {
			http.Error(w, "Scenario not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to get scenario", "error", err, "filename", filename)
		http.Error(w, "Failed to retrieve scenario", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(scn)
	if err != nil {
		h.log.Error("Failed to marshal scenario", "error", err, "filename", filename)
		http.Error(w, "Failed to process scenario", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ScenarioHandler) handleList(w http.ResponseWriter, r *http.Request) {
	scenarios, err := h.storage.ListScenarios(r.Context())
	if err != nil {
		h.log.Error("Failed to list scenarios", "error", err)
		http.Error(w, "Failed to list scenarios", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(scenarios); err != nil {
		h.log.Error("Failed to encode scenario list", "error", err)
	}
}
