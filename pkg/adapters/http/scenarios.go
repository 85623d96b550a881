package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// ScenarioRequest is the body of scenario create and update requests.
type ScenarioRequest struct {
	BotID       int64  `json:"botId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	StartStepID *int64 `json:"startStepId,omitempty"`
	IsDefault   bool   `json:"isDefault"`
}

// ExecuteRequest is the optional body of POST /api/scenarios/steps/{stepId}/execute.
type ExecuteRequest struct {
	Input string `json:"input"`
}

// ContextResponse wraps a conversation context.
type ContextResponse struct {
	Context *domain.ConversationContext `json:"context"`
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// ListScenarios handles GET /api/scenarios?botId=.
func (s *Server) ListScenarios(w http.ResponseWriter, r *http.Request) {
	botID, err := strconv.ParseInt(r.URL.Query().Get("botId"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "botId query parameter is required")
		return
	}
	scenarios, err := s.Engine.Store().ListScenariosByBot(r.Context(), botID)
	if err != nil {
		s.writeStoreError(w, "list scenarios", err)
		return
	}
	s.writeJSON(w, http.StatusOK, scenarios)
}

// GetScenario handles GET /api/scenarios/{id}.
func (s *Server) GetScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}
	scenario, err := s.Engine.Store().GetScenario(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "get scenario", err)
		return
	}
	s.writeJSON(w, http.StatusOK, scenario)
}

// GetSteps handles GET /api/scenarios/{id}/steps.
func (s *Server) GetSteps(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}
	steps, err := s.Engine.Store().GetStepsByScenario(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "list steps", err)
		return
	}
	s.writeJSON(w, http.StatusOK, steps)
}

func decodeScenario(r *http.Request) (*ScenarioRequest, error) {
	var body ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	if body.Name == "" {
		return nil, errors.New("name is required")
	}
	return &body, nil
}

// CreateScenario handles POST /api/scenarios.
func (s *Server) CreateScenario(w http.ResponseWriter, r *http.Request) {
	body, err := decodeScenario(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	scenario := &domain.Scenario{
		BotID:       body.BotID,
		Name:        body.Name,
		Description: body.Description,
		StartStepID: body.StartStepID,
		IsDefault:   body.IsDefault,
	}
	if err := s.Engine.Store().CreateScenario(r.Context(), scenario); err != nil {
		s.writeStoreError(w, "create scenario", err)
		return
	}
	s.logger.Info("Scenario created", "scenario_id", scenario.ID, "bot_id", scenario.BotID)
	s.writeJSON(w, http.StatusCreated, scenario)
}

// UpdateScenario handles PUT /api/scenarios/{id}.
func (s *Server) UpdateScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}
	body, err := decodeScenario(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	scenario := &domain.Scenario{
		ID:          id,
		BotID:       body.BotID,
		Name:        body.Name,
		Description: body.Description,
		StartStepID: body.StartStepID,
		IsDefault:   body.IsDefault,
	}
	if err := s.Engine.Store().UpdateScenario(r.Context(), scenario); err != nil {
		s.writeStoreError(w, "update scenario", err)
		return
	}
	s.writeJSON(w, http.StatusOK, scenario)
}

// DeleteScenario handles DELETE /api/scenarios/{id}.
func (s *Server) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}
	if err := s.Engine.Store().DeleteScenario(r.Context(), id); err != nil {
		s.writeStoreError(w, "delete scenario", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionParam(r *http.Request) string {
	return r.URL.Query().Get("sessionId")
}

// StartScenario handles POST /api/scenarios/{id}/start?sessionId=.
func (s *Server) StartScenario(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid scenario id")
		return
	}
	sessionID := sessionParam(r)
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId query parameter is required")
		return
	}

	result := s.Engine.StartScenario(r.Context(), sessionID, id)
	s.publish(sessionID, result)
	s.writeJSON(w, http.StatusOK, result)
}

// ExecuteStep handles POST /api/scenarios/steps/{stepId}/execute?sessionId=.
// The body is optional; a missing one means empty input.
func (s *Server) ExecuteStep(w http.ResponseWriter, r *http.Request) {
	stepID, err := pathID(r, "stepId")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid step id")
		return
	}
	sessionID := sessionParam(r)
	if sessionID == "" {
		s.writeError(w, http.StatusBadRequest, "sessionId query parameter is required")
		return
	}

	var body ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		s.logger.Warn("ExecuteStep: Invalid request body", "err", err)
		return
	}

	input := body.Input
	if input != "" {
		clean, err := parley.SanitizeInput(input)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid input: "+err.Error())
			s.logger.Warn("ExecuteStep: Input rejected", "err", err, "size", len(input))
			return
		}
		input = clean
	}

	result := s.Engine.ExecuteStep(r.Context(), sessionID, stepID, input)
	s.publish(sessionID, result)
	s.writeJSON(w, http.StatusOK, result)
}

// GetContext handles GET /api/scenarios/context/{sessionId}.
func (s *Server) GetContext(w http.ResponseWriter, r *http.Request) {
	convCtx, err := s.Engine.GetContext(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		s.writeStoreError(w, "get context", err)
		return
	}
	if s.filter != nil {
		convCtx = s.filter(convCtx)
	}
	s.writeJSON(w, http.StatusOK, ContextResponse{Context: convCtx})
}

// ClearContext handles DELETE /api/scenarios/context/{sessionId}.
func (s *Server) ClearContext(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.ClearContext(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		s.writeStoreError(w, "clear context", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publish forwards a REST turn to the session's event subscribers.
func (s *Server) publish(sessionID string, result *domain.ExecutionResult) {
	s.broadcast(sessionID, s.Engine.Respond(sessionID, result))
}

func (s *Server) broadcast(sessionID string, resp *parley.ChatResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Event encode failed", "session_id", sessionID, "err", err)
		return
	}
	s.Streams.Broadcast(sessionID, string(payload))
}
