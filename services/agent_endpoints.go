package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/go-chi/chi/v5"
)

type AgentEndpoints struct {
	repo *repository.GORMRepository
}

type AgentRequest struct {
	Name           string         `json:"name" validate:"required"`
	Description    string         `json:"description"`
	AgentType      string         `json:"agent_type"`
	Status         string         `json:"status"`
	SystemPrompt   string         `json:"system_prompt" validate:"required"`
	WelcomeMessage string         `json:"welcome_message"`
	Language       string         `json:"language"`
	VoiceConfig    models.JSONMap `json:"voice_config"`
	LLMConfig      models.JSONMap `json:"llm_config"`
	PhoneNumber    *string        `json:"phone_number"`
}

type GetAgentsResponse struct {
	Agents []models.Agent `json:"agents"`
	Count  int            `json:"count"`
}

func NewAgentEndpoints(repo *repository.GORMRepository) *AgentEndpoints {
	return &AgentEndpoints{
		repo: repo,
	}
}

func (e *AgentEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/agents", func(r chi.Router) {
		r.Post("/", e.CreateAgentHandler)
		r.Get("/", e.GetAgentsHandler)
		r.Get("/{id}", e.GetAgentHandler)
		r.Put("/{id}", e.UpdateAgentHandler)
		r.Delete("/{id}", e.DeleteAgentHandler)
	})
}

func validAgentType(agentType string) bool {
	switch agentType {
	case models.AgentTypeVoice, models.AgentTypeWeb, models.AgentTypePhone:
		return true
	}
	return false
}

// phoneNumberTaken reports whether another agent in the account already
// answers on this number.
func (e *AgentEndpoints) phoneNumberTaken(r *http.Request, accountID string, phoneNumber *string, selfID string) (bool, error) {
	if phoneNumber == nil || *phoneNumber == "" {
		return false, nil
	}
	existing, err := e.repo.GetAgentByPhoneNumber(r.Context(), accountID, *phoneNumber)
	if err != nil {
		return false, err
	}
	return existing != nil && existing.ID != selfID, nil
}

func (e *AgentEndpoints) CreateAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.SystemPrompt == "" {
		http.Error(w, "Name and system prompt are required", http.StatusBadRequest)
		return
	}
	if req.AgentType == "" {
		req.AgentType = models.AgentTypeWeb
	}
	if !validAgentType(req.AgentType) {
		http.Error(w, "Invalid agent type", http.StatusBadRequest)
		return
	}

	taken, err := e.phoneNumberTaken(r, user.AccountID, req.PhoneNumber, "")
	if err != nil {
		http.Error(w, "Failed to create agent", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "Phone number already in use by another agent", http.StatusConflict)
		return
	}

	agent := models.Agent{
		AccountID:      user.AccountID,
		UserID:         user.ID,
		Name:           req.Name,
		Description:    req.Description,
		AgentType:      req.AgentType,
		Status:         models.AgentStatusActive,
		SystemPrompt:   req.SystemPrompt,
		WelcomeMessage: req.WelcomeMessage,
		Language:       req.Language,
		VoiceConfig:    req.VoiceConfig,
		LLMConfig:      req.LLMConfig,
		PhoneNumber:    req.PhoneNumber,
	}
	if agent.Language == "" {
		agent.Language = "en"
	}

	if err := e.repo.CreateAgent(r.Context(), &agent); err != nil {
		slog.Error("Failed to create agent", "error", err, "account_id", user.AccountID)
		http.Error(w, "Failed to create agent", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agent":   agent,
		"message": "Agent created successfully",
	})
}

func (e *AgentEndpoints) GetAgentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	agentType := r.URL.Query().Get("agent_type")
	status := r.URL.Query().Get("status")

	agents, err := e.repo.GetAgents(r.Context(), user.AccountID, agentType, status)
	if err != nil {
		slog.Error("Failed to get agents", "error", err, "account_id", user.AccountID)
		http.Error(w, "Failed to get agents", http.StatusInternalServerError)
		return
	}

	response := GetAgentsResponse{
		Agents: agents,
		Count:  len(agents),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (e *AgentEndpoints) GetAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	agentID := chi.URLParam(r, "id")
	agent, err := e.repo.GetAgentByID(r.Context(), agentID, user.AccountID)
	if err != nil {
		slog.Error("Failed to get agent", "error", err, "agent_id", agentID, "account_id", user.AccountID)
		http.Error(w, "Failed to get agent", http.StatusInternalServerError)
		return
	}
	if agent == nil {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agent": agent,
	})
}

func (e *AgentEndpoints) UpdateAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	agentID := chi.URLParam(r, "id")
	agent, err := e.repo.GetAgentByID(r.Context(), agentID, user.AccountID)
	if err != nil {
		slog.Error("Failed to get agent for update", "error", err, "agent_id", agentID, "account_id", user.AccountID)
		http.Error(w, "Failed to update agent", http.StatusInternalServerError)
		return
	}
	if agent == nil {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}

	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		agent.Name = req.Name
	}
	if req.Description != "" {
		agent.Description = req.Description
	}
	if req.AgentType != "" {
		if !validAgentType(req.AgentType) {
			http.Error(w, "Invalid agent type", http.StatusBadRequest)
			return
		}
		agent.AgentType = req.AgentType
	}
	if req.Status != "" {
		switch req.Status {
		case models.AgentStatusActive, models.AgentStatusPaused, models.AgentStatusArchived:
			agent.Status = req.Status
		default:
			http.Error(w, "Invalid agent status", http.StatusBadRequest)
			return
		}
	}
	if req.SystemPrompt != "" {
		agent.SystemPrompt = req.SystemPrompt
	}
	if req.WelcomeMessage != "" {
		agent.WelcomeMessage = req.WelcomeMessage
	}
	if req.Language != "" {
		agent.Language = req.Language
	}
	if req.VoiceConfig != nil {
		agent.VoiceConfig = req.VoiceConfig
	}
	if req.LLMConfig != nil {
		agent.LLMConfig = req.LLMConfig
	}
	if req.PhoneNumber != nil {
		taken, err := e.phoneNumberTaken(r, user.AccountID, req.PhoneNumber, agent.ID)
		if err != nil {
			http.Error(w, "Failed to update agent", http.StatusInternalServerError)
			return
		}
		if taken {
			http.Error(w, "Phone number already in use by another agent", http.StatusConflict)
			return
		}
		agent.PhoneNumber = req.PhoneNumber
	}

	if err := e.repo.UpdateAgent(r.Context(), agent); err != nil {
		slog.Error("Failed to update agent", "error", err, "agent_id", agentID, "account_id", user.AccountID)
		http.Error(w, "Failed to update agent", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"agent":   agent,
		"message": "Agent updated successfully",
	})
}

func (e *AgentEndpoints) DeleteAgentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	agentID := chi.URLParam(r, "id")
	agent, err := e.repo.GetAgentByID(r.Context(), agentID, user.AccountID)
	if err != nil {
		slog.Error("Failed to get agent for deletion", "error", err, "agent_id", agentID, "account_id", user.AccountID)
		http.Error(w, "Failed to delete agent", http.StatusInternalServerError)
		return
	}
	if agent == nil {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}

	if err := e.repo.DeleteAgent(r.Context(), agentID, user.AccountID); err != nil {
		slog.Error("Failed to delete agent", "error", err, "agent_id", agentID, "account_id", user.AccountID)
		http.Error(w, "Failed to delete agent", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Agent deleted successfully",
	})
}
