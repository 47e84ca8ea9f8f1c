package services

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/go-chi/chi/v5"
)

type ConversationEndpoints struct {
	conversations *repository.ConversationRepository
	repo          *repository.GORMRepository
	usage         *UsageService
}

type CreateConversationRequest struct {
	AgentID      string  `json:"agent_id" validate:"required"`
	Channel      string  `json:"channel"`
	CallerNumber *string `json:"caller_number"`
	CalleeNumber *string `json:"callee_number"`
}

type AddMessageRequest struct {
	Role                 string   `json:"role" validate:"required"`
	Content              string   `json:"content" validate:"required"`
	AudioDurationSeconds *float64 `json:"audio_duration_seconds"`
}

type RateConversationRequest struct {
	Rating   int     `json:"rating" validate:"required"`
	Feedback *string `json:"feedback"`
}

type GetConversationsResponse struct {
	Conversations []models.Conversation `json:"conversations"`
	Count         int                   `json:"count"`
}

func NewConversationEndpoints(conversations *repository.ConversationRepository, repo *repository.GORMRepository, usage *UsageService) *ConversationEndpoints {
	return &ConversationEndpoints{
		conversations: conversations,
		repo:          repo,
		usage:         usage,
	}
}

func (e *ConversationEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", e.CreateConversationHandler)
		r.Get("/", e.GetConversationsHandler)
		r.Get("/{id}", e.GetConversationHandler)
		r.Post("/{id}/messages", e.AddMessageHandler)
		r.Post("/{id}/end", e.EndConversationHandler)
		r.Post("/{id}/rate", e.RateConversationHandler)
	})
}

func (e *ConversationEndpoints) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.AgentID == "" {
		http.Error(w, "Agent ID is required", http.StatusBadRequest)
		return
	}
	if req.Channel == "" {
		req.Channel = models.ChannelWeb
	}
	switch req.Channel {
	case models.ChannelWeb, models.ChannelVoice, models.ChannelPhone:
	default:
		http.Error(w, "Invalid channel", http.StatusBadRequest)
		return
	}

	agent, err := e.repo.GetAgentByID(r.Context(), req.AgentID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}
	if agent == nil {
		http.Error(w, "Agent not found", http.StatusNotFound)
		return
	}
	if agent.Status != models.AgentStatusActive {
		http.Error(w, "Agent is not active", http.StatusBadRequest)
		return
	}

	conv := models.Conversation{
		AccountID:    user.AccountID,
		UserID:       user.ID,
		AgentID:      agent.ID,
		Channel:      req.Channel,
		Status:       models.ConversationActive,
		CallerNumber: req.CallerNumber,
		CalleeNumber: req.CalleeNumber,
		StartedAt:    time.Now().UTC(),
	}
	if err := e.conversations.CreateConversation(r.Context(), &conv); err != nil {
		http.Error(w, "Failed to create conversation", http.StatusInternalServerError)
		return
	}
	if err := e.repo.TouchAgentUsage(r.Context(), agent.ID); err != nil {
		slog.Error("Failed to bump agent conversation count", "error", err, "agent_id", agent.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversation": conv,
		"message":      "Conversation started",
	})
}

func (e *ConversationEndpoints) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := repository.ConversationFilter{
		AgentID: q.Get("agent_id"),
		Channel: q.Get("channel"),
		Status:  q.Get("status"),
		Limit:   limit,
		Offset:  offset,
	}

	conversations, err := e.conversations.GetConversations(r.Context(), user.AccountID, filter)
	if err != nil {
		http.Error(w, "Failed to get conversations", http.StatusInternalServerError)
		return
	}

	response := GetConversationsResponse{
		Conversations: conversations,
		Count:         len(conversations),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (e *ConversationEndpoints) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	conversationID := chi.URLParam(r, "id")
	conv, err := e.conversations.GetConversationByID(r.Context(), conversationID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}
	if conv == nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	messages, err := e.conversations.GetMessages(r.Context(), conv.ID, 0)
	if err != nil {
		http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversation": conv,
		"messages":     messages,
	})
}

func (e *ConversationEndpoints) AddMessageHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	conversationID := chi.URLParam(r, "id")
	conv, err := e.conversations.GetConversationByID(r.Context(), conversationID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to add message", http.StatusInternalServerError)
		return
	}
	if conv == nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if conv.IsEnded() {
		http.Error(w, "Conversation has ended", http.StatusBadRequest)
		return
	}

	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Content is required", http.StatusBadRequest)
		return
	}
	switch req.Role {
	case models.RoleUser, models.RoleAssistant, models.RoleSystem:
	default:
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	message := models.ConversationMessage{
		ConversationID:       conv.ID,
		Role:                 req.Role,
		Content:              req.Content,
		AudioDurationSeconds: req.AudioDurationSeconds,
	}

	// Voice turns are metered; text turns are free at message level.
	if req.AudioDurationSeconds != nil && *req.AudioDurationSeconds > 0 {
		minutes := *req.AudioDurationSeconds / 60.0
		usageLog, err := e.usage.Record(r.Context(), user.ID, user.AccountID, models.UsageVoiceMinutes, minutes, &conv.ID, nil)
		if err != nil {
			slog.Error("Failed to record voice usage", "error", err, "conversation_id", conv.ID)
		} else {
			message.Credits = usageLog.CostCredits
		}
	}

	if err := e.conversations.AddMessage(r.Context(), &message); err != nil {
		http.Error(w, "Failed to add message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(message)
}

func (e *ConversationEndpoints) EndConversationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	conversationID := chi.URLParam(r, "id")
	conv, err := e.conversations.GetConversationByID(r.Context(), conversationID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to end conversation", http.StatusInternalServerError)
		return
	}
	if conv == nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	wasEnded := conv.IsEnded()
	conv, err = e.conversations.EndConversation(r.Context(), conversationID, user.AccountID, models.ConversationCompleted)
	if err != nil {
		http.Error(w, "Failed to end conversation", http.StatusInternalServerError)
		return
	}

	if !wasEnded {
		if _, err := e.usage.Record(r.Context(), user.ID, user.AccountID, models.UsageConversation, 1, &conv.ID, nil); err != nil {
			slog.Error("Failed to record conversation usage", "error", err, "conversation_id", conv.ID)
		}
		if conv.DurationSeconds > 0 {
			minutes := float64(conv.DurationSeconds) / 60.0
			if err := e.repo.AddAgentMinutes(r.Context(), conv.AgentID, minutes); err != nil {
				slog.Error("Failed to add agent minutes", "error", err, "agent_id", conv.AgentID)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversation": conv,
		"message":      "Conversation ended",
	})
}

func (e *ConversationEndpoints) RateConversationHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	conversationID := chi.URLParam(r, "id")
	conv, err := e.conversations.GetConversationByID(r.Context(), conversationID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to rate conversation", http.StatusInternalServerError)
		return
	}
	if conv == nil {
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if !conv.IsEnded() {
		http.Error(w, "Conversation must be ended before rating", http.StatusBadRequest)
		return
	}

	var req RateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	conv.UserRating = &req.Rating
	if req.Feedback != nil {
		conv.UserFeedback = req.Feedback
	}
	if err := e.conversations.UpdateConversation(r.Context(), conv); err != nil {
		http.Error(w, "Failed to rate conversation", http.StatusInternalServerError)
		return
	}
	if err := e.conversations.RefreshAgentRating(r.Context(), conv.AgentID); err != nil {
		slog.Error("Failed to refresh agent rating", "error", err, "agent_id", conv.AgentID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"conversation": conv,
		"message":      "Thanks for the feedback",
	})
}
