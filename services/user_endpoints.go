package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/go-chi/chi/v5"
)

type UserEndpoints struct {
	repo     *repository.GORMRepository
	accounts *AccountService
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Company   *string `json:"company"`
	Phone     *string `json:"phone"`
	Timezone  *string `json:"timezone"`
	Language  *string `json:"language"`
}

func NewUserEndpoints(repo *repository.GORMRepository, accounts *AccountService) *UserEndpoints {
	return &UserEndpoints{
		repo:     repo,
		accounts: accounts,
	}
}

func (e *UserEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/me", e.GetMeHandler)
		r.Put("/me", e.UpdateMeHandler)
		r.Post("/me/api-key", e.RotateAPIKeyHandler)
	})
}

func (e *UserEndpoints) GetMeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user": user,
	})
}

func (e *UserEndpoints) UpdateMeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Company != nil {
		user.Company = *req.Company
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Timezone != nil {
		user.Timezone = *req.Timezone
	}
	if req.Language != nil {
		user.Language = *req.Language
	}

	if err := e.repo.UpdateUser(r.Context(), user); err != nil {
		slog.Error("Failed to update user profile", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":    user,
		"message": "Profile updated successfully",
	})
}

func (e *UserEndpoints) RotateAPIKeyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	key, err := e.accounts.RotateAPIKey(r.Context(), user)
	if err != nil {
		slog.Error("Failed to rotate API key", "error", err, "user_id", user.ID)
		http.Error(w, "Failed to rotate API key", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"api_key":    key,
		"created_at": user.APIKeyCreated,
		"message":    "Store this key now; it cannot be retrieved again",
	})
}
