package services

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/go-chi/chi/v5"
)

type UsageEndpoints struct {
	repo *repository.UsageRepository
}

func NewUsageEndpoints(repo *repository.UsageRepository) *UsageEndpoints {
	return &UsageEndpoints{repo: repo}
}

func (e *UsageEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/usage", func(r chi.Router) {
		r.Get("/", e.GetUsageHandler)
		r.Get("/summary", e.GetSummaryHandler)
		r.Get("/credits", e.GetCreditsHandler)
	})
}

func (e *UsageEndpoints) GetUsageHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	filter := repository.UsageFilter{
		UsageType: q.Get("usage_type"),
		Limit:     limit,
		Offset:    offset,
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "Invalid since timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			http.Error(w, "Invalid until timestamp", http.StatusBadRequest)
			return
		}
		filter.Until = t
	}

	logs, err := e.repo.GetUsageLogs(r.Context(), user.AccountID, filter)
	if err != nil {
		http.Error(w, "Failed to get usage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"usage": logs,
		"count": len(logs),
	})
}

func (e *UsageEndpoints) GetSummaryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	periodDays, _ := strconv.Atoi(r.URL.Query().Get("period_days"))
	summary, err := e.repo.Summarize(r.Context(), user.AccountID, periodDays)
	if err != nil {
		http.Error(w, "Failed to get usage summary", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func (e *UsageEndpoints) GetCreditsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	transactions, err := e.repo.GetCreditTransactions(r.Context(), user.AccountID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to get credit transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"balance":      user.Credits,
		"transactions": transactions,
		"count":        len(transactions),
	})
}
