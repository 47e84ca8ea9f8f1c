package services

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/airies-ai/backend/models"
	"github.com/airies-ai/backend/repository"
	"github.com/go-chi/chi/v5"
)

type KnowledgeEndpoints struct {
	repo  *repository.GORMRepository
	usage *UsageService
}

type KnowledgeBaseRequest struct {
	Name           string `json:"name" validate:"required"`
	Description    string `json:"description"`
	EmbeddingModel string `json:"embedding_model"`
	ChunkSize      int    `json:"chunk_size"`
	ChunkOverlap   int    `json:"chunk_overlap"`
}

type RegisterDocumentRequest struct {
	FileName      string  `json:"file_name" validate:"required"`
	FileType      string  `json:"file_type"`
	FileSizeBytes int64   `json:"file_size_bytes"`
	SourceURL     *string `json:"source_url"`
	Status        string  `json:"status"`
}

type GetKnowledgeBasesResponse struct {
	KnowledgeBases []models.KnowledgeBase `json:"knowledge_bases"`
	Count          int                    `json:"count"`
}

func NewKnowledgeEndpoints(repo *repository.GORMRepository, usage *UsageService) *KnowledgeEndpoints {
	return &KnowledgeEndpoints{
		repo:  repo,
		usage: usage,
	}
}

func (e *KnowledgeEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/knowledge", func(r chi.Router) {
		r.Post("/", e.CreateKnowledgeBaseHandler)
		r.Get("/", e.GetKnowledgeBasesHandler)
		r.Get("/{id}", e.GetKnowledgeBaseHandler)
		r.Put("/{id}", e.UpdateKnowledgeBaseHandler)
		r.Delete("/{id}", e.DeleteKnowledgeBaseHandler)
		r.Get("/{id}/documents", e.GetDocumentsHandler)
		r.Post("/{id}/documents", e.RegisterDocumentHandler)
	})
}

func (e *KnowledgeEndpoints) CreateKnowledgeBaseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req KnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "Name is required", http.StatusBadRequest)
		return
	}

	kb := models.KnowledgeBase{
		AccountID:      user.AccountID,
		UserID:         user.ID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         models.KnowledgeBaseActive,
		EmbeddingModel: req.EmbeddingModel,
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
	}
	if kb.EmbeddingModel == "" {
		kb.EmbeddingModel = "text-embedding-3-small"
	}
	if kb.ChunkSize <= 0 {
		kb.ChunkSize = 1000
	}
	if kb.ChunkOverlap < 0 {
		kb.ChunkOverlap = 200
	}

	if err := e.repo.CreateKnowledgeBase(r.Context(), &kb); err != nil {
		http.Error(w, "Failed to create knowledge base", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"knowledge_base": kb,
		"message":        "Knowledge base created successfully",
	})
}

func (e *KnowledgeEndpoints) GetKnowledgeBasesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	bases, err := e.repo.GetKnowledgeBases(r.Context(), user.AccountID)
	if err != nil {
		http.Error(w, "Failed to get knowledge bases", http.StatusInternalServerError)
		return
	}

	response := GetKnowledgeBasesResponse{
		KnowledgeBases: bases,
		Count:          len(bases),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (e *KnowledgeEndpoints) GetKnowledgeBaseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	kbID := chi.URLParam(r, "id")
	kb, err := e.repo.GetKnowledgeBaseByID(r.Context(), kbID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to get knowledge base", http.StatusInternalServerError)
		return
	}
	if kb == nil {
		http.Error(w, "Knowledge base not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"knowledge_base": kb,
	})
}

func (e *KnowledgeEndpoints) UpdateKnowledgeBaseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	kbID := chi.URLParam(r, "id")
	kb, err := e.repo.GetKnowledgeBaseByID(r.Context(), kbID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to update knowledge base", http.StatusInternalServerError)
		return
	}
	if kb == nil {
		http.Error(w, "Knowledge base not found", http.StatusNotFound)
		return
	}

	var req KnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		kb.Name = req.Name
	}
	if req.Description != "" {
		kb.Description = req.Description
	}
	if req.EmbeddingModel != "" {
		kb.EmbeddingModel = req.EmbeddingModel
	}
	if req.ChunkSize > 0 {
		kb.ChunkSize = req.ChunkSize
	}
	if req.ChunkOverlap > 0 {
		kb.ChunkOverlap = req.ChunkOverlap
	}

	if err := e.repo.UpdateKnowledgeBase(r.Context(), kb); err != nil {
		http.Error(w, "Failed to update knowledge base", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"knowledge_base": kb,
		"message":        "Knowledge base updated successfully",
	})
}

func (e *KnowledgeEndpoints) DeleteKnowledgeBaseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	kbID := chi.URLParam(r, "id")
	kb, err := e.repo.GetKnowledgeBaseByID(r.Context(), kbID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to delete knowledge base", http.StatusInternalServerError)
		return
	}
	if kb == nil {
		http.Error(w, "Knowledge base not found", http.StatusNotFound)
		return
	}

	if err := e.repo.DeleteKnowledgeBase(r.Context(), kbID, user.AccountID); err != nil {
		http.Error(w, "Failed to delete knowledge base", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Knowledge base deleted successfully",
	})
}

func (e *KnowledgeEndpoints) GetDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	kbID := chi.URLParam(r, "id")
	kb, err := e.repo.GetKnowledgeBaseByID(r.Context(), kbID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to get documents", http.StatusInternalServerError)
		return
	}
	if kb == nil {
		http.Error(w, "Knowledge base not found", http.StatusNotFound)
		return
	}

	documents, err := e.repo.GetDocuments(r.Context(), kb.ID)
	if err != nil {
		http.Error(w, "Failed to get documents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"documents": documents,
		"count":     len(documents),
	})
}

func (e *KnowledgeEndpoints) RegisterDocumentHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := r.Context().Value("user").(*models.User)
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	kbID := chi.URLParam(r, "id")
	kb, err := e.repo.GetKnowledgeBaseByID(r.Context(), kbID, user.AccountID)
	if err != nil {
		http.Error(w, "Failed to register document", http.StatusInternalServerError)
		return
	}
	if kb == nil {
		http.Error(w, "Knowledge base not found", http.StatusNotFound)
		return
	}

	var req RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		http.Error(w, "File name is required", http.StatusBadRequest)
		return
	}
	if req.Status == "" {
		req.Status = models.DocumentPending
	}
	switch req.Status {
	case models.DocumentPending, models.DocumentProcessing, models.DocumentCompleted, models.DocumentFailed:
	default:
		http.Error(w, "Invalid document status", http.StatusBadRequest)
		return
	}

	doc := models.Document{
		KnowledgeBaseID: kb.ID,
		AccountID:       user.AccountID,
		FileName:        req.FileName,
		FileType:        req.FileType,
		FileSizeBytes:   req.FileSizeBytes,
		SourceURL:       req.SourceURL,
		Status:          req.Status,
	}
	if err := e.repo.CreateDocument(r.Context(), &doc); err != nil {
		http.Error(w, "Failed to register document", http.StatusInternalServerError)
		return
	}

	// Stored bytes are metered against the account's credits.
	if doc.FileSizeBytes > 0 {
		sizeMB := float64(doc.FileSizeBytes) / (1024 * 1024)
		if _, err := e.usage.Record(r.Context(), user.ID, user.AccountID, models.UsageStorage, sizeMB, &doc.ID, nil); err != nil {
			slog.Error("Failed to record storage usage", "error", err, "document_id", doc.ID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"document": doc,
		"message":  "Document registered successfully",
	})
}
