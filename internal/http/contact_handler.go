package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/med_store/internal/domain"
)

type ContactWriter interface {
	CreateContactRequest(ctx context.Context, c *domain.ContactRequest) error
}

type ContactHandler struct {
	contacts ContactWriter
	timeout  time.Duration
}

func NewContactHandler(contacts ContactWriter, timeout time.Duration) *ContactHandler {
	return &ContactHandler{contacts: contacts, timeout: timeout}
}

type ContactRequestDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ContactRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	msg := &domain.ContactRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	}
	if err := h.contacts.CreateContactRequest(ctx, msg); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
