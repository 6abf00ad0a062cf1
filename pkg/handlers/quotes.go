package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
	"github.com/fabriq-inc/fabriq-engine/pkg/repositories"
)

// QuoteRequest is the request body for creating a quote.
type QuoteRequest struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
}

// AttachEstimationRequest links a stored estimation result to a quote.
type AttachEstimationRequest struct {
	EstimationID string `json:"estimation_id"`
}

// QuotesHandler handles quote lifecycle requests.
type QuotesHandler struct {
	quotes repositories.QuoteRepository
	parts  repositories.PartRepository
	logger *zap.Logger
}

// NewQuotesHandler creates a new quotes handler.
func NewQuotesHandler(quotes repositories.QuoteRepository, parts repositories.PartRepository, logger *zap.Logger) *QuotesHandler {
	return &QuotesHandler{quotes: quotes, parts: parts, logger: logger}
}

// RegisterRoutes registers the quotes handler's routes on the given mux.
func (h *QuotesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/quotes", h.Create)
	mux.HandleFunc("GET /api/quotes/{id}", h.Get)
	mux.HandleFunc("GET /api/parts/{id}/quotes", h.ListByPart)
	mux.HandleFunc("POST /api/quotes/{id}/estimation", h.AttachEstimation)
}

// Create handles POST /api/quotes.
func (h *QuotesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	partID, err := uuid.Parse(req.PartID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_part_id", "part_id must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.Quantity < 1 {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at least 1"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if _, err := h.parts.GetByID(r.Context(), partID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Part not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get part", zap.String("part_id", partID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get part"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	quote := &models.Quote{PartID: partID, Quantity: req.Quantity}
	if err := h.quotes.Create(r.Context(), quote); err != nil {
		h.logger.Error("Failed to create quote", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create quote"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, quote); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/quotes/{id}.
func (h *QuotesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Quote ID must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	quote, err := h.quotes.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Quote not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get quote", zap.String("quote_id", id.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get quote"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, quote); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListByPart handles GET /api/parts/{id}/quotes.
func (h *QuotesHandler) ListByPart(w http.ResponseWriter, r *http.Request) {
	partID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Part ID must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	quotes, err := h.quotes.ListByPart(r.Context(), partID)
	if err != nil {
		h.logger.Error("Failed to list quotes", zap.String("part_id", partID.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list quotes"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, quotes); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AttachEstimation handles POST /api/quotes/{id}/estimation.
// Marks the quote estimated and records which result it is based on.
func (h *QuotesHandler) AttachEstimation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Quote ID must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req AttachEstimationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	estimationID, err := uuid.Parse(req.EstimationID)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_estimation_id", "estimation_id must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.quotes.AttachEstimation(r.Context(), id, estimationID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Quote not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to attach estimation", zap.String("quote_id", id.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to attach estimation"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
