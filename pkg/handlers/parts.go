package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/materials"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
	"github.com/fabriq-inc/fabriq-engine/pkg/repositories"
)

// PartRequest is the request body for creating or updating a part.
type PartRequest struct {
	SourceID      string `json:"source_id"`
	Name          string `json:"name"`
	MaterialClass string `json:"material_class"`
}

// PartsHandler handles part CRUD requests.
type PartsHandler struct {
	repo   repositories.PartRepository
	table  *materials.Table
	logger *zap.Logger
}

// NewPartsHandler creates a new parts handler.
func NewPartsHandler(repo repositories.PartRepository, table *materials.Table, logger *zap.Logger) *PartsHandler {
	return &PartsHandler{repo: repo, table: table, logger: logger}
}

// RegisterRoutes registers the parts handler's routes on the given mux.
func (h *PartsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/parts", h.Create)
	mux.HandleFunc("GET /api/parts", h.List)
	mux.HandleFunc("GET /api/parts/{id}", h.Get)
	mux.HandleFunc("PATCH /api/parts/{id}", h.Update)
}

// Create handles POST /api/parts.
func (h *PartsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.SourceID == "" || req.MaterialClass == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_fields", "source_id and material_class are required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if _, err := h.table.Lookup(req.MaterialClass); err != nil {
		if err := ErrorResponse(w, http.StatusUnprocessableEntity, "unknown_material", "Material class is not in the lookup table"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	part := &models.Part{
		SourceID:      req.SourceID,
		Name:          req.Name,
		MaterialClass: req.MaterialClass,
	}
	if err := h.repo.Create(r.Context(), part); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			if err := ErrorResponse(w, http.StatusConflict, "duplicate_source_id", "A part with this source_id already exists"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to create part", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to create part"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, part); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/parts.
func (h *PartsHandler) List(w http.ResponseWriter, r *http.Request) {
	parts, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list parts", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to list parts"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if err := WriteJSON(w, http.StatusOK, parts); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/parts/{id}.
func (h *PartsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Part ID must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	part, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Part not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get part", zap.String("part_id", id.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get part"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, part); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/parts/{id}.
func (h *PartsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_id", "Part ID must be a UUID"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req PartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	part, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Part not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get part", zap.String("part_id", id.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get part"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Name != "" {
		part.Name = req.Name
	}
	if req.MaterialClass != "" {
		if _, err := h.table.Lookup(req.MaterialClass); err != nil {
			if err := ErrorResponse(w, http.StatusUnprocessableEntity, "unknown_material", "Material class is not in the lookup table"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		part.MaterialClass = req.MaterialClass
	}

	if err := h.repo.Update(r.Context(), part); err != nil {
		h.logger.Error("Failed to update part", zap.String("part_id", id.String()), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to update part"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, part); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
