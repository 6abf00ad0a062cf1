package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/services"
)

// EstimationRequest is the request body for POST /api/estimations. The CAD
// file and drawing page arrive base64-encoded; either may be absent.
type EstimationRequest struct {
	SourceID      string `json:"source_id"`
	MaterialClass string `json:"material_class"`
	CADFile       string `json:"cad_file,omitempty"`
	DrawingPage   string `json:"drawing_page,omitempty"`
}

// EstimationsHandler handles estimation pipeline HTTP requests.
type EstimationsHandler struct {
	pipeline services.EstimationPipeline
	logger   *zap.Logger
}

// NewEstimationsHandler creates a new estimations handler.
func NewEstimationsHandler(pipeline services.EstimationPipeline, logger *zap.Logger) *EstimationsHandler {
	return &EstimationsHandler{pipeline: pipeline, logger: logger}
}

// RegisterRoutes registers the estimations handler's routes on the given mux.
func (h *EstimationsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/estimations", h.Run)
	mux.HandleFunc("GET /api/estimations/{source_id}/{geometry_version}/{drawing_version}", h.Get)
}

// Run handles POST /api/estimations.
// Runs the full pipeline and returns the stored result.
func (h *EstimationsHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req EstimationRequest
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

	cadBytes, err := decodeField(req.CADFile)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_cad_file", "cad_file must be base64"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	drawingBytes, err := decodeField(req.DrawingPage)
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_drawing_page", "drawing_page must be base64"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.pipeline.Run(r.Context(), services.RunRequest{
		SourceID:      req.SourceID,
		MaterialClass: req.MaterialClass,
		CADBytes:      cadBytes,
		DrawingPNG:    drawingBytes,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrMaterialNotFound) {
			if err := ErrorResponse(w, http.StatusUnprocessableEntity, "unknown_material", "Material class is not in the lookup table"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Estimation pipeline failed",
			zap.String("source_id", req.SourceID),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Estimation failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusCreated, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/estimations/{source_id}/{geometry_version}/{drawing_version}.
// Serves a previously computed result from cache or the append-only log.
func (h *EstimationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sourceID := r.PathValue("source_id")
	geometryVersion, err1 := strconv.Atoi(r.PathValue("geometry_version"))
	drawingVersion, err2 := strconv.Atoi(r.PathValue("drawing_version"))
	if sourceID == "" || err1 != nil || err2 != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_path", "Versions must be integers"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.pipeline.GetResult(r.Context(), sourceID, geometryVersion, drawingVersion)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "No result for this version pair"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to get estimation result",
			zap.String("source_id", sourceID),
			zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to get result"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func decodeField(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
