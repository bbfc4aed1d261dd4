package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"rentkar/internal/partners/service"
	apperrors "rentkar/pkg/errors"
	httputil "rentkar/pkg/http"
	"rentkar/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

type PartnerHandler struct {
	service service.PartnerService
	log     *logger.Logger
}

func NewPartnerHandler(service service.PartnerService, log *logger.Logger) *PartnerHandler {
	return &PartnerHandler{
		service: service,
		log:     log,
	}
}

func (h *PartnerHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/partners", h.GetAll)
	router.GET("/api/v1/partners/:id", h.GetByID)
	router.POST("/api/v1/partners/:id/gps", h.UpdateLocation)
	router.GET("/api/v1/partners/:id/gps/history", h.GPSHistory)
	router.POST("/api/v1/partners/:id/release", h.Release)
}

func (h *PartnerHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	status := r.URL.Query().Get("status")

	partners, total, err := h.service.GetAll(r.Context(), status, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, partners, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *PartnerHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	partner, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, partner); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

type gpsUpdateRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *PartnerHandler) UpdateLocation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req gpsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "UpdateLocation", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	update, err := h.service.UpdateLocation(r.Context(), id, req.Lat, req.Lng)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "UpdateLocation", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, update); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateLocation", "operation", "WriteSuccess", "error", err)
	}
}

func (h *PartnerHandler) GPSHistory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil {
			if writeErr := httputil.WriteError(w, apperrors.InvalidInput("invalid limit parameter: "+limitStr)); writeErr != nil {
				h.log.Error("failed to write error response", "handler", "GPSHistory", "operation", "WriteError", "error", writeErr)
			}
			return
		}
		limit = n
	}

	history, err := h.service.GPSHistory(r.Context(), id, limit)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GPSHistory", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, history); err != nil {
		h.log.Error("failed to write success response", "handler", "GPSHistory", "operation", "WriteSuccess", "error", err)
	}
}

type releaseRequest struct {
	BookingID string `json:"bookingId"`
}

func (h *PartnerHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Release", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}
	if req.BookingID == "" {
		if writeErr := httputil.WriteError(w, apperrors.InvalidInput("bookingId is required")); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Release", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := h.service.ReleaseFromBooking(r.Context(), id, req.BookingID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Release", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}
