package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medstore/medstore/internal/service"
	"github.com/medstore/medstore/pkg/model"
	"go.uber.org/zap"
)

// ErrorResponse is the standard error body for every endpoint.
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Details *string `json:"details,omitempty"`
}

// AddMedicationRequest carries the add payload.
type AddMedicationRequest struct {
	MedData model.MedicationPatch `json:"med_data"`
}

// UpdateMedicationRequest carries the field merge set for an update.
type UpdateMedicationRequest struct {
	Updates model.MedicationPatch `json:"updates"`
}

// TakeDoseRequest marks one dose slot as taken.
type TakeDoseRequest struct {
	DoseIndex *int `json:"dose_index" binding:"required"`
}

// AddRefillRequest adds inventory; a missing amount defaults to the
// record's doses_per_refill.
type AddRefillRequest struct {
	Amount *int `json:"amount,omitempty"`
}

// StateResponse is the aggregate state surface: the entry count as the
// scalar state and the full record list under attributes.meds.
type StateResponse struct {
	State      int             `json:"state"`
	Attributes StateAttributes `json:"attributes"`
}

// StateAttributes holds the structured attributes of the state surface.
type StateAttributes struct {
	Meds []model.Medication `json:"meds"`
}

// MedicationResponse wraps a mutated record together with its position.
type MedicationResponse struct {
	Index int              `json:"index"`
	Med   model.Medication `json:"med"`
}

// MedStoreHandler implements the operation and state surfaces.
//
// Records are addressed by position, so an index captured before a delete
// may silently point at a different record afterwards. Callers should
// re-read the state surface after every delete.
type MedStoreHandler struct {
	store  *service.MedStore
	logger *zap.Logger
}

// NewMedStoreHandler creates a new MedStoreHandler
func NewMedStoreHandler(store *service.MedStore, logger *zap.Logger) *MedStoreHandler {
	return &MedStoreHandler{
		store:  store,
		logger: logger,
	}
}

// RegisterRoutes mounts the medication endpoints on the router.
func (h *MedStoreHandler) RegisterRoutes(r gin.IRouter) {
	meds := r.Group("/api/v1/meds")
	meds.GET("", h.GetState)
	meds.POST("", h.AddMed)
	meds.PUT("/:index", h.UpdateMed)
	meds.DELETE("/:index", h.DeleteMed)
	meds.POST("/:index/toggle", h.ToggleActive)
	meds.POST("/:index/doses", h.TakeDose)
	meds.POST("/:index/refills", h.AddRefill)
}

// GetState returns the aggregate state surface.
func (h *MedStoreHandler) GetState(c *gin.Context) {
	count, meds := h.store.State()
	c.JSON(http.StatusOK, StateResponse{
		State:      count,
		Attributes: StateAttributes{Meds: meds},
	})
}

// AddMed appends a new medication record.
func (h *MedStoreHandler) AddMed(c *gin.Context) {
	var req AddMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	med, index, err := h.store.Add(c.Request.Context(), req.MedData)
	if err != nil {
		h.logger.Error("failed to add medication", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "Failed to add medication",
			Details: stringPtr(err.Error()),
		})
		return
	}

	c.JSON(http.StatusOK, MedicationResponse{Index: index, Med: med})
}

// UpdateMed merges fields into the record at the given position.
func (h *MedStoreHandler) UpdateMed(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}

	var req UpdateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	med, err := h.store.Update(c.Request.Context(), index, req.Updates)
	if err != nil {
		h.respondStoreError(c, "update", index, err)
		return
	}

	c.JSON(http.StatusOK, MedicationResponse{Index: index, Med: med})
}

// DeleteMed removes the record at the given position.
func (h *MedStoreHandler) DeleteMed(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}

	if err := h.store.Delete(c.Request.Context(), index); err != nil {
		h.respondStoreError(c, "delete", index, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ToggleActive flips the active flag on the record at the given position.
func (h *MedStoreHandler) ToggleActive(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}

	med, err := h.store.ToggleActive(c.Request.Context(), index)
	if err != nil {
		h.respondStoreError(c, "toggle_active", index, err)
		return
	}

	c.JSON(http.StatusOK, MedicationResponse{Index: index, Med: med})
}

// TakeDose marks a dose slot taken and decrements the inventory.
func (h *MedStoreHandler) TakeDose(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}

	var req TakeDoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	med, err := h.store.TakeDose(c.Request.Context(), index, *req.DoseIndex)
	if err != nil {
		h.respondStoreError(c, "take_dose", index, err)
		return
	}

	c.JSON(http.StatusOK, MedicationResponse{Index: index, Med: med})
}

// AddRefill adds inventory and consumes one refill authorization.
func (h *MedStoreHandler) AddRefill(c *gin.Context) {
	index, ok := h.indexParam(c)
	if !ok {
		return
	}

	var req AddRefillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	med, err := h.store.AddRefill(c.Request.Context(), index, req.Amount)
	if err != nil {
		h.respondStoreError(c, "add_refill", index, err)
		return
	}

	c.JSON(http.StatusOK, MedicationResponse{Index: index, Med: med})
}

// indexParam parses the positional index from the path. On failure it writes
// the validation error and reports false.
func (h *MedStoreHandler) indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.logger.Error("invalid index parameter",
			zap.Error(err),
			zap.String("index", c.Param("index")),
		)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid index parameter",
			Details: stringPtr(err.Error()),
		})
		return 0, false
	}
	return index, true
}

// respondStoreError maps store errors onto the error response contract.
func (h *MedStoreHandler) respondStoreError(c *gin.Context, op string, index int, err error) {
	if errors.Is(err, service.ErrIndexOutOfRange) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "INDEX_OUT_OF_RANGE",
			Message: "No medication at the given index",
			Details: stringPtr(err.Error()),
		})
		return
	}

	h.logger.Error("operation failed",
		zap.Error(err),
		zap.String("operation", op),
		zap.Int("index", index),
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: "Operation failed",
		Details: stringPtr(err.Error()),
	})
}
