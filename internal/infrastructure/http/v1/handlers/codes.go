package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"codemint/internal/core/apperror"
	"codemint/internal/domain/codegen"
	"codemint/internal/infrastructure/http/v1/dto"
	"codemint/pkg/logger"
)

// CodesHandler exposes code generation and confirmation.
type CodesHandler struct {
	BaseHandler
	service *codegen.Service
}

// NewCodesHandler creates a new codes handler.
func NewCodesHandler(service *codegen.Service) *CodesHandler {
	return &CodesHandler{service: service}
}

// Generate handles POST /api/v1/codes/generate
func (h *CodesHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if req.PatternKey != "" && req.Template != "" {
		h.Error(c, apperror.NewValidation("pattern_key and template are mutually exclusive"))
		return
	}

	overrides, err := codegen.OverridesFromMap(req.Overrides)
	if err != nil {
		h.Error(c, err)
		return
	}

	selector := req.PatternKey
	if req.Template != "" {
		selector = req.Template
	}

	code, err := h.service.GenerateFor(c.Request.Context(), selector, overrides)
	if err != nil {
		h.Error(c, err)
		return
	}

	logger.Info(c.Request.Context(), "code generated",
		"code", code,
		"pattern_key", req.PatternKey,
	)

	c.JSON(http.StatusOK, dto.GenerateResponse{Code: code})
}

// Confirm handles POST /api/v1/codes/confirm
func (h *CodesHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRequest
	if !h.BindJSON(c, &req) {
		return
	}

	confirmed, err := h.service.ConfirmUsageFor(c.Request.Context(), req.PatternKey, req.Code)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConfirmResponse{Confirmed: confirmed})
}
