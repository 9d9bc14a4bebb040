package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitemilenibarros/backend/internal/resetcode"
	"github.com/sitemilenibarros/backend/pkg/response"
)

// AuthHandler handles password-reset code requests. Delivery of the code is
// out of band; this only issues and verifies.
type AuthHandler struct {
	codes  resetcode.Store
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(codes resetcode.Store, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{codes: codes, logger: logger}
}

type resetCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type confirmResetCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

// IssueResetCode generates and stores a one-time code for the email.
// The response never discloses whether the email is known.
// POST /auth/reset-code
func (h *AuthHandler) IssueResetCode(c *gin.Context) {
	var req resetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	code, err := resetcode.Generate()
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to generate code"))
		return
	}

	if err := h.codes.Set(c.Request.Context(), req.Email, code, resetcode.DefaultTTL); err != nil {
		h.logger.Error("failed to store reset code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to issue code"))
		return
	}

	h.logger.Info("reset code issued", zap.String("email", req.Email))
	c.JSON(http.StatusOK, response.Success(gin.H{"sent": true}))
}

// ConfirmResetCode verifies and consumes a code
// POST /auth/reset-code/confirm
func (h *AuthHandler) ConfirmResetCode(c *gin.Context) {
	var req confirmResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	if err := h.codes.Consume(c.Request.Context(), req.Email, req.Code); err != nil {
		if errors.Is(err, resetcode.ErrCodeInvalid) {
			c.JSON(http.StatusBadRequest, response.BadRequest("Code is invalid or expired"))
			return
		}
		c.JSON(http.StatusInternalServerError, response.InternalError("Failed to verify code"))
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"valid": true}))
}
