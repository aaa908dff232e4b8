package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"github.com/scanstock/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler writes the response envelope for the embedding handlers
type BaseHandler struct{}

func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error answers with code and the HTTP status registered for it
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BindError answers a failed ShouldBind. Validator failures list their fields;
// anything else means the body could not be decoded.
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.Error(c, dto.ErrCodeInvalidJSON, "Malformed request body")
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.HandleErrorWithData(c, err, nil)
}

// HandleErrorWithData answers err and still returns data, for state such as the
// scan session that the client must keep after a failed acquisition
func (h *BaseHandler) HandleErrorWithData(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}
	code, message := classify(err)
	if code == dto.ErrCodeInternal {
		logger.GetGinLogger(c).Error("unhandled error", zap.Error(err))
		_ = c.Error(err)
	}
	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	resp.Data = data
	c.JSON(dto.GetHTTPStatus(code), resp)
}

// classify picks the API code and client message for err. Acquisition failures keep
// their full message (endpoint and attempts); unknown errors are not echoed.
func classify(err error) (code, message string) {
	var acqErr *scanning.AcquisitionError
	if errors.As(err, &acqErr) {
		return dto.NormalizeErrorCode(acqErr.Kind.Code()), acqErr.Error()
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
	}
	return dto.ErrCodeInternal, "An unexpected error occurred"
}
