package handlers

import (
	"errors"
	"net/http"

	"github.com/upb/calendar-api/services"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses.
// Conflicts are reported as 400, the status clients of this API expect for
// an already existing user or event.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	message := services.ClientMessage(err)
	details := clientDetails(err)

	var writeErr error
	switch {
	case services.IsValidationError(err), services.IsConflictError(err):
		writeErr = utils.WriteError(w, http.StatusBadRequest, message, details)

	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsForbiddenError(err):
		writeErr = utils.WriteForbidden(w, message)

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, message)

	default:
		logger.Error("unhandled error type", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, services.DefaultClientMessage)
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleBodyError writes the response for a request body that could not be read or decoded
func HandleBodyError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var bodyErr *utils.BodyError
	if !errors.As(err, &bodyErr) {
		HandleServiceError(w, err, logger)
		return
	}

	logger.Debug("rejected request body", zap.Error(err))
	if writeErr := utils.WriteBadRequest(w, bodyErr.Message(), nil); writeErr != nil {
		logger.Error("failed to write bad request response", zap.Error(writeErr))
	}
}

// clientDetails returns the details of validation errors; other errors carry none
func clientDetails(err error) map[string]interface{} {
	if !services.IsValidationError(err) {
		return nil
	}
	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		return nil
	}
	return details
}
