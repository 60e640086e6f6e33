package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	logpkg "github.com/kailas-cloud/vecdesk/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// sentinelMapping binds a domain sentinel to an HTTP status and error code.
// Client errors carry the full error text; server-side failures only the sentinel text.
type sentinelMapping struct {
	sentinel error
	status   int
	code     ErrorCode
}

// Order matters: the first matching sentinel wins.
var sentinelMappings = []sentinelMapping{
	{domain.ErrCollectionNotFound, http.StatusNotFound, ErrorCodeCollectionNotFound},
	{domain.ErrRecordNotFound, http.StatusNotFound, ErrorCodeRecordNotFound},
	{domain.ErrCollectionExists, http.StatusConflict, ErrorCodeCollectionExists},
	{domain.ErrEmptyInput, http.StatusBadRequest, ErrorCodeEmptyInput},
	{domain.ErrSchemaMismatch, http.StatusBadRequest, ErrorCodeSchemaMismatch},
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed},
	{domain.ErrEmbeddingService, http.StatusBadGateway, ErrorCodeEmbeddingError},
}

func defaultErrorHandlers() []errorHandler {
	handlers := []errorHandler{payloadTooLargeHandler}
	for _, m := range sentinelMappings {
		handlers = append(handlers, sentinelHandler(m))
	}
	return handlers
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(m sentinelMapping) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, m.sentinel) {
			return false
		}
		writeError(w, m.status, m.code, messageFor(m, err))
		return true
	}
}

func payloadTooLargeHandler(w http.ResponseWriter, err error) bool {
	var mbe *http.MaxBytesError
	if !errors.As(err, &mbe) {
		return false
	}
	writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "request body too large")
	return true
}

// classify maps an error to its code and status without writing a response.
func classify(err error) (ErrorCode, int) {
	for _, m := range sentinelMappings {
		if errors.Is(err, m.sentinel) {
			return m.code, m.status
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeCanceled, http.StatusServiceUnavailable
	}
	return ErrorCodeInternalError, http.StatusInternalServerError
}

func messageFor(m sentinelMapping, err error) string {
	if m.status >= http.StatusInternalServerError {
		return m.sentinel.Error()
	}
	return err.Error()
}

// itemMessage renders a bulk item failure without the collection/index prefix.
func itemMessage(err error) string {
	var ie *domain.ItemError
	if errors.As(err, &ie) {
		err = ie.Err
	}
	for _, m := range sentinelMappings {
		if errors.Is(err, m.sentinel) {
			return messageFor(m, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err.Error()
	}
	return "internal error"
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
