package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/mtgprep/mtgprep/internal/apiclient"
	"github.com/mtgprep/mtgprep/internal/brief"
	"github.com/mtgprep/mtgprep/internal/config"
	"github.com/mtgprep/mtgprep/internal/llm"
	"github.com/mtgprep/mtgprep/internal/reasoning"
)

// Error types reported in the response body.
const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeConfiguration  = "configuration_error"
	errTypeUpstream       = "upstream_error"
	errTypeModel          = "model_error"
	errTypeTimeout        = "timeout_error"
	errTypeInternal       = "internal_error"
)

// classify maps a pipeline error to an HTTP status and error type.
func classify(err error) (int, string) {
	var unsupported *llm.UnsupportedError
	switch {
	case errors.Is(err, brief.ErrInvalidRequest):
		return http.StatusBadRequest, errTypeInvalidRequest
	case errors.Is(err, config.ErrNotConfigured):
		return http.StatusBadRequest, errTypeConfiguration
	case errors.Is(err, reasoning.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errTypeTimeout
	case apiclient.IsRemote(err):
		return http.StatusBadGateway, errTypeUpstream
	case errors.Is(err, reasoning.ErrMaxToolTurns),
		errors.Is(err, reasoning.ErrEmptyOutput),
		errors.As(err, &unsupported):
		return http.StatusBadGateway, errTypeModel
	default:
		return http.StatusInternalServerError, errTypeInternal
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errType,
			"code":    code,
		},
	}, s.logger)
}

// fail logs err and writes it with its classified status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	code, errType := classify(err)
	log := s.logger.Warn
	if code >= http.StatusInternalServerError {
		log = s.logger.Error
	}
	log(op+" failed", "path", r.URL.Path, "status", code, "error", err)
	s.errorResponse(w, code, errType, err.Error())
}
