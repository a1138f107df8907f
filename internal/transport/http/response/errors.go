package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/baechuer/cityevents/services/discovery-service/internal/domain"
	"github.com/baechuer/cityevents/services/discovery-service/internal/logger"
	appCtx "github.com/baechuer/cityevents/services/discovery-service/internal/pkg/context"
)

// Err maps err to the unified error body. A cancelled request writes nothing:
// the client is gone.
func Err(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	requestID := appCtx.GetRequestID(ctx)

	if err == nil {
		Fail(w, http.StatusInternalServerError, "internal_error", "unknown error", nil, requestID)
		return
	}

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Ctx(ctx).Debug().Err(err).Msg("request cancelled by client")
		return
	}

	var ae *domain.AppError
	if errors.As(err, &ae) {
		status := StatusFromCode(ae.Code)
		if status >= http.StatusInternalServerError {
			logger.Ctx(ctx).Warn().Err(err).Str("code", string(ae.Code)).Msg("request failed")
		}
		Fail(w, status, string(ae.Code), ae.Message, ae.Meta, requestID)
		return
	}

	if errors.Is(err, context.DeadlineExceeded) {
		logger.Ctx(ctx).Warn().Err(err).Msg("request timed out")
		Fail(w, http.StatusGatewayTimeout, "timeout", "upstream timed out", nil, requestID)
		return
	}

	// keep details in logs only
	logger.Ctx(ctx).Error().Err(err).Msg("unhandled error")
	Fail(w, http.StatusInternalServerError, "internal_error", "internal error", nil, requestID)
}

func StatusFromCode(code domain.ErrCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConfig:
		return http.StatusServiceUnavailable
	case domain.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
