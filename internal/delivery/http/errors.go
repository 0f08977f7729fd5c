package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/tablequeue/internal/service"
	"github.com/vogiaan1904/tablequeue/internal/validate"
	pkgErrors "github.com/vogiaan1904/tablequeue/pkg/errors"
)

var (
	errInvalidBody    = pkgErrors.NewHTTPError(http.StatusBadRequest, 40000, "Invalid request body")
	errValidation     = pkgErrors.NewHTTPError(http.StatusBadRequest, 40001, "Please correct the highlighted fields")
	errJoinInProgress = pkgErrors.NewHTTPError(http.StatusConflict, 40901, "A join request is already in progress")
	errAlreadyInQueue = pkgErrors.NewHTTPError(http.StatusConflict, 40902, "You already hold a token for this service")
	errUnavailable    = pkgErrors.NewHTTPError(http.StatusServiceUnavailable, 50300, "Queue is shutting down")
)

const codeJoinFailed = 50200

func (h *HTTPHandler) mapError(err error) error {
	var verr *validate.ValidationError
	var jerr *service.JoinError
	switch {
	case errors.As(err, &verr):
		return errValidation.WithFields(verr.Fields)
	case errors.Is(err, service.ErrJoinInProgress):
		return errJoinInProgress
	case errors.Is(err, service.ErrAlreadyInQueue):
		return errAlreadyInQueue
	case errors.Is(err, service.ErrClientStopped):
		return errUnavailable
	case errors.As(err, &jerr):
		return pkgErrors.NewHTTPError(http.StatusBadGateway, codeJoinFailed, jerr.Message)
	}
	return err
}
