package server

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/dmstat/dmstat/internal/serverapi"
	"github.com/dmstat/dmstat/target"
)

type apiError struct {
	httpErrorCode int
	apiErrorCode  serverapi.APIErrorCode
	message       string
}

func requestError(apiErrorCode serverapi.APIErrorCode, message string) *apiError {
	return &apiError{http.StatusBadRequest, apiErrorCode, message}
}

func unableToDecodeRequest(err error) *apiError {
	return requestError(serverapi.ErrorMalformedRequest, "unable to decode request: "+err.Error())
}

func notFoundError(message string) *apiError {
	return &apiError{http.StatusNotFound, serverapi.ErrorNotFound, message}
}

func alreadyExistsError(message string) *apiError {
	return &apiError{http.StatusConflict, serverapi.ErrorAlreadyExists, message}
}

func internalServerError(err error) *apiError {
	return &apiError{http.StatusInternalServerError, serverapi.ErrorInternal, fmt.Sprintf("internal server error: %v", err)}
}

// deviceError translates registry errors into API errors.
func deviceError(err error) *apiError {
	var aerr *target.AllocationError

	switch {
	case errors.Is(err, target.ErrDeviceNotFound):
		return notFoundError(err.Error())
	case errors.Is(err, target.ErrDeviceExists):
		return alreadyExistsError(err.Error())
	case errors.Is(err, target.ErrInvalidName), errors.Is(err, target.ErrUnknownType):
		return requestError(serverapi.ErrorInvalidArgument, err.Error())
	case errors.As(err, &aerr):
		return &apiError{http.StatusInsufficientStorage, serverapi.ErrorAllocation, err.Error()}
	default:
		return internalServerError(err)
	}
}
