package errutil

import (
	"errors"
	"net/http"
)

// HTTPCode converts the CoreStatus to the HTTP status used by the admin API.
func (s CoreStatus) HTTPCode() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusUnauthorized:
		return http.StatusUnauthorized
	case StatusForbidden, StatusCrossTenantMismatch:
		return http.StatusForbidden
	case StatusNotFound, StatusNotAssociated:
		return http.StatusNotFound
	case StatusConflict, StatusAlreadyAssociated:
		return http.StatusConflict
	case StatusUnprocessableEntity, StatusModuleNotEntitled, StatusUserNotLicensed, StatusCapacityExceeded:
		return http.StatusUnprocessableEntity
	case StatusTooManyRequests:
		return http.StatusTooManyRequests
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusUnavailable:
		return http.StatusServiceUnavailable
	case StatusPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// ToHTTP returns the status code and response body for an error. Errors that
// do not carry a CoreStatus are reported as opaque internal errors.
func ToHTTP(err error) (int, interface{}) {
	var base BaseError
	if errors.As(err, &base) {
		return base.Code.HTTPCode(), base.JSON()
	}

	return http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    StatusInternal,
			"message": "internal error",
		},
	}
}
