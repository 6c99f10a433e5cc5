package errutil

// CoreStatus is the transport-agnostic error code carried by every error that
// leaves a service boundary.
type CoreStatus string

const (
	StatusBadRequest          CoreStatus = "BAD_REQUEST"
	StatusValidationFailed    CoreStatus = "VALIDATION_FAILED"
	StatusUnauthorized        CoreStatus = "UNAUTHORIZED"
	StatusForbidden           CoreStatus = "FORBIDDEN"
	StatusNotFound            CoreStatus = "NOT_FOUND"
	StatusConflict            CoreStatus = "CONFLICT"
	StatusUnprocessableEntity CoreStatus = "UNPROCESSABLE_ENTITY"
	StatusTooManyRequests     CoreStatus = "TOO_MANY_REQUESTS"
	StatusTimeout             CoreStatus = "TIMEOUT"
	StatusInternal            CoreStatus = "INTERNAL"
	StatusNotImplemented      CoreStatus = "NOT_IMPLEMENTED"
	StatusUnavailable         CoreStatus = "UNAVAILABLE"
	StatusUnknown             CoreStatus = "UNKNOWN"
)

// Entitlement graph codes. These are the only codes the ledgers emit for
// domain rule violations; everything else is normalised to one of the
// generic codes above.
const (
	StatusCrossTenantMismatch CoreStatus = "CROSS_TENANT_MISMATCH"
	StatusAlreadyAssociated   CoreStatus = "ALREADY_ASSOCIATED"
	StatusNotAssociated       CoreStatus = "NOT_ASSOCIATED"
	StatusCapacityExceeded    CoreStatus = "CAPACITY_EXCEEDED"
	StatusModuleNotEntitled   CoreStatus = "MODULE_NOT_ENTITLED"
	StatusUserNotLicensed     CoreStatus = "USER_NOT_LICENSED"
	StatusPartialFailure      CoreStatus = "PARTIAL_FAILURE"
)
