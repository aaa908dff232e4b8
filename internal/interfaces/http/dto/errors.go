package dto

import "net/http"

// API error codes, sent as ErrorInfo.Code
const (
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock   = "ERR_INSUFFICIENT_STOCK"
	ErrCodeStoreUnavailable    = "ERR_STORE_UNAVAILABLE"
	ErrCodeConstraintViolation = "ERR_CONSTRAINT_VIOLATION"

	ErrCodeDeviceUnreachable = "ERR_DEVICE_UNREACHABLE"
	ErrCodeStreamInterrupted = "ERR_STREAM_INTERRUPTED"
	ErrCodeDecoderFault      = "ERR_DECODER_FAULT"
	ErrCodeScanCancelled     = "ERR_SCAN_CANCELLED"
	ErrCodeEndpointBusy      = "ERR_ENDPOINT_BUSY"
	ErrCodeInvalidEndpoint   = "ERR_INVALID_ENDPOINT"
	ErrCodeScanFailed        = "ERR_SCAN_FAILED"

	ErrCodePreviewUnavailable = "ERR_PREVIEW_UNAVAILABLE"
)

// apiCode is one row of the error table: the API code, its HTTP status
// and the domain codes that map onto it
type apiCode struct {
	code   string
	status int
	domain []string
}

var apiCodes = []apiCode{
	{ErrCodeInternal, http.StatusInternalServerError, []string{"INTERNAL_ERROR"}},

	{ErrCodeValidation, http.StatusBadRequest, []string{"VALIDATION_ERROR", "INVALID_BARCODE", "INVALID_NAME", "INVALID_STOCK", "INVALID_PRICE"}},
	{ErrCodeValidationRange, http.StatusBadRequest, nil},
	{ErrCodeBadRequest, http.StatusBadRequest, []string{"BAD_REQUEST"}},
	{ErrCodeInvalidInput, http.StatusBadRequest, []string{"INVALID_INPUT"}},
	{ErrCodeInvalidJSON, http.StatusBadRequest, nil},
	{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge, nil},
	{ErrCodeRateLimited, http.StatusTooManyRequests, nil},

	// Inventory
	{ErrCodeNotFound, http.StatusNotFound, []string{"NOT_FOUND"}},
	{ErrCodeAlreadyExists, http.StatusConflict, []string{"ALREADY_EXISTS"}},
	{ErrCodeInvalidState, http.StatusUnprocessableEntity, []string{"INVALID_STATE"}},
	{ErrCodeInsufficientStock, http.StatusUnprocessableEntity, []string{"INSUFFICIENT_STOCK"}},
	{ErrCodeStoreUnavailable, http.StatusServiceUnavailable, []string{"STORE_UNAVAILABLE"}},
	{ErrCodeConstraintViolation, http.StatusConflict, []string{"CONSTRAINT_VIOLATION"}},

	// Acquisition. A dead camera is the station's upstream being down (503);
	// a camera that answers with garbage is a bad gateway.
	{ErrCodeDeviceUnreachable, http.StatusServiceUnavailable, []string{"DEVICE_UNREACHABLE"}},
	{ErrCodeStreamInterrupted, http.StatusBadGateway, []string{"STREAM_INTERRUPTED"}},
	{ErrCodeDecoderFault, http.StatusBadGateway, []string{"DECODER_FAULT"}},
	{ErrCodeScanCancelled, http.StatusConflict, []string{"SCAN_CANCELLED"}},
	{ErrCodeEndpointBusy, http.StatusConflict, []string{"ENDPOINT_BUSY"}},
	{ErrCodeInvalidEndpoint, http.StatusBadRequest, []string{"INVALID_ENDPOINT"}},
	{ErrCodeScanFailed, http.StatusInternalServerError, []string{"SCAN_FAILED"}},
	{ErrCodePreviewUnavailable, http.StatusServiceUnavailable, nil},
}

var (
	statusOf   = make(map[string]int, len(apiCodes))
	fromDomain = make(map[string]string)
)

func init() {
	for _, c := range apiCodes {
		statusOf[c.code] = c.status
		for _, d := range c.domain {
			fromDomain[d] = c.code
		}
	}
}

// GetHTTPStatus returns the status for an API or domain code; unknown codes are 500
func GetHTTPStatus(code string) int {
	if status, ok := statusOf[NormalizeErrorCode(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NormalizeErrorCode maps a domain code such as "NOT_FOUND" to its API code.
// API codes and unknown codes are returned unchanged.
func NormalizeErrorCode(code string) string {
	if api, ok := fromDomain[code]; ok {
		return api
	}
	return code
}
