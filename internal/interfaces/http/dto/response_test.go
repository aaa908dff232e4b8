package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuccessResponseWithMeta_Pages(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		pageSize int
		size     int
		pages    int
	}{
		{"empty shelf", 0, 20, 20, 0},
		{"exact pages", 40, 20, 20, 2},
		{"partial last page", 41, 20, 20, 3},
		{"default page size", 21, 0, 20, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]string{}, tt.total, 1, tt.pageSize)
			require.NotNil(t, resp.Meta)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.size, resp.Meta.PageSize)
			assert.Equal(t, tt.pages, resp.Meta.TotalPages)
		})
	}
}

func TestNewErrorResponse_ScanFailureEnvelope(t *testing.T) {
	resp := NewErrorResponseWithRequestID("ENDPOINT_BUSY", "endpoint http://cam/video is busy", "req-3")
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body, "data")
	errInfo := body["error"].(map[string]any)
	assert.Equal(t, ErrCodeEndpointBusy, errInfo["code"])
	assert.Equal(t, "req-3", errInfo["request_id"])
	assert.NotContains(t, errInfo, "details")

	assert.Empty(t, NewErrorResponse(ErrCodeInternal, "boom").Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Validation failed", "req-4", []ValidationDetail{
		{Field: "barcode", Message: "Must be printable text of at most 512 characters"},
	})
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "barcode", resp.Error.Details[0].Field)
}
