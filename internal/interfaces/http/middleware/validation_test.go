package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator_BarcodeTag(t *testing.T) {
	SetupValidator()
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type label struct {
		Barcode string `json:"barcode" binding:"barcode"`
	}
	for _, ok := range []string{"7791234567890", "https://x.test/a", "CODE 39 $/+%"} {
		assert.NoError(t, v.Struct(label{Barcode: ok}), ok)
	}
	for _, bad := range []string{"779\n123", "", strings.Repeat("9", 513)} {
		assert.Error(t, v.Struct(label{Barcode: bad}), bad)
	}
}

// stockForm mirrors the product form a scan prefills
type stockForm struct {
	Barcode string `json:"barcode" binding:"required,barcode"`
	Name    string `json:"name" binding:"required,max=8"`
	Stock   *int64 `json:"stock" binding:"required,gte=0"`
	Unit    string `json:"unit" binding:"omitempty,oneof=pcs box"`
}

func postForm(t *testing.T, body string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	SetupValidator()

	router := gin.New()
	router.Use(RequestID())
	router.POST("/api/v1/products", func(c *gin.Context) {
		var form stockForm
		if err := c.ShouldBindJSON(&form); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-form")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp dto.Response
	if w.Code != http.StatusCreated {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHandleValidationError_FieldDetails(t *testing.T) {
	w, resp := postForm(t, `{"barcode":"77\t91","name":"Stabilo Point 88","stock":-1,"unit":"crate"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-form", resp.Error.RequestID)

	got := map[string]string{}
	for _, d := range resp.Error.Details {
		got[d.Field] = d.Message
	}
	assert.Equal(t, map[string]string{
		"barcode": "Must be printable text of at most 512 characters",
		"name":    "Must be at most 8 characters",
		"stock":   "Must be greater than or equal to 0",
		"unit":    "Must be one of: pcs box",
	}, got)
}

func TestHandleValidationError_ValidAndMalformed(t *testing.T) {
	w, _ := postForm(t, `{"barcode":"PART/42 A","name":"Bolt","stock":0}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, resp := postForm(t, `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, resp.Error.Details)

	w, resp = postForm(t, `{"name":"Bolt","stock":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, dto.ValidationDetail{Field: "barcode", Message: "This field is required"}, resp.Error.Details[0])
}

func TestFieldMessage_Bounds(t *testing.T) {
	type limits struct {
		Count int    `validate:"min=3"`
		Code  string `validate:"len=4"`
		Ratio int    `validate:"lt=1"`
	}
	err := validator.New().Struct(limits{Count: 1, Code: "abc", Ratio: 5})
	require.Error(t, err)

	got := map[string]string{}
	for _, fe := range err.(validator.ValidationErrors) {
		got[fe.Field()] = fieldMessage(fe)
	}
	assert.Equal(t, "Must be at least 3", got["Count"])
	assert.Equal(t, "Must be exactly 4 characters", got["Code"])
	assert.Equal(t, "Must be less than 1", got["Ratio"])
}
