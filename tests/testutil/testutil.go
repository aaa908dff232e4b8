// Package testutil holds helpers shared by package tests and the integration suite.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/scanstock/backend/internal/infrastructure/config"
	"github.com/scanstock/backend/internal/infrastructure/persistence"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// NewSQLiteDatabase opens a migrated in-memory inventory store that is closed on cleanup.
func NewSQLiteDatabase(t *testing.T) *persistence.Database {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   ":memory:",
	}, persistence.WithLogger(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err, "open sqlite store")
	require.NoError(t, db.AutoMigrate(), "migrate sqlite store")

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// ServeJSON sends method path through h, encoding body as JSON when it is not nil.
func ServeJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// DecodeEnvelope parses the API envelope written to w.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "envelope: %s", w.Body.String())
	return resp
}

// DataAs re-decodes the envelope's data into T.
func DataAs[T any](t *testing.T, resp dto.Response) T {
	t.Helper()

	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out), "data: %s", raw)
	return out
}
