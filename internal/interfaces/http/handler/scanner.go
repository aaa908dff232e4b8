package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/scanstock/backend/internal/application/catalog"
	scanapp "github.com/scanstock/backend/internal/application/scanning"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
)

// ScannerHandler exposes the scan, fill form, submit loop
type ScannerHandler struct {
	BaseHandler
	scanService *scanapp.ScanService
}

// NewScannerHandler creates a new ScannerHandler
func NewScannerHandler(scanService *scanapp.ScanService) *ScannerHandler {
	return &ScannerHandler{
		scanService: scanService,
	}
}

// ScanRequest triggers an acquisition. Endpoint falls back to the configured camera.
type ScanRequest struct {
	Endpoint string          `json:"endpoint" binding:"max=512"`
	Session  scanapp.Session `json:"session"`
}

// ScanResponse carries the updated session and the scan outcome
type ScanResponse struct {
	Session scanapp.Session      `json:"session"`
	Outcome *scanapp.ScanOutcome `json:"outcome"`
}

// SubmitRequest is the filled form plus the session holding the scanned barcode
type SubmitRequest struct {
	Session scanapp.Session `json:"session"`
	scanapp.SubmitRequest
}

// SubmitResponse carries the cleared session and the saved product
type SubmitResponse struct {
	Session scanapp.Session             `json:"session"`
	Mode    scanapp.Mode                `json:"mode"`
	Product *catalogapp.ProductResponse `json:"product"`
}

// CancelRequest names the endpoint whose acquisition should stop
type CancelRequest struct {
	Endpoint string `json:"endpoint" binding:"max=512"`
}

// CancelResponse reports whether an acquisition was running
type CancelResponse struct {
	Endpoint  string `json:"endpoint"`
	Cancelled bool   `json:"cancelled"`
}

// bindOptionalJSON binds the body when there is one; an empty body leaves obj untouched
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Scan runs one acquisition, or reuses the barcode already held by the session
// POST /scanner/scan
func (h *ScannerHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.BindError(c, err)
		return
	}

	session, outcome, err := h.scanService.Scan(c.Request.Context(), req.Session, req.Endpoint)
	if err != nil {
		// An acquired barcode survives a failed inventory lookup
		if session.HasBarcode() {
			h.HandleErrorWithData(c, err, ScanResponse{Session: session})
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, ScanResponse{Session: session, Outcome: outcome})
}

// Submit saves the form for the scanned barcode
// POST /scanner/submit
func (h *ScannerHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	session, product, mode, err := h.scanService.Submit(c.Request.Context(), req.Session, req.SubmitRequest)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SubmitResponse{Session: session, Mode: mode, Product: product})
}

// Reset discards the scanned barcode
// POST /scanner/reset
func (h *ScannerHandler) Reset(c *gin.Context) {
	h.Success(c, ScanResponse{Session: h.scanService.Reset(scanapp.Session{})})
}

// Cancel stops the running acquisition on an endpoint
// POST /scanner/cancel
func (h *ScannerHandler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.BindError(c, err)
		return
	}

	endpoint := req.Endpoint
	if endpoint == "" {
		endpoint = h.scanService.DefaultEndpoint()
	}
	h.Success(c, CancelResponse{
		Endpoint:  endpoint,
		Cancelled: h.scanService.Cancel(endpoint),
	})
}

// History lists recent acquisitions, newest first
// GET /scanner/history?endpoint=&limit=
func (h *ScannerHandler) History(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			h.Error(c, dto.ErrCodeValidationRange, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.scanService.History(c.Request.Context(), c.Query("endpoint"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}
