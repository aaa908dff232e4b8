package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	catalogapp "github.com/scanstock/backend/internal/application/catalog"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
)

// ProductHandler serves the inventory under /products. Barcodes travel as a
// single escaped path segment.
type ProductHandler struct {
	BaseHandler
	products *catalogapp.ProductService
}

func NewProductHandler(products *catalogapp.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// DeleteAllResponse reports how many products were removed
type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

// List serves GET /products?search=&in_stock=&max_stock=&page=&page_size=&order_by=&order_dir=
func (h *ProductHandler) List(c *gin.Context) {
	var filter catalogapp.ProductListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.products.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get serves GET /products/:barcode
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Exists serves HEAD /products/:barcode: 200 when stored, 404 when not, and
// the usual error status otherwise. There is never a body.
func (h *ProductHandler) Exists(c *gin.Context) {
	found, err := h.products.Exists(c.Request.Context(), c.Param("barcode"))
	switch {
	case err != nil:
		code, _ := classify(err)
		c.Status(dto.GetHTTPStatus(code))
	case found:
		c.Status(http.StatusOK)
	default:
		c.Status(http.StatusNotFound)
	}
}

// Create serves POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req catalogapp.RegisterProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	product, err := h.products.Register(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// Update serves PUT /products/:barcode
func (h *ProductHandler) Update(c *gin.Context) {
	var req catalogapp.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	product, err := h.products.Update(c.Request.Context(), c.Param("barcode"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// AdjustStock serves PATCH /products/:barcode/stock with a signed delta
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	var req catalogapp.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	product, err := h.products.AdjustStock(c.Request.Context(), c.Param("barcode"), req.Delta)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// Delete serves DELETE /products/:barcode
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("barcode")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// DeleteAll serves DELETE /products?confirm=true and empties the inventory
func (h *ProductHandler) DeleteAll(c *gin.Context) {
	if c.Query("confirm") != "true" {
		h.Error(c, dto.ErrCodeInvalidInput, "Deleting every product requires confirm=true")
		return
	}
	n, err := h.products.DeleteAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, DeleteAllResponse{Deleted: n})
}
