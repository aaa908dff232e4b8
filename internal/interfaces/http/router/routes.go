package router

import (
	"github.com/gin-gonic/gin"
	"github.com/scanstock/backend/internal/interfaces/http/handler"
)

// Handlers bundles the handlers served under the API prefix
type Handlers struct {
	Product *handler.ProductHandler
	Scanner *handler.ScannerHandler
	// Preview is nil when live preview is disabled
	Preview *handler.PreviewHandler
	System  *handler.SystemHandler
}

// ProductRoutes is the inventory API
func ProductRoutes(h *handler.ProductHandler) *DomainGroup {
	g := NewDomainGroup("inventory", "/products")
	g.GET("", h.List).Describe("list products")
	g.POST("", h.Create).Describe("register a product")
	g.DELETE("", h.DeleteAll).Describe("delete every product (confirm=true)")
	g.GET("/:barcode", h.Get).Describe("get a product")
	g.HEAD("/:barcode", h.Exists).Describe("check a barcode is stored")
	g.PUT("/:barcode", h.Update).Describe("update a product")
	g.PATCH("/:barcode/stock", h.AdjustStock).Describe("adjust stock by a delta")
	g.DELETE("/:barcode", h.Delete).Describe("delete a product")
	return g
}

// ScannerRoutes is the scan shell API. scanMiddleware runs in front of the
// acquisition route only.
func ScannerRoutes(h *handler.ScannerHandler, preview *handler.PreviewHandler, scanMiddleware ...gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("scanner", "/scanner")

	scan := append(append([]gin.HandlerFunc{}, scanMiddleware...), h.Scan)
	g.POST("/scan", scan...).Describe("acquire a barcode")
	g.POST("/submit", h.Submit).Describe("save the form for the scanned barcode")
	g.POST("/reset", h.Reset).Describe("discard the scanned barcode")
	g.POST("/cancel", h.Cancel).Describe("cancel a running acquisition")
	g.GET("/history", h.History).Describe("recent acquisitions")

	if preview != nil {
		g.GET("/preview", preview.Stream).Describe("live preview websocket")
		g.GET("/preview/stats", preview.Stats).Describe("preview hub counters")
	}
	return g
}

// SystemRoutes is the versioned system info API
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.GetSystemInfo).Describe("name, version and uptime")
	g.GET("/ping", h.Ping).Describe("ping")
	return g
}

// RegisterAPI registers every API group on r and returns them in registration order
func RegisterAPI(r *Router, hs Handlers, scanMiddleware ...gin.HandlerFunc) []*DomainGroup {
	groups := []*DomainGroup{
		ProductRoutes(hs.Product),
		ScannerRoutes(hs.Scanner, hs.Preview, scanMiddleware...),
		SystemRoutes(hs.System),
	}
	for _, g := range groups {
		r.Register(g)
	}
	return groups
}
