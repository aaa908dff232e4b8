package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts a set of routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

type RouterOption func(*Router)

// WithAPIVersion replaces the default "v1" prefix segment
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues a registrar for Setup
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

func (r *Router) BasePath() string {
	return "/api/" + r.apiVersion
}

// Setup mounts every registered group on the engine
func (r *Router) Setup() {
	// Barcodes may contain "/", sent as %2F in :barcode segments
	r.engine.UseRawPath = true
	r.engine.UnescapePathValues = true

	api := r.engine.Group(r.BasePath())
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// RouteInfo is one route as listed at startup
type RouteInfo struct {
	Method      string
	Path        string
	Description string
}

type route struct {
	RouteInfo
	handlers []gin.HandlerFunc
}

// DomainGroup is one API area (inventory, scanner, system) mounted under a prefix
type DomainGroup struct {
	name   string
	prefix string
	routes []route
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (dg *DomainGroup) Name() string { return dg.name }

// Handle adds a route; path is relative to the group prefix
func (dg *DomainGroup) Handle(method, relPath string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, route{RouteInfo: RouteInfo{Method: method, Path: relPath}, handlers: handlers})
	return dg
}

func (dg *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, p, h...)
}

func (dg *DomainGroup) HEAD(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodHead, p, h...)
}

func (dg *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, p, h...)
}

func (dg *DomainGroup) PUT(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, p, h...)
}

func (dg *DomainGroup) PATCH(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPatch, p, h...)
}

func (dg *DomainGroup) DELETE(p string, h ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, p, h...)
}

// Describe labels the last added route; it is a no-op on an empty group
func (dg *DomainGroup) Describe(description string) *DomainGroup {
	if n := len(dg.routes); n > 0 {
		dg.routes[n-1].Description = description
	}
	return dg
}

func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group(dg.prefix)
	for _, rt := range dg.routes {
		g.Handle(rt.Method, rt.Path, rt.handlers...)
	}
}

// Routes lists the group's routes with full paths under basePath
func (dg *DomainGroup) Routes(basePath string) []RouteInfo {
	out := make([]RouteInfo, len(dg.routes))
	for i, rt := range dg.routes {
		out[i] = rt.RouteInfo
		out[i].Path = path.Join(basePath, dg.prefix, rt.Path)
	}
	return out
}
