// Package v1 wires the portal handlers onto the router.
package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"crossing-closures/closure-portal/internal/approvals"
	"crossing-closures/closure-portal/internal/auth"
	"crossing-closures/closure-portal/internal/closures"
	"crossing-closures/closure-portal/internal/crossings"
	"crossing-closures/closure-portal/internal/dashboard"
	"crossing-closures/closure-portal/internal/documents"
	"crossing-closures/closure-portal/internal/gateway"
	"crossing-closures/closure-portal/internal/mapexport"
	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/reports/export"
)

// Deps are the shared pieces every handler is built from.
type Deps struct {
	API           gateway.API
	Sessions      auth.Sessions
	Guard         *middleware.Guard
	LoginLimiter  *middleware.RateLimiter
	Notifier      closures.Notifier
	MapExporter   *mapexport.Exporter
	MaxUploadSize int64
	Logger        *zap.Logger
}

// PortalAPI holds the portal handlers
type PortalAPI struct {
	Auth      *auth.Handler
	Dashboard *dashboard.Handler
	Closures  *closures.Handler
	Documents *documents.Handler
	Crossings *crossings.Handler
	Approvals *approvals.Handler
	Exports   *export.Handler
	MapExport *mapexport.Handler

	guard   *middleware.Guard
	limiter *middleware.RateLimiter
}

// SetupPortalAPI builds every service and handler.
func SetupPortalAPI(deps Deps) *PortalAPI {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	crossingService := crossings.NewService(deps.API, logger.Named("crossings"))
	closureService := closures.NewService(deps.API, deps.API, deps.Notifier, logger.Named("closures"))
	documentService := documents.NewService(deps.API, deps.MaxUploadSize, logger.Named("documents"))

	api := &PortalAPI{
		Auth:      auth.NewHandler(deps.Sessions, deps.Guard, logger.Named("auth")),
		Dashboard: dashboard.NewHandler(dashboard.NewAggregator(deps.API, logger.Named("dashboard"), dashboard.AggregatorConfig{})),
		Closures:  closures.NewHandler(closureService),
		Documents: documents.NewHandler(documentService),
		Crossings: crossings.NewHandler(crossingService),
		Approvals: approvals.NewHandler(approvals.NewService(deps.API, logger.Named("approvals"))),
		Exports:   export.NewHandler(export.NewService(deps.API, logger.Named("export"))),
		MapExport: mapexport.NewHandler(deps.MapExporter),
		guard:     deps.Guard,
		limiter:   deps.LoginLimiter,
	}
	return api
}

// RegisterRoutes mounts the public auth routes and the guarded /api group.
func RegisterRoutes(r *gin.Engine, api *PortalAPI) *gin.RouterGroup {
	protected := r.Group("/api", api.guard.Require())

	auth.RegisterRoutes(r, protected, api.Auth, api.limiter)
	api.Dashboard.RegisterRoutes(protected)
	api.Closures.RegisterRoutes(protected)
	api.Documents.RegisterRoutes(protected)
	api.Crossings.RegisterRoutes(protected)
	api.Approvals.RegisterRoutes(protected)
	api.Exports.RegisterRoutes(protected)
	api.MapExport.RegisterRoutes(protected)
	return protected
}
