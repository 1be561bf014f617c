package api

import (
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rxtech-lab/crowdfund-mcp/internal/api/middleware"
	"github.com/rxtech-lab/crowdfund-mcp/internal/services"
	"github.com/rxtech-lab/crowdfund-mcp/internal/utils"
)

// APIServer exposes the administrative surface of the reconciliation engine:
// lifecycle transitions, interactive repair, drift scans and batch runs.
type APIServer struct {
	app            *fiber.App
	submissions    services.SubmissionService
	reconciliation services.ReconciliationService
	lifecycle      services.LifecycleService
	diagnostics    services.DiagnosticsService
	audit          services.AuditService
	port           int
}

// NewAPIServer builds the Fiber app and registers routes. authenticator may
// be nil, which disables bearer auth (local development).
func NewAPIServer(
	submissions services.SubmissionService,
	reconciliation services.ReconciliationService,
	lifecycle services.LifecycleService,
	diagnostics services.DiagnosticsService,
	audit services.AuditService,
	authenticator *utils.JwtAuthenticator,
) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Add middleware
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	server := &APIServer{
		app:            app,
		submissions:    submissions,
		reconciliation: reconciliation,
		lifecycle:      lifecycle,
		diagnostics:    diagnostics,
		audit:          audit,
	}
	server.setupRoutes(authenticator)
	return server
}

func (s *APIServer) setupRoutes(authenticator *utils.JwtAuthenticator) {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	admin := s.app.Group("/api/admin", middleware.AuthMiddleware(middleware.AuthConfig{
		JWTAuthenticator: authenticator,
	}))

	admin.Get("/submissions", s.handleListSubmissions)
	admin.Get("/submissions/:id/listing-check", s.handleListingCheck)
	admin.Get("/submissions/:id/audit", s.handleAuditTrail)
	admin.Post("/submissions/:id/lifecycle", s.handleLifecycle)
	admin.Post("/submissions/:id/repair", s.handleRepair)
	admin.Get("/consistency/drift", s.handleDriftScan)
	admin.Post("/reconciliation/run", s.handleRunReconciliation)
}

// App exposes the Fiber app for tests.
func (s *APIServer) App() *fiber.App {
	return s.app
}

// Start listens on the given port (0 selects an ephemeral one) and serves in
// the background. Returns the bound port.
func (s *APIServer) Start(port int) (int, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	s.port = listener.Addr().(*net.TCPAddr).Port
	go func() {
		_ = s.app.Listener(listener)
	}()

	return s.port, nil
}

// Shutdown gracefully shuts down the server
func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}
