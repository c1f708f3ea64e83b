package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "hookbin/internal/api/context"
	"hookbin/internal/api/handlers"
	"hookbin/internal/api/middleware"
)

type Dependencies struct {
	AuthHandler     *handlers.AuthHandler
	EndpointHandler *handlers.EndpointHandler
	WebhookHandler  *handlers.WebhookHandler
	CaptureHandler  *handlers.CaptureHandler
	StreamHandler   *handlers.StreamHandler
	HealthHandler   *handlers.HealthHandler
	MetricsHandler  *handlers.MetricsHandler
	AuthMiddleware  *middleware.AuthMiddleware
	CaptureLimit    func(http.HandlerFunc) http.HandlerFunc
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	// Public capture front door: any method on the endpoint token.
	capture := deps.CaptureHandler.Handle
	if deps.CaptureLimit != nil {
		capture = deps.CaptureLimit(capture)
	}
	for _, method := range []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions,
	} {
		router.Handle(method, "/in/:token", wrap(capture))
	}

	// Authentication
	router.POST("/api/v1/auth/signup", wrap(deps.AuthHandler.Signup))
	router.POST("/api/v1/auth/login", wrap(deps.AuthHandler.Login))

	authMid := deps.AuthMiddleware

	// Endpoint management
	router.POST("/api/v1/endpoints",
		chain(deps.EndpointHandler.Create, authMid.Handle))
	router.GET("/api/v1/endpoints",
		chain(deps.EndpointHandler.List, authMid.Handle))
	router.POST("/api/v1/endpoints/:endpoint_id/users",
		chain(deps.EndpointHandler.AddUser, authMid.Handle))
	router.DELETE("/api/v1/endpoints/:endpoint_id/users/:user_id",
		chain(deps.EndpointHandler.RemoveUser, authMid.Handle))

	// Webhooks of an endpoint
	router.GET("/api/v1/endpoints/:endpoint_id/webhooks",
		chain(deps.WebhookHandler.List, authMid.Handle))
	router.DELETE("/api/v1/endpoints/:endpoint_id/webhooks",
		chain(deps.WebhookHandler.Delete, authMid.Handle))

	// Single webhook operations
	router.GET("/api/v1/webhooks/:webhook_id",
		chain(deps.WebhookHandler.Get, authMid.Handle))
	router.POST("/api/v1/webhooks/:webhook_id/read",
		chain(deps.WebhookHandler.MarkRead, authMid.Handle))
	router.GET("/api/v1/webhooks/:webhook_id/forwards",
		chain(deps.WebhookHandler.ListForwards, authMid.Handle))
	router.POST("/api/v1/webhooks/:webhook_id/forwards",
		chain(deps.WebhookHandler.AddForward, authMid.Handle))
	router.POST("/api/v1/webhooks/:webhook_id/relay",
		chain(deps.WebhookHandler.Relay, authMid.Handle))

	// Live event stream
	router.GET("/api/v1/endpoints/:endpoint_id/stream",
		chain(deps.StreamHandler.Handle, authMid.Handle))

	// Operational
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
