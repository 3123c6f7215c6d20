package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/api/http/handlers"
	"github.com/spec-kit/learning-api/internal/cache"
	"github.com/spec-kit/learning-api/internal/domain"
	"github.com/spec-kit/learning-api/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Pipeline      *Pipeline
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	CSRF          *handlers.CSRFHandler
	Content       *handlers.ContentHandler
	Bookmarks     *handlers.BookmarksHandler
	Subscriptions *handlers.SubscriptionHandler
	Payments      *handlers.PaymentsHandler
	Admin         *handlers.AdminHandler
}

type binding struct {
	route   Route
	handler fiber.Handler
}

// RegisterRoutes wires HTTP routes. A declaration the pipeline cannot honor,
// such as an unknown tier, fails here before the server starts.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) error {
	general := []string{ratelimit.TierGeneral}
	staff := domain.Roles(domain.RoleAdmin, domain.RoleStaff)
	admin := domain.Roles(domain.RoleAdmin)

	bindings := []binding{
		{Route{Method: fiber.MethodGet, Path: "/api/health", Public: true}, cfg.Health.Live},
		{Route{Method: fiber.MethodGet, Path: "/api/health/ready", Public: true}, cfg.Health.Ready},

		{Route{Method: fiber.MethodGet, Path: "/api/csrf-token", Public: true, Tiers: general}, cfg.CSRF.Issue},
		{Route{Method: fiber.MethodPost, Path: "/api/auth/login", Public: true, Tiers: []string{ratelimit.TierGeneral, ratelimit.TierAuth}}, cfg.Auth.Login},

		{Route{Method: fiber.MethodGet, Path: "/api/books", Public: true, Tiers: general, CacheTTL: cache.Medium}, cfg.Content.ListBooks},
		{Route{
			Method:              fiber.MethodGet,
			Path:                "/api/books/:id/chapters",
			RequireSubscription: true,
			Tiers:               general,
			CacheTTL:            cache.Long,
			CachePerPrincipal:   true,
		}, cfg.Content.ListChapters},

		{Route{Method: fiber.MethodGet, Path: "/api/bookmarks", Tiers: general, CacheTTL: cache.Short, CachePerPrincipal: true}, cfg.Bookmarks.List},
		{Route{
			Method:      fiber.MethodPost,
			Path:        "/api/bookmarks",
			Tiers:       []string{ratelimit.TierGeneral, ratelimit.TierMutation},
			Invalidates: []string{"/api/bookmarks"},
		}, cfg.Bookmarks.Create},

		{Route{Method: fiber.MethodGet, Path: "/api/subscriptions/me", RequireSubscription: true, Tiers: general}, cfg.Subscriptions.Me},
		{Route{Method: fiber.MethodPost, Path: "/api/payments/webhook", Public: true, Tiers: []string{ratelimit.TierGeneral, ratelimit.TierPayment}}, cfg.Payments.Webhook},

		{Route{Method: fiber.MethodGet, Path: "/api/admin/cache/stats", Roles: staff, Tiers: []string{ratelimit.TierElevated}}, cfg.Admin.CacheStats},
		{Route{Method: fiber.MethodPost, Path: "/api/admin/cache/flush", Roles: admin, Tiers: []string{ratelimit.TierElevated}}, cfg.Admin.FlushCache},
		{Route{Method: fiber.MethodPost, Path: "/api/admin/cache/invalidate", Roles: admin, Tiers: []string{ratelimit.TierElevated}}, cfg.Admin.InvalidateCache},
	}

	for _, b := range bindings {
		if err := cfg.Pipeline.Register(app, b.route, b.handler); err != nil {
			return err
		}
	}
	return nil
}
