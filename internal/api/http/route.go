package http

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/learning-api/internal/domain"
)

// Route declares what the pipeline enforces in front of a handler.
type Route struct {
	Method string
	Path   string
	// Public routes skip authentication, authorization and entitlement.
	Public bool
	// Roles is the exact set of accepted roles; empty accepts any principal.
	Roles domain.RoleSet
	// RequireSubscription gates the route on an active subscription.
	RequireSubscription bool
	// Tiers are rate-limit tier names, applied in order.
	Tiers []string
	// CacheTTL enables response caching for GET routes.
	CacheTTL time.Duration
	// CachePerPrincipal keys cached responses by caller.
	CachePerPrincipal bool
	// Invalidates lists cache key prefixes dropped after a successful mutation.
	Invalidates []string
}

func (r Route) String() string {
	return r.Method + " " + r.Path
}

func (r Route) validate() error {
	var errs []error
	switch r.Method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete, fiber.MethodOptions:
	default:
		errs = append(errs, fmt.Errorf("unsupported method %q", r.Method))
	}
	if !strings.HasPrefix(r.Path, "/") {
		errs = append(errs, errors.New("path must start with /"))
	}
	if r.Public && (len(r.Roles) > 0 || r.RequireSubscription) {
		errs = append(errs, errors.New("public route cannot require roles or a subscription"))
	}
	if r.Public && r.CachePerPrincipal {
		errs = append(errs, errors.New("public route has no principal to scope its cache"))
	}
	if r.CacheTTL < 0 {
		errs = append(errs, errors.New("negative cache ttl"))
	}
	if r.CacheTTL > 0 && r.Method != fiber.MethodGet {
		errs = append(errs, errors.New("only GET responses are cached"))
	}
	if len(r.Invalidates) > 0 && isSafeMethod(r.Method) {
		errs = append(errs, errors.New("safe methods cannot invalidate the cache"))
	}
	for role := range r.Roles {
		if _, err := domain.ParseRole(string(role)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("route %s: %w", r, err)
	}
	return nil
}

func isSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}
