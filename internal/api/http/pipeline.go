package http

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/learning-api/internal/auth"
	"github.com/spec-kit/learning-api/internal/cache"
	"github.com/spec-kit/learning-api/internal/clock"
	"github.com/spec-kit/learning-api/internal/csrf"
	"github.com/spec-kit/learning-api/internal/domain"
	"github.com/spec-kit/learning-api/internal/events"
	"github.com/spec-kit/learning-api/internal/observability"
	"github.com/spec-kit/learning-api/internal/ratelimit"
	"github.com/spec-kit/learning-api/internal/subscription"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

// Stage names a pipeline step; rejections report the stage that produced them.
type Stage string

const (
	StageCSRF         Stage = "csrf"
	StageAuthenticate Stage = "authenticate"
	StageAuthorize    Stage = "authorize"
	StageEntitlement  Stage = "entitlement"
	StageRateLimit    Stage = "rate_limit"
)

// Rejection is the terminal outcome of a failed stage.
type Rejection struct {
	Stage Stage
	Err   *apperrors.DomainError
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s rejected: %s", r.Stage, r.Err.Code)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// PipelineDeps are the gates a Pipeline composes. Cache may be nil.
type PipelineDeps struct {
	Authenticator *auth.Authenticator
	Gate          *subscription.Gate
	CSRF          *csrf.Guard
	Limits        *ratelimit.Registry
	Cache         *cache.Cache
	Events        events.Sink
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Clock         clock.Clock
}

// Pipeline runs the request gates in a fixed order in front of handlers.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline builds a Pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Events == nil {
		deps.Events = events.NopSink{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	return &Pipeline{deps: deps}
}

// Cache exposes the response cache so handlers can invalidate directly.
func (p *Pipeline) Cache() *cache.Cache {
	return p.deps.Cache
}

type admission struct {
	limiter  *ratelimit.Limiter
	key      string
	decision ratelimit.Decision
}

// Handler validates route and returns a handler that runs
// CSRF -> authenticate -> authorize -> entitlement -> rate limit -> cache ->
// handler -> cache store / invalidate. Declaration errors surface here, at
// registration, never per request.
func (p *Pipeline) Handler(route Route, handler fiber.Handler) (fiber.Handler, error) {
	if err := route.validate(); err != nil {
		return nil, err
	}
	if !route.Public && p.deps.Authenticator == nil {
		return nil, fmt.Errorf("route %s: authenticator not configured", route)
	}
	if route.RequireSubscription && p.deps.Gate == nil {
		return nil, fmt.Errorf("route %s: subscription gate not configured", route)
	}
	if p.deps.CSRF == nil && !isSafeMethod(route.Method) {
		return nil, fmt.Errorf("route %s: csrf guard not configured", route)
	}
	limiters := make([]*ratelimit.Limiter, 0, len(route.Tiers))
	for _, name := range route.Tiers {
		if p.deps.Limits == nil {
			return nil, fmt.Errorf("route %s: rate limits not configured", route)
		}
		l, err := p.deps.Limits.Lookup(name)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", route, err)
		}
		limiters = append(limiters, l)
	}
	caching := route.CacheTTL > 0 && p.deps.Cache != nil

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if err := p.checkCSRF(c); err != nil {
			return err
		}

		var principal *domain.Principal
		if !route.Public {
			var err error
			if principal, err = p.authenticate(c); err != nil {
				return err
			}
			auth.SetPrincipal(c, principal)

			if err := p.authorize(c, principal, route.Roles); err != nil {
				return err
			}
			if route.RequireSubscription {
				if err := p.checkEntitlement(c, principal); err != nil {
					return err
				}
			}
		}

		admissions, err := p.admit(c, limiters, principal)
		if err != nil {
			return err
		}

		var cacheKey string
		if caching {
			cacheKey = cache.KeyFor(c.Path(), string(c.Request().URI().QueryString()), cache.ScopeFor(principal, route.CachePerPrincipal))
			if entry, ok := p.deps.Cache.Get(ctx, cacheKey); ok {
				p.settle(ctx, admissions, true)
				return serveCached(c, entry)
			}
			c.Set("X-Cache", "MISS")
		}

		handlerErr := handler(c)
		status := c.Response().StatusCode()
		if handlerErr != nil {
			status = toDomainError(handlerErr).HTTPStatus
		}
		succeeded := handlerErr == nil && status < fiber.StatusBadRequest
		p.settle(ctx, admissions, succeeded)
		if handlerErr != nil {
			return handlerErr
		}

		if cacheKey != "" && status == fiber.StatusOK {
			p.deps.Cache.Put(ctx, cacheKey, cache.Entry{
				Body:        append([]byte(nil), c.Response().Body()...),
				Status:      status,
				ContentType: string(c.Response().Header.ContentType()),
			}, route.CacheTTL)
		}
		if succeeded && p.deps.Cache != nil {
			for _, prefix := range route.Invalidates {
				p.deps.Cache.Invalidate(ctx, prefix)
			}
		}
		return nil
	}, nil
}

// Register validates route and mounts it on r.
func (p *Pipeline) Register(r fiber.Router, route Route, handler fiber.Handler) error {
	h, err := p.Handler(route, handler)
	if err != nil {
		return err
	}
	r.Add(route.Method, route.Path, h)
	return nil
}

func (p *Pipeline) reject(c *fiber.Ctx, stage Stage, err error) error {
	de := apperrors.ToDomainError(err)
	p.deps.Metrics.RecordRejection(string(stage), de.Code)
	return &Rejection{Stage: stage, Err: de}
}

func (p *Pipeline) checkCSRF(c *fiber.Ctx) error {
	hasCookie := c.Get(fiber.HeaderCookie) != ""
	if !csrf.Applies(c.Method(), c.Path(), hasCookie) {
		return nil
	}

	err := p.deps.CSRF.Validate(c.Cookies(csrf.SessionCookieName), c.Cookies(csrf.CookieName), submittedCSRFToken(c))
	if err == nil {
		return nil
	}
	fields := requestFields(c)
	fields["user_agent"] = strings.Clone(c.Get(fiber.HeaderUserAgent))
	fields["reason"] = err.Error()
	p.deps.Events.Emit(events.EventCSRFValidationFailed, events.SeverityHigh, fields)
	return p.reject(c, StageCSRF, apperrors.NewForbidden(
		apperrors.CodeCSRFValidationFailed,
		"Invalid or missing CSRF token. Please refresh the page and try again.",
		err,
	))
}

func submittedCSRFToken(c *fiber.Ctx) string {
	for _, v := range []string{
		c.Get(csrf.HeaderName),
		c.Get(csrf.AltHeaderName),
		c.FormValue(csrf.FieldName),
		c.Query(csrf.FieldName),
	} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (p *Pipeline) authenticate(c *fiber.Ctx) (*domain.Principal, error) {
	principal, err := p.deps.Authenticator.Authenticate(c.Get(fiber.HeaderAuthorization))
	if err == nil {
		return principal, nil
	}

	switch {
	case errors.Is(err, auth.ErrExpired):
		return nil, p.reject(c, StageAuthenticate, apperrors.NewUnauthorized(apperrors.CodeTokenExpired, "token expired", err))
	case errors.Is(err, auth.ErrInvalidSignature):
		p.deps.Events.Emit(events.EventAuthenticationFailed, events.SeverityMedium, requestFields(c))
		return nil, p.reject(c, StageAuthenticate, apperrors.NewUnauthorized(apperrors.CodeInvalidToken, "invalid token", err))
	default:
		return nil, p.reject(c, StageAuthenticate, apperrors.NewUnauthorized(apperrors.CodeMissingCredential, "authentication required", err))
	}
}

func (p *Pipeline) authorize(c *fiber.Ctx, principal *domain.Principal, roles domain.RoleSet) error {
	err := auth.Authorize(principal, roles)
	if err == nil {
		return nil
	}
	fields := requestFields(c)
	fields["user_id"] = principal.UserID
	fields["role"] = string(principal.Role)
	p.deps.Events.Emit(events.EventAuthorizationDenied, events.SeverityMedium, fields)
	return p.reject(c, StageAuthorize, apperrors.NewForbidden(apperrors.CodeInsufficientRole, "you do not have permission to perform this action", err))
}

func (p *Pipeline) checkEntitlement(c *fiber.Ctx, principal *domain.Principal) error {
	record, err := p.deps.Gate.CheckEntitlement(c.UserContext(), principal)
	if err == nil {
		subscription.SetRecord(c, record)
		return nil
	}
	if errors.Is(err, subscription.ErrSubscriptionRequired) {
		return p.reject(c, StageEntitlement, apperrors.NewForbidden(apperrors.CodeSubscriptionRequired, "an active subscription is required", err))
	}

	fields := requestFields(c)
	fields["user_id"] = principal.UserID
	p.deps.Events.Emit(events.EventEntitlementUnavailable, events.SeverityMedium, fields)
	p.deps.Logger.Warn("entitlement check unavailable",
		zap.String("user_id", principal.UserID),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return p.reject(c, StageEntitlement, apperrors.NewForbidden(apperrors.CodeEntitlementUnavailable, "unable to verify subscription, please try again shortly", err))
}

func (p *Pipeline) admit(c *fiber.Ctx, limiters []*ratelimit.Limiter, principal *domain.Principal) ([]admission, error) {
	if len(limiters) == 0 {
		return nil, nil
	}
	subject := ratelimit.Subject{IP: c.IP()}
	if principal != nil {
		subject.PrincipalID = principal.UserID
	}

	ctx := c.UserContext()
	admissions := make([]admission, 0, len(limiters))
	for _, l := range limiters {
		key := l.Key(subject)
		d, err := l.Admit(ctx, key)
		if err != nil {
			// a limiter that cannot answer fails closed
			p.settle(ctx, admissions, false)
			return nil, p.reject(c, StageRateLimit, apperrors.NewInternalError(err))
		}
		if !d.Admitted {
			p.settle(ctx, admissions, false)
			p.setRateLimitHeaders(c, d)
			fields := requestFields(c)
			fields["tier"] = l.Policy().Name
			p.deps.Events.Emit(events.EventRateLimited, events.SeverityLow, fields)
			return nil, p.reject(c, StageRateLimit, apperrors.NewTooManyRequests("too many requests, please try again later", d.RetryAfter))
		}
		admissions = append(admissions, admission{limiter: l, key: key, decision: d})
	}

	tightest := admissions[0].decision
	for _, a := range admissions[1:] {
		if a.decision.Remaining < tightest.Remaining {
			tightest = a.decision
		}
	}
	p.setRateLimitHeaders(c, tightest)
	return admissions, nil
}

func (p *Pipeline) settle(ctx context.Context, admissions []admission, succeeded bool) {
	for _, a := range admissions {
		if err := a.limiter.Done(ctx, a.key, a.decision, succeeded); err != nil {
			p.deps.Logger.Warn("rate-limit release failed", zap.String("tier", a.limiter.Policy().Name), zap.Error(err))
		}
	}
}

func (p *Pipeline) setRateLimitHeaders(c *fiber.Ctx, d ratelimit.Decision) {
	c.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(d.ResetAt.Sub(p.deps.Clock.Now()))))
}

// requestFields copies request attributes for events, which outlive the
// request buffers fiber hands out.
func requestFields(c *fiber.Ctx) map[string]any {
	return map[string]any{
		"ip":     strings.Clone(c.IP()),
		"method": strings.Clone(c.Method()),
		"path":   strings.Clone(c.Path()),
	}
}

func serveCached(c *fiber.Ctx, entry cache.Entry) error {
	if entry.ContentType != "" {
		c.Set(fiber.HeaderContentType, entry.ContentType)
	}
	c.Set("X-Cache", "HIT")
	return c.Status(entry.Status).Send(entry.Body)
}
