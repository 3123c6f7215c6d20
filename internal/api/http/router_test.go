package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/learning-api/internal/api/http/handlers"
	"github.com/spec-kit/learning-api/internal/csrf"
	"github.com/spec-kit/learning-api/internal/domain"
	"github.com/spec-kit/learning-api/internal/service"
	apperrors "github.com/spec-kit/learning-api/pkg/util"
)

const webhookSecret = "whsec-test"

type fakeUsers struct {
	byEmail map[string]*domain.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := f.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeContent struct{}

func (fakeContent) ListBooks(_ context.Context, level string, limit, offset int) ([]domain.Book, error) {
	return []domain.Book{{ID: "b-1", Title: "Grammar in Use", Level: level}}, nil
}

func (fakeContent) ListChapters(_ context.Context, bookID string) ([]domain.Chapter, error) {
	if bookID != "b-1" {
		return nil, nil
	}
	return []domain.Chapter{{ID: "c-1", BookID: bookID, Position: 1, Title: "Present simple"}}, nil
}

type fakeBookmarks struct {
	mu    sync.Mutex
	items []domain.Bookmark
}

func (f *fakeBookmarks) Create(_ context.Context, b *domain.Bookmark) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.CreatedAt = start
	f.items = append(f.items, *b)
	return nil
}

func (f *fakeBookmarks) ListByUser(_ context.Context, userID string) ([]domain.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Bookmark{}
	for _, b := range f.items {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

type subscriptionRepo struct {
	*fakeSubscriptions
	mu    sync.Mutex
	ended map[string]domain.SubscriptionStatus
}

func (r *subscriptionRepo) EndActive(_ context.Context, userID string, status domain.SubscriptionStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended[userID] = status
	return 1, nil
}

func (r *subscriptionRepo) ExpireLapsed(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func newRequest(method, path, body string) *nethttp.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type routerFixture struct {
	*harness
	subsRepo  *subscriptionRepo
	bookmarks *fakeBookmarks
}

func newRouterFixture(t *testing.T, readyErr error) *routerFixture {
	t.Helper()
	h := newHarness(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &fakeUsers{byEmail: map[string]*domain.User{
		"learner@example.com": {ID: "u-1", Name: "Learner", Email: "learner@example.com", PasswordHash: string(hash), Role: domain.RoleUser, Status: domain.UserStatusActive},
	}}
	subsRepo := &subscriptionRepo{fakeSubscriptions: h.subs, ended: map[string]domain.SubscriptionStatus{}}
	bookmarks := &fakeBookmarks{}
	logger := zap.NewNop()

	err = RegisterRoutes(h.app, RouteConfig{
		Pipeline:      h.pipeline,
		Health:        handlers.NewHealthHandler("learning-api", "test", map[string]handlers.Pinger{"postgres": pinger{err: readyErr}}, logger),
		Auth:          handlers.NewAuthHandler(service.NewAuthService(users, h.tokens), logger),
		CSRF:          handlers.NewCSRFHandler(h.guard, false, time.Hour),
		Content:       handlers.NewContentHandler(fakeContent{}),
		Bookmarks:     handlers.NewBookmarksHandler(bookmarks),
		Subscriptions: handlers.NewSubscriptionHandler(),
		Payments:      handlers.NewPaymentsHandler(service.NewSubscriptionService(subsRepo, h.clock, logger), webhookSecret),
		Admin:         handlers.NewAdminHandler(h.cache, h.metrics, nil, logger),
	})
	require.NoError(t, err)
	return &routerFixture{harness: h, subsRepo: subsRepo, bookmarks: bookmarks}
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t, nil)
	assert.Equal(t, "alive", f.get(t, "/api/health", "").json(t)["status"])
	assert.Equal(t, "ready", f.get(t, "/api/health/ready", "").json(t)["status"])

	down := newRouterFixture(t, errors.New("dial tcp: refused"))
	res := down.get(t, "/api/health/ready", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, res.status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", res.code(t))
	assert.Equal(t, "unavailable", res.json(t)["details"].(map[string]any)["postgres"])
	assert.NotContains(t, string(res.body), "dial tcp")
}

func TestRouter_LoginIssuesUsableToken(t *testing.T) {
	f := newRouterFixture(t, nil)

	res := f.postJSON(t, "/api/auth/login", "", `{"email":"learner@example.com","password":"nope"}`)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)
	assert.Equal(t, apperrors.CodeInvalidCredentials, res.code(t))

	res = f.postJSON(t, "/api/auth/login", "", `{"email":"ghost@example.com","password":"nope"}`)
	assert.Equal(t, apperrors.CodeInvalidCredentials, res.code(t))

	res = f.postJSON(t, "/api/auth/login", "", `{"email":"learner@example.com","password":"s3cret-pass"}`)
	require.Equal(t, fiber.StatusOK, res.status)
	data := res.json(t)["data"].(map[string]any)
	token := data["auth"].(map[string]any)["token"].(string)

	res = f.get(t, "/api/bookmarks", "Bearer "+token)
	assert.Equal(t, fiber.StatusOK, res.status)
}

func TestRouter_LoginAndWebhookAlsoSpendGeneralBudget(t *testing.T) {
	f := newRouterFixture(t, nil)
	remaining := func() int {
		res := f.get(t, "/api/csrf-token", "")
		require.Equal(t, fiber.StatusOK, res.status)
		n, err := strconv.Atoi(res.header.Get("RateLimit-Remaining"))
		require.NoError(t, err)
		return n
	}

	before := remaining()
	f.postJSON(t, "/api/auth/login", "", `{"email":"learner@example.com","password":"nope"}`)
	body := `{"id":"evt_9","type":"invoice.created"}`
	req := newRequest(fiber.MethodPost, "/api/payments/webhook", body)
	req.Header.Set(handlers.SignatureHeader, sign(body))
	require.Equal(t, fiber.StatusOK, f.send(t, req).status)

	assert.Equal(t, before-3, remaining())
}

func TestRouter_CSRFTokenRoundTrip(t *testing.T) {
	f := newRouterFixture(t, nil)

	issue := f.send(t, newRequest(fiber.MethodGet, "/api/csrf-token", ""))
	require.Equal(t, fiber.StatusOK, issue.status)
	token := issue.json(t)["csrfToken"].(string)
	require.NotEmpty(t, token)

	var cookiePairs []string
	for _, line := range issue.header.Values(fiber.HeaderSetCookie) {
		pair, _, _ := strings.Cut(line, ";")
		cookiePairs = append(cookiePairs, pair)
	}
	require.Len(t, cookiePairs, 2)
	cookieHeader := strings.Join(cookiePairs, "; ")
	assert.Contains(t, cookieHeader, csrf.SessionCookieName+"=")
	assert.Contains(t, cookieHeader, csrf.CookieName+"=")

	user := f.bearer(t, "u-1", domain.RoleUser)
	body := `{"chapter_id":"5f1c0e64-3b4e-4c47-9a57-0fd3a1c8e2b1","note":"review"}`

	req := newRequest(fiber.MethodPost, "/api/bookmarks", body)
	req.Header.Set(fiber.HeaderAuthorization, user)
	req.Header.Set(fiber.HeaderCookie, cookieHeader)
	assert.Equal(t, fiber.StatusForbidden, f.send(t, req).status)

	req = newRequest(fiber.MethodPost, "/api/bookmarks", body)
	req.Header.Set(fiber.HeaderAuthorization, user)
	req.Header.Set(fiber.HeaderCookie, cookieHeader)
	req.Header.Set(csrf.HeaderName, token)
	res := f.send(t, req)
	require.Equal(t, fiber.StatusCreated, res.status, "body %s", res.body)

	list := f.get(t, "/api/bookmarks", user)
	assert.Len(t, list.json(t)["data"], 1)
}

func TestRouter_ChaptersRequireSubscription(t *testing.T) {
	f := newRouterFixture(t, nil)
	user := f.bearer(t, "u-1", domain.RoleUser)

	res := f.get(t, "/api/books/b-1/chapters", user)
	assert.Equal(t, fiber.StatusForbidden, res.status)
	assert.Equal(t, apperrors.CodeSubscriptionRequired, res.code(t))

	f.subs.set("u-1", &domain.SubscriptionRecord{ID: "s-1", UserID: "u-1", Plan: "monthly", Status: domain.SubscriptionActive, StartDate: start})
	res = f.get(t, "/api/books/b-1/chapters", user)
	assert.Equal(t, fiber.StatusOK, res.status)

	res = f.get(t, "/api/subscriptions/me", user)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "monthly", res.json(t)["data"].(map[string]any)["plan"])

	res = f.get(t, "/api/books/missing/chapters", user)
	assert.Equal(t, fiber.StatusNotFound, res.status)
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRouter_PaymentsWebhook(t *testing.T) {
	f := newRouterFixture(t, nil)
	body := `{"id":"evt_1","type":"subscription.cancelled","data":{"user_id":"u-1"}}`

	req := newRequest(fiber.MethodPost, "/api/payments/webhook", body)
	req.Header.Set(handlers.SignatureHeader, sign("tampered"))
	res := f.send(t, req)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, apperrors.CodeInvalidSignature, res.code(t))

	req = newRequest(fiber.MethodPost, "/api/payments/webhook", body)
	req.Header.Set(handlers.SignatureHeader, sign(body))
	res = f.send(t, req)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, domain.SubscriptionCancelled, f.subsRepo.ended["u-1"])

	ignored := `{"id":"evt_2","type":"invoice.created"}`
	req = newRequest(fiber.MethodPost, "/api/payments/webhook", ignored)
	req.Header.Set(handlers.SignatureHeader, sign(ignored))
	assert.Equal(t, fiber.StatusOK, f.send(t, req).status)
}

func TestRouter_AdminCacheRoutes(t *testing.T) {
	f := newRouterFixture(t, nil)
	admin := f.bearer(t, "a-1", domain.RoleAdmin)
	staff := f.bearer(t, "s-1", domain.RoleStaff)

	f.get(t, "/api/books", "")
	require.Equal(t, "HIT", f.get(t, "/api/books", "").header.Get("X-Cache"))

	stats := f.get(t, "/api/admin/cache/stats", staff)
	require.Equal(t, fiber.StatusOK, stats.status)
	cacheStats := stats.json(t)["data"].(map[string]any)["cache"].(map[string]any)
	assert.EqualValues(t, 1, cacheStats["hits"])

	res := f.postJSON(t, "/api/admin/cache/invalidate", staff, `{"prefix":"/api/books"}`)
	assert.Equal(t, fiber.StatusForbidden, res.status)

	res = f.postJSON(t, "/api/admin/cache/invalidate", admin, `{"prefix":"books"}`)
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = f.postJSON(t, "/api/admin/cache/invalidate", admin, `{"prefix":"/api/books"}`)
	require.Equal(t, fiber.StatusOK, res.status)
	assert.EqualValues(t, 1, res.json(t)["data"].(map[string]any)["removed"])
	assert.Equal(t, "MISS", f.get(t, "/api/books", "").header.Get("X-Cache"))

	res = f.postJSON(t, "/api/admin/cache/flush", admin, `{}`)
	assert.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "MISS", f.get(t, "/api/books", "").header.Get("X-Cache"))
}
