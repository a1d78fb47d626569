package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pinforge/pin-server-go/internal/middleware"
	"github.com/pinforge/pin-server-go/internal/model"
	"github.com/pinforge/pin-server-go/internal/service"
)

const testAdminToken = "test-admin-token"

// fakePinRepo is an in-memory PinRepository for exercising the full
// handler -> service path without Postgres.
type fakePinRepo struct {
	mu   sync.Mutex
	pins map[string]*model.Pin
	seq  int
}

func newFakePinRepo() *fakePinRepo {
	return &fakePinRepo{pins: make(map[string]*model.Pin)}
}

func (r *fakePinRepo) FindByCode(ctx context.Context, code string) (*model.Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pins {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakePinRepo) Create(ctx context.Context, params model.CreatePinParams) (*model.Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	pin := &model.Pin{
		ID:        "fake-" + strconv.Itoa(r.seq),
		Code:      params.Code,
		OwnerID:   params.OwnerID,
		CreatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}
	r.pins[pin.ID] = pin
	cp := *pin
	return &cp, nil
}

func (r *fakePinRepo) MarkUsed(ctx context.Context, id string) (*model.Pin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pin, ok := r.pins[id]
	if !ok || pin.UsedAt != nil {
		return nil, nil
	}
	now := time.Now()
	pin.UsedAt = &now
	cp := *pin
	return &cp, nil
}

func (r *fakePinRepo) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, p := range r.pins {
		if p.OwnerID != nil && *p.OwnerID == ownerID {
			delete(r.pins, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *fakePinRepo) DeleteUsedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (r *fakePinRepo) CountLive(ctx context.Context) (int, error) {
	return 0, nil
}

// expire backdates a pin's expiry so redemption sees it as expired.
func (r *fakePinRepo) expire(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pins {
		if p.Code == code {
			p.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func newTestRouter(repo *fakePinRepo) chi.Router {
	pinService := service.NewPinService(repo, service.NewGenerator(service.DefaultAlphabet, 12), service.Options{})
	adminAuth := middleware.NewAdminAuthMiddleware(middleware.BearerToken(testAdminToken))
	h := NewPinHandler(pinService, adminAuth.Handler, passthrough)

	r := chi.NewRouter()
	r.Route("/pins", func(r chi.Router) {
		r.Mount("/", h.Routes())
	})
	return r
}

func postJSON(t *testing.T, router http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestCreatePin(t *testing.T) {
	t.Run("issues a pin with 201", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins", testAdminToken, map[string]any{
			"ownerId": "u1", "ttlMinutes": 60,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["ok"])
		assert.Len(t, body["pin"], 12)
		assert.Equal(t, "u1", body["ownerId"])
		assert.NotEmpty(t, body["expiresAt"])
	})

	t.Run("issues an anonymous pin", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins", testAdminToken, map[string]any{})

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["ok"])
		assert.Nil(t, body["ownerId"])
	})

	t.Run("rejects missing bearer token with 401", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins", "", map[string]any{})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects wrong bearer token with 401", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins", "not-the-token", map[string]any{})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects out-of-range ttl with 400", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins", testAdminToken, map[string]any{
			"ttlMinutes": 500,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, false, body["ok"])
	})

	t.Run("rejects malformed JSON with 400", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		r := httptest.NewRequest(http.MethodPost, "/pins", bytes.NewReader([]byte("{not json")))
		r.Header.Set("Authorization", "Bearer "+testAdminToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestVerifyPin(t *testing.T) {
	issue := func(t *testing.T, router http.Handler, ownerID string) string {
		t.Helper()
		w := postJSON(t, router, "/pins", testAdminToken, map[string]any{"ownerId": ownerID})
		require.Equal(t, http.StatusCreated, w.Code)
		return decodeBody(t, w)["pin"].(string)
	}

	t.Run("redeems an issued pin once", func(t *testing.T) {
		repo := newFakePinRepo()
		router := newTestRouter(repo)
		code := issue(t, router, "u1")

		w := postJSON(t, router, "/pins/verify", "", map[string]any{"pin": code})

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, code, body["pin"])
		assert.Equal(t, "u1", body["ownerId"])
		assert.NotEmpty(t, body["usedAt"])

		// Second redemption observes the consumed state.
		w = postJSON(t, router, "/pins/verify", "", map[string]any{"pin": code})
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, "PIN_ALREADY_USED", decodeBody(t, w)["code"])
	})

	t.Run("accepts lowercase input for an uppercase code", func(t *testing.T) {
		repo := newFakePinRepo()
		router := newTestRouter(repo)
		code := issue(t, router, "")

		w := postJSON(t, router, "/pins/verify", "", map[string]any{
			"pin": "  " + string(bytes.ToLower([]byte(code))) + " ",
		})

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown pin returns 404", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins/verify", "", map[string]any{"pin": "ZZZZZZZZZZZZ"})

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, false, decodeBody(t, w)["ok"])
	})

	t.Run("expired pin returns 410 with PIN_EXPIRED", func(t *testing.T) {
		repo := newFakePinRepo()
		router := newTestRouter(repo)
		code := issue(t, router, "")
		repo.expire(code)

		w := postJSON(t, router, "/pins/verify", "", map[string]any{"pin": code})

		assert.Equal(t, http.StatusGone, w.Code)
		assert.Equal(t, "PIN_EXPIRED", decodeBody(t, w)["code"])
	})

	t.Run("too-short pin returns 400", func(t *testing.T) {
		router := newTestRouter(newFakePinRepo())

		w := postJSON(t, router, "/pins/verify", "", map[string]any{"pin": "AB"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("requires no authentication", func(t *testing.T) {
		repo := newFakePinRepo()
		router := newTestRouter(repo)
		code := issue(t, router, "")

		w := postJSON(t, router, "/pins/verify", "", map[string]any{"pin": code})

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOwnerReplacement(t *testing.T) {
	t.Run("second issuance for an owner invalidates the first pin", func(t *testing.T) {
		repo := newFakePinRepo()
		router := newTestRouter(repo)

		w := postJSON(t, router, "/pins", testAdminToken, map[string]any{"ownerId": "u1"})
		first := decodeBody(t, w)["pin"].(string)

		w = postJSON(t, router, "/pins", testAdminToken, map[string]any{"ownerId": "u1"})
		second := decodeBody(t, w)["pin"].(string)

		w = postJSON(t, router, "/pins/verify", "", map[string]any{"pin": first})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = postJSON(t, router, "/pins/verify", "", map[string]any{"pin": second})
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	t.Run("reports service identity and time", func(t *testing.T) {
		h := NewHealthHandler(nil, nil)

		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "pin-server", body["service"])
		assert.NotEmpty(t, body["time"])
	})
}
