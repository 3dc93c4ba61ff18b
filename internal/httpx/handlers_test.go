package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-blindbox-draws/internal/domain"
	"github.com/ariefcatur/go-blindbox-draws/internal/draw"
	"github.com/ariefcatur/go-blindbox-draws/internal/logger"
	"github.com/ariefcatur/go-blindbox-draws/internal/memstore"
	"github.com/ariefcatur/go-blindbox-draws/internal/metrics"
	"github.com/ariefcatur/go-blindbox-draws/internal/probability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func box(id, name string, price int64, stock int, active bool) domain.BlindBox {
	return domain.BlindBox{
		ID:     id,
		Name:   name,
		Price:  dec(price),
		Stock:  stock,
		Active: active,
		Prizes: []domain.Prize{
			{ID: id + "-p1", Name: "Fox", Image: "fox.png", Rarity: domain.RarityCommon, Probability: 0.7, Value: dec(5)},
			{ID: id + "-p2", Name: "Owl", Image: "owl.png", Rarity: domain.RarityRare, Probability: 0.2, Value: dec(20)},
			{ID: id + "-p3", Name: "Stag", Image: "stag.png", Rarity: domain.RaritySecret, Probability: 0.1, Value: dec(80)},
		},
	}
}

type testServer struct {
	router *chi.Mux
	store  *memstore.Store
}

func newTestServer(t *testing.T, drawer Drawer) testServer {
	t.Helper()
	store := memstore.New()
	store.PutBox(box("forest", "Forest Friends", 10, 5, true))
	store.PutBox(box("ocean", "Ocean Pals", 10, 0, true))
	store.PutBox(box("retired", "Retired Series", 10, 5, false))
	store.PutAccount("alice", dec(100))
	store.PutAccount("bob", dec(5))
	ledger := memstore.NewLedger()

	m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	if drawer == nil {
		drawer = draw.New(store, store, ledger,
			draw.WithLogger(logger.Nop()),
			draw.WithMetrics(m),
			draw.WithSelector(probability.NewSeededSelector(7, 7)),
		)
	}
	r := NewRouter(logger.Nop(), m)
	h := &Handler{
		Draws:    drawer,
		Catalog:  store,
		Ledger:   ledger,
		Balances: store,
		Secret:   secret,
		Log:      logger.Nop(),
	}
	h.Register(r)
	return testServer{router: r, store: store}
}

func token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := IssueToken(secret, userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s testServer) do(t *testing.T, method, path, user string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set(authHeaderName, "Bearer "+token(t, user))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestDrawSuccess(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/blindboxes/forest/draw", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[drawResp](t, w)
	assert.NotEmpty(t, resp.OrderID)
	assert.Contains(t, []string{"Fox", "Owl", "Stag"}, resp.PrizeName)
	assert.NotEmpty(t, resp.PrizeImage)

	info := s.do(t, http.MethodGet, "/user/info", "alice", nil)
	require.Equal(t, http.StatusOK, info.Code)
	body := decode[map[string]any](t, info)
	assert.Equal(t, "alice", body["userId"])
	assert.Equal(t, "90", body["balance"])

	b, err := s.store.GetBoxWithPrizes(context.Background(), "forest")
	require.NoError(t, err)
	assert.Equal(t, 4, b.Stock)
}

func TestDrawErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		user     string
		header   string
		wantCode int
		wantErr  string
	}{
		{name: "missing token", path: "/blindboxes/forest/draw", wantCode: http.StatusUnauthorized, wantErr: codeUnauthenticated},
		{name: "wrong scheme", path: "/blindboxes/forest/draw", header: "Token abc", wantCode: http.StatusUnauthorized, wantErr: codeUnauthenticated},
		{name: "garbage token", path: "/blindboxes/forest/draw", header: "Bearer abc", wantCode: http.StatusUnauthorized, wantErr: codeUnauthenticated},
		{name: "no account", path: "/blindboxes/forest/draw", user: "mallory", wantCode: http.StatusUnauthorized, wantErr: codeUnauthenticated},
		{name: "insufficient balance", path: "/blindboxes/forest/draw", user: "bob", wantCode: http.StatusBadRequest, wantErr: codeInsufficientBalance},
		{name: "out of stock", path: "/blindboxes/ocean/draw", user: "alice", wantCode: http.StatusBadRequest, wantErr: codeOutOfStock},
		{name: "unknown box", path: "/blindboxes/nope/draw", user: "alice", wantCode: http.StatusNotFound, wantErr: codeBoxNotFound},
		{name: "inactive box", path: "/blindboxes/retired/draw", user: "alice", wantCode: http.StatusNotFound, wantErr: codeBoxInactive},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t, nil)

			headers := map[string]string{}
			if tt.header != "" {
				headers[authHeaderName] = tt.header
			}
			w := s.do(t, http.MethodPost, tt.path, tt.user, headers)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode[errorBody](t, w).Code)
		})
	}
}

type unavailableDrawer struct{}

func (unavailableDrawer) Draw(context.Context, draw.Request) (domain.Order, error) {
	return domain.Order{}, &domain.ServiceUnavailableError{Msg: "ledger down"}
}

func TestDrawUnavailable(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, unavailableDrawer{})

	w := s.do(t, http.MethodPost, "/blindboxes/forest/draw", "alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, codeUnavailable, decode[errorBody](t, w).Code)
}

func TestDrawIdempotencyKey(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)
	h := map[string]string{idempotencyHeader: "retry-1"}

	first := s.do(t, http.MethodPost, "/blindboxes/forest/draw", "alice", h)
	second := s.do(t, http.MethodPost, "/blindboxes/forest/draw", "alice", h)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, decode[drawResp](t, first).OrderID, decode[drawResp](t, second).OrderID)

	bal, err := s.store.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec(90)))
}

func TestOrders(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	var ids []string
	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/blindboxes/forest/draw", "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)
		ids = append(ids, decode[drawResp](t, w).OrderID)
	}

	list := s.do(t, http.MethodGet, "/orders", "alice", nil)
	require.Equal(t, http.StatusOK, list.Code)
	got := decode[struct {
		List []orderView `json:"list"`
	}](t, list)
	require.Len(t, got.List, 2)
	assert.Equal(t, "Forest Friends", got.List[0].BlindBoxName)
	assert.Equal(t, string(domain.OrderStatusPaid), got.List[0].Status)

	own := s.do(t, http.MethodGet, "/orders/"+ids[0], "alice", nil)
	require.Equal(t, http.StatusOK, own.Code)
	assert.Equal(t, ids[0], decode[orderView](t, own).ID)

	other := s.do(t, http.MethodGet, "/orders/"+ids[0], "bob", nil)
	assert.Equal(t, http.StatusNotFound, other.Code)

	missing := s.do(t, http.MethodGet, "/orders/nope", "alice", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)

	empty := s.do(t, http.MethodGet, "/orders", "bob", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `{"list":[]}`, empty.Body.String())
}

func TestCatalogEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	all := s.do(t, http.MethodGet, "/blindboxes", "", nil)
	require.Equal(t, http.StatusOK, all.Code)
	list := decode[struct {
		List []boxSummary `json:"list"`
	}](t, all)
	assert.Len(t, list.List, 3)

	filtered := s.do(t, http.MethodGet, "/blindboxes?keyword=ocean", "", nil)
	require.Equal(t, http.StatusOK, filtered.Code)
	list = decode[struct {
		List []boxSummary `json:"list"`
	}](t, filtered)
	require.Len(t, list.List, 1)
	assert.Equal(t, "ocean", list.List[0].ID)

	detail := s.do(t, http.MethodGet, "/blindboxes/forest", "", nil)
	require.Equal(t, http.StatusOK, detail.Code)
	d := decode[boxDetail](t, detail)
	assert.Equal(t, "Forest Friends", d.Name)
	require.Len(t, d.Prizes, 3)
	assert.Equal(t, "secret", d.Prizes[2].Rarity)
	assert.True(t, d.Prizes[2].Value.Equal(dec(80)))

	missing := s.do(t, http.MethodGet, "/blindboxes/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/healthz", "", nil).Code)
	_ = s.do(t, http.MethodGet, "/blindboxes", "", nil)

	w := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/blindboxes"`)
}

func TestParseToken(t *testing.T) {
	t.Parallel()

	good, err := IssueToken(secret, "alice", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "alice", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), "alice", time.Hour)
	require.NoError(t, err)
	anonymous, err := IssueToken(secret, "", time.Hour)
	require.NoError(t, err)

	sub, err := parseToken(secret, good)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	for _, tok := range []string{expired, foreign, anonymous} {
		_, err := parseToken(secret, tok)
		assert.Error(t, err)
	}
}
