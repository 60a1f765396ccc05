package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/storefront-kart/internal/domain/product"
	"github.com/xenking/storefront-kart/internal/handler"
	"github.com/xenking/storefront-kart/internal/kv"
	"github.com/xenking/storefront-kart/internal/storefront"
	"github.com/xenking/storefront-kart/pkg/health"
	"github.com/xenking/storefront-kart/pkg/httpmiddleware"
)

func testConfig() *Config {
	return &Config{
		Storage:   StorageConfig{Backend: BackendMemory, Prefix: storefront.DefaultPrefix},
		RateLimit: RateLimitConfig{Max: 1000, Window: time.Minute},
		CORS:      CORSConfig{Origins: []string{"https://shop.example"}},
	}
}

func newTestServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	svc, err := storefront.New(ctx, kv.NewMemory(0))
	require.NoError(t, err)

	hs := health.New()
	hs.SetReady(true)

	h, err := NewHandler(ctx, zaptest.NewLogger(t), cfg, svc, hs, noop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func send(t *testing.T, method, url, body string, headers ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestServer_EndToEnd(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, body := send(t, http.MethodGet, srv.URL+"/livez", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, _ = send(t, http.MethodGet, srv.URL+"/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = send(t, http.MethodPost, srv.URL+"/api/products",
		`{"name":"Papas","category":"vegetables","prices":[{"kind":"per_weight","price_per_pound":"1.00"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.NotEmpty(t, resp.Header.Get(httpmiddleware.RequestIDHeader))

	resp, body = send(t, http.MethodPost, srv.URL+"/api/cart/lines", `{"product_id":1,"quantity":"2.5"}`,
		httpmiddleware.RequestIDHeader, "req-42")
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "req-42", resp.Header.Get(httpmiddleware.RequestIDHeader))

	resp, body = send(t, http.MethodGet, srv.URL+"/api/cart", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"display_total":"2.50"`)

	resp, _ = send(t, http.MethodGet, srv.URL+"/api/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t, testConfig())

	resp, _ := send(t, http.MethodOptions, srv.URL+"/api/cart", "",
		"Origin", "https://shop.example",
		"Access-Control-Request-Method", http.MethodPost,
	)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://shop.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), handler.OperatorKeyHeader)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 2
	srv := newTestServer(t, cfg)

	for range 2 {
		resp, _ := send(t, http.MethodGet, srv.URL+"/api/products", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := send(t, http.MethodGet, srv.URL+"/api/products", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestServer_OperatorKey(t *testing.T) {
	cfg := testConfig()
	cfg.Operator = OperatorConfig{Pepper: "pepper", KeyHashes: []string{handler.HashKey("pepper", "key")}}
	srv := newTestServer(t, cfg)

	const draft = `{"name":"Horchata","category":"beverages","prices":[{"kind":"package","price":"5.00","unit_label":"six-pack"}]}`
	resp, _ := send(t, http.MethodPost, srv.URL+"/api/products", draft)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, http.MethodPost, srv.URL+"/api/products", draft, handler.OperatorKeyHeader, "key")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	cfg.Operator.KeyHashes = []string{"not-hex"}
	_, err := NewHandler(context.Background(), zaptest.NewLogger(t), cfg, nil, health.New(),
		noop.NewMeterProvider(), tracenoop.NewTracerProvider())
	require.Error(t, err)
}

func TestFlushPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &flakyKV{Memory: kv.NewMemory(0), fail: true}
	svc, err := storefront.New(ctx, store)
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, draftPapas())
	require.Error(t, err)
	require.True(t, svc.Pending())

	done := make(chan struct{})
	go func() {
		flushPending(ctx, svc, 5*time.Millisecond)
		close(done)
	}()

	store.setFail(false)
	assert.Eventually(t, func() bool { return !svc.Pending() }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func draftPapas() product.Draft {
	return product.Draft{
		Name:     "Papas",
		Category: product.CategoryVegetables,
		Representations: []product.Representation{
			product.PoundPrice(decimal.RequireFromString("1.00")),
		},
	}
}

// flakyKV fails every write while fail is set.
type flakyKV struct {
	*kv.Memory
	mu   sync.Mutex
	fail bool
}

func (f *flakyKV) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return kv.Unavailable(nil, "put "+key)
	}
	return f.Memory.Put(ctx, key, value)
}
