package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "secret-key-123"

func newTestClient(t *testing.T, h http.Handler, mutate ...func(*Config)) (*Client, *test.Hook) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	cfg := Config{
		BaseURL:    srv.URL + "/3",
		APIKey:     testAPIKey,
		HTTPClient: srv.Client(),
		Logger:     logger,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c, hook
}

// recordSleeps 替换 sleepFunc，只记录等待时长。
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var got []time.Duration
	old := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error {
		got = append(got, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleepFunc = old })
	return &got
}

func assertNoSecretLogged(t *testing.T, hook *test.Hook) {
	t.Helper()
	for _, e := range hook.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, line, testAPIKey)
	}
}

func TestRequest_RetriesAfter429(t *testing.T) {
	sleeps := recordSleeps(t)

	var hits int32
	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	c, hook := newTestClient(t, r)

	body, err := c.Request(context.Background(), "/ping", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	require.Len(t, *sleeps, 1)
	assert.GreaterOrEqual(t, (*sleeps)[0], 2*time.Second)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assertNoSecretLogged(t, hook)
}

func TestRequest_MissingRetryAfterDefaultsToOneSecond(t *testing.T) {
	sleeps := recordSleeps(t)

	var hits int32
	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	c, _ := newTestClient(t, r)

	_, err := c.Request(context.Background(), "/ping", nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, *sleeps)
}

func TestRequest_RateLimitRetriesBounded(t *testing.T) {
	sleeps := recordSleeps(t)

	var hits int32
	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c, _ := newTestClient(t, r, func(cfg *Config) {
		cfg.Retry = RetryPolicy{MaxRetries: 3}
	})

	_, err := c.Request(context.Background(), "/ping", nil)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err), "期望 RateLimitError，实际 %T %v", err, err)

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 3, rl.Retries)
	assert.Equal(t, 3*time.Second, rl.Waited)
	assert.Len(t, *sleeps, 3)
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits))
}

func TestRequest_RateLimitWaitBudget(t *testing.T) {
	sleeps := recordSleeps(t)

	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Retry-After", "100")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c, _ := newTestClient(t, r, func(cfg *Config) {
		cfg.Retry = RetryPolicy{MaxRetries: 50, MaxWait: 150 * time.Second}
	})

	_, err := c.Request(context.Background(), "/ping", nil)
	require.True(t, IsRateLimited(err))
	assert.Equal(t, []time.Duration{100 * time.Second}, *sleeps)
}

func TestRequest_HugeRetryAfterGivesUpWithoutSleeping(t *testing.T) {
	sleeps := recordSleeps(t)

	var hits int32
	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "99999999999")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c, _ := newTestClient(t, r)

	_, err := c.Request(context.Background(), "/ping", nil)
	require.True(t, IsRateLimited(err), "期望 RateLimitError，实际 %T %v", err, err)
	assert.Empty(t, *sleeps, "超出等待预算时不应 sleep")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	var rl *RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, maxRetryAfter, rl.RetryAfter)
}

func TestRequest_ContextCanceledDuringBackoff(t *testing.T) {
	old := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error { return context.Canceled }
	t.Cleanup(func() { sleepFunc = old })

	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	c, _ := newTestClient(t, r)

	_, err := c.Request(context.Background(), "/ping", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_NonSuccessStatus(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status_code":7,"status_message":"Invalid API key"}`))
	})
	c, _ := newTestClient(t, r)

	_, err := c.Request(context.Background(), "/ping", nil)
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se), "期望 HTTPStatusError，实际 %T %v", err, err)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "Invalid API key", se.Message)
	assert.False(t, IsNotFound(err))
}

func TestRequest_SendsCredentialAsQueryParam(t *testing.T) {
	var gotKey, gotPage string
	r := chi.NewRouter()
	r.Get("/3/ping", func(w http.ResponseWriter, req *http.Request) {
		gotKey = req.URL.Query().Get("api_key")
		gotPage = req.URL.Query().Get("page")
		_, _ = w.Write([]byte(`{}`))
	})
	c, _ := newTestClient(t, r)

	_, err := c.Request(context.Background(), "ping", map[string][]string{"page": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, gotKey)
	assert.Equal(t, "3", gotPage)
}

func TestRequest_TransportErrorRedactsCredential(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: base, APIKey: testAPIKey})
	require.NoError(t, err)

	_, err = c.Request(context.Background(), "/ping", nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), testAPIKey)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		header string
		value  string
		want   time.Duration
	}{
		{"seconds", "Retry-After", "2", 2 * time.Second},
		{"zero", "Retry-After", "0", 0},
		{"fractional", "Retry-After", "1.5", 1500 * time.Millisecond},
		{"absent", "", "", time.Second},
		{"garbage", "Retry-After", "soon", time.Second},
		{"negative", "Retry-After", "-3", time.Second},
		{"http date", "Retry-After", now.Add(3 * time.Second).Format(http.TimeFormat), 3 * time.Second},
		{"past date", "Retry-After", now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"x-retry-after", "X-Retry-After", "4", 4 * time.Second},
		{"huge seconds clamped", "Retry-After", "99999999999", maxRetryAfter},
		{"beyond int64 clamped", "Retry-After", "99999999999999999999", maxRetryAfter},
		{"huge float clamped", "Retry-After", "1e12", maxRetryAfter},
		{"infinity clamped", "Retry-After", "+Inf", maxRetryAfter},
		{"nan falls back", "Retry-After", "NaN", time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.header != "" {
				h.Set(tc.header, tc.value)
			}
			assert.Equal(t, tc.want, parseRetryAfter(h, now))
		})
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewClient(Config{APIKey: "k", BaseURL: "not a url"})
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "k", RatingOrder: "random"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "rating_order"))

	c, err := NewClient(Config{APIKey: "k", Countries: []string{" us", "GB", "us"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "GB"}, c.countries)
	assert.Equal(t, DefaultMaxPages, c.discover.MaxPages)
	assert.Equal(t, DefaultMaxRetries, c.retry.MaxRetries)
}
