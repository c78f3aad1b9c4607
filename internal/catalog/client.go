// Package catalog 封装对 TMDb v3 目录 API 的访问：限流感知的请求、按年分页发现、详情与分级查询。
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"

	// DefaultMaxPages 是 discover 接口允许访问的最大页码。
	DefaultMaxPages = 500

	DefaultMaxRetries = 20
	DefaultMaxWait    = 15 * time.Minute

	// defaultRetryAfter 用于 429 响应缺少或无法解析 Retry-After 的情况。
	defaultRetryAfter = time.Second
	// maxRetryAfter 是 Retry-After 的上限；更大的值按上限处理，不会溢出成负数。
	maxRetryAfter = time.Duration(math.MaxInt64)

	maxBodyBytes = 8 << 20
)

// 通过可替换的函数指针，让测试能记录等待时长而不真正 sleep。
var (
	sleepFunc = sleepCtx
	nowFunc   = time.Now
)

// RetryPolicy 限定 429 重试的次数与累计等待时长（两者任一耗尽即放弃）。
type RetryPolicy struct {
	MaxRetries int
	MaxWait    time.Duration
}

// DiscoverOptions 是 discover 查询的固定过滤条件。
type DiscoverOptions struct {
	SortBy               string
	CertificationCountry string
	CertificationLTE     string
	MaxPages             int
}

// Config 是构造 Client 所需的全部输入；凭据与 base URL 显式传入，不读取任何全局状态。
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// RequestsPerSecond>0 时在客户端侧做平滑限速；0 表示只依赖服务端的 429。
	RequestsPerSecond float64

	Retry    RetryPolicy
	Discover DiscoverOptions

	// Countries 是可接受的分级国家，按偏好排序。
	Countries   []string
	RatingOrder string

	Logger logrus.FieldLogger
}

// Client 是单 goroutine 使用的目录 API 客户端。
type Client struct {
	base    *url.URL
	apiKey  string
	hc      *http.Client
	limiter *rate.Limiter

	retry       RetryPolicy
	discover    DiscoverOptions
	countries   []string
	ratingOrder string

	log logrus.FieldLogger
}

// NewClient 校验配置并补齐默认值。
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base_url 无效：%q", raw)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 20 * time.Second}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry.MaxRetries = DefaultMaxRetries
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	if retry.MaxWait <= 0 {
		retry.MaxWait = DefaultMaxWait
	}

	disc := cfg.Discover
	if disc.SortBy == "" {
		disc.SortBy = "popularity.desc"
	}
	if disc.MaxPages <= 0 || disc.MaxPages > DefaultMaxPages {
		disc.MaxPages = DefaultMaxPages
	}

	countries := normalizeCountries(cfg.Countries)
	if len(countries) == 0 {
		countries = []string{"US", "GB", "CA"}
	}

	order := strings.ToLower(strings.TrimSpace(cfg.RatingOrder))
	if order == "" {
		order = RatingOrderPreference
	}
	if order != RatingOrderPreference && order != RatingOrderAPI {
		return nil, fmt.Errorf("rating_order 只能是 %s 或 %s，实际是 %q", RatingOrderPreference, RatingOrderAPI, cfg.RatingOrder)
	}

	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Client{
		base:        base,
		apiKey:      key,
		hc:          hc,
		limiter:     limiter,
		retry:       retry,
		discover:    disc,
		countries:   countries,
		ratingOrder: order,
		log:         log,
	}, nil
}

// Request 以 GET 访问 endpoint（相对于 base URL，例如 "/discover/movie"）并返回 2xx 响应体。
//
// 429 时按 Retry-After 等待后重发同一请求，直到 RetryPolicy 耗尽（返回 *RateLimitError）。
// 其他非 2xx 返回 *HTTPStatusError；传输错误中的 URL 已去除凭据。
func (c *Client) Request(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	target := c.endpointURL(endpoint, params)
	log := c.log.WithField("endpoint", endpoint)

	var (
		retries int
		waited  time.Duration
	)
	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, redactErr(err)
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			return nil, redactErr(err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := parseRetryAfter(resp.Header, nowFunc())
			drainAndClose(resp.Body)

			// waited 不超过 MaxWait，这里用减法比较避免相加溢出。
			if retries >= c.retry.MaxRetries || wait > c.retry.MaxWait-waited {
				return nil, &RateLimitError{Endpoint: endpoint, Retries: retries, Waited: waited, RetryAfter: wait}
			}
			retries++
			waited += wait
			log.WithFields(logrus.Fields{
				"retry_after": wait.String(),
				"attempt":     retries,
			}).Warnf("触发限流，%s 后重试", wait)

			if err := sleepFunc(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: 读取响应失败：%w", endpoint, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPStatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: statusMessage(body)}
		}
		return body, nil
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	b, err := c.Request(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s: 解析 JSON 失败：%w", endpoint, err)
	}
	return nil
}

func (c *Client) endpointURL(endpoint string, params url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(endpoint, "/")
	u.RawPath = ""

	q := url.Values{}
	for k, vs := range params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// parseRetryAfter 解析 Retry-After（或 X-Retry-After）：整数/小数秒或 HTTP-date。
// 缺失或无法解析时返回 1 秒。
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		v = strings.TrimSpace(h.Get("X-Retry-After"))
	}
	if v == "" {
		return defaultRetryAfter
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return defaultRetryAfter
		}
		if n > int64(maxRetryAfter/time.Second) {
			return maxRetryAfter
		}
		return time.Duration(n) * time.Second
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
		ns := f * float64(time.Second)
		if ns >= float64(maxRetryAfter) {
			return maxRetryAfter
		}
		return time.Duration(ns)
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			return 0
		}
		return d
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			return 0
		}
		return d
	}
	return defaultRetryAfter
}

// statusMessage 提取 TMDb 错误响应中的 status_message。
func statusMessage(body []byte) string {
	var e struct {
		StatusMessage string `json:"status_message"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.StatusMessage
}

func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 64<<10))
	_ = rc.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func normalizeCountries(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
