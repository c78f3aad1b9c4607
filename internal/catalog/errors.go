package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrMissingAPIKey 表示构造 Client 时没有提供凭据。
var ErrMissingAPIKey = errors.New("缺少 API key")

// HTTPStatusError 表示目录 API 返回了非 2xx（且非 429）的状态码。
type HTTPStatusError struct {
	Endpoint   string
	StatusCode int
	// Message 来自响应体的 status_message（若能解析）。
	Message string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Endpoint, e.StatusCode, msg)
}

// RateLimitError 表示 429 重试预算耗尽。
type RateLimitError struct {
	Endpoint string
	Retries  int
	Waited   time.Duration
	// RetryAfter 是最后一次 429 响应要求的等待时长。
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: 限流重试已耗尽（retries=%d waited=%s last_retry_after=%s）",
		e.Endpoint, e.Retries, e.Waited, e.RetryAfter)
}

// IsRateLimited 判断 err 是否为限流预算耗尽。
func IsRateLimited(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// IsNotFound 判断 err 是否为 HTTP 404（例如影片已被删除）。
func IsNotFound(err error) bool {
	var e *HTTPStatusError
	return errors.As(err, &e) && e.StatusCode == 404
}

// redactErr 把 *url.Error 中携带的 api_key 抹掉，避免凭据进入日志。
func redactErr(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	cp := *ue
	cp.URL = redactURL(ue.URL)
	return &cp
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<redacted>"
	}
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
