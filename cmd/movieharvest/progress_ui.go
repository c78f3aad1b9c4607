package main

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/movieharvest/internal/app/run"
	"github.com/John-Robertt/movieharvest/internal/config"
	"github.com/John-Robertt/movieharvest/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的逐行进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约。
// 单部影片的详情请求可能因 429 长时间等待，keepalive 会定期补一行进度。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	year    int
	total   int
	done    int
	added   int
	skipped int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 10 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	fmt.Fprintf(p.w, "[%s] movieharvest run\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  years: %d..%d (%d)\n", eff.FromYear, eff.ToYear, len(eff.Years()))
	fmt.Fprintf(p.w, "  profile: %s (columns=%d, min_runtime=%d, text_repair=%s)\n",
		eff.Profile.Name, len(eff.Profile.Columns), eff.Profile.MinRuntime, onOff(eff.Profile.RepairText),
	)
	fmt.Fprintf(p.w, "  rating: %s (%s)\n", strings.Join(eff.Profile.Countries, " > "), eff.RatingOrder)
	fmt.Fprintf(p.w, "  base_url: %s\n", truncate(eff.BaseURL, 120))
	fmt.Fprintf(p.w, "  credential: %s\n", eff.CredentialSource)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  year_delay: %s\n", eff.YearDelay)
	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  out: %s\n", eff.Out)
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "discover":
		p.year = intField(fields, "year")
		p.total = intField(fields, "candidates")
		p.done = 0
		fmt.Fprintf(p.w, "Fetching movies from %d... [%d/%d] candidates=%d (%s)\n",
			p.year, intField(fields, "index"), intField(fields, "years"), p.total, formatShortDuration(dur),
		)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "year":
		fmt.Fprintf(p.w, "%d 完成: candidates=%d added=%d skipped=%d degraded=%d (%s)\n\n",
			intField(fields, "year"),
			intField(fields, "candidates"),
			intField(fields, "added"),
			intField(fields, "skipped"),
			intField(fields, "degraded"),
			formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total, year int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.year = year
	p.done = idx
	p.total = total
	switch res.Status {
	case domain.StatusAdded:
		p.added++
	case domain.StatusSkipped:
		p.skipped++
	}

	note := ""
	if res.Degraded {
		note = " (详情缺失，字段留空)"
	}
	fmt.Fprintf(p.w, "[%d/%d] %s%s (%s)\n", idx, total, itemLine(res), note, formatShortDuration(dur))

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnProgress(done, total, added, skipped int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.printProgressLocked(done, total, added, skipped, elapsed)
}

// Stop 停止 keepalive；可重复调用。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) printProgressLocked(done, total, added, skipped int, elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: year=%d done=%d/%d added=%d skipped=%d elapsed=%s\n",
		p.year, done, total, added, skipped, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 10 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if time.Since(p.lastPrinted) > threshold {
					p.printProgressLocked(p.done, p.total, p.added, p.skipped, time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

// itemLine 输出与逐部影片进度一致的单行描述。
func itemLine(res domain.ItemResult) string {
	verb := "Adding"
	if res.Status == domain.StatusSkipped {
		verb = "Skipping"
	}
	return fmt.Sprintf("%s %s - Duration: %s minutes", verb, truncate(res.Title, 120), formatRuntime(res.Runtime))
}

func formatRuntime(v *int) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(*v)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
