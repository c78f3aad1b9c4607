package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/movieharvest/internal/app/run"
	"github.com/John-Robertt/movieharvest/internal/catalog"
	"github.com/John-Robertt/movieharvest/internal/config"
	"github.com/John-Robertt/movieharvest/internal/domain"
	"github.com/John-Robertt/movieharvest/internal/infra/httpx"
	"github.com/John-Robertt/movieharvest/internal/infra/logx"
	"github.com/John-Robertt/movieharvest/internal/sink/csvsink"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		ConfigPath: ra.ConfigPath,
		From:       ra.From,
		FromSet:    ra.FromSet,
		To:         ra.To,
		ToSet:      ra.ToSet,
		Out:        ra.Out,
		OutSet:     ra.OutSet,
		Profile:    ra.Profile,
		ProfileSet: ra.ProfileSet,
	})
	if err != nil {
		emitReport(reportForError(ra, config.Code(err), err))
		return 1
	}

	logger, closer, err := logx.New(logx.Options{Level: eff.LogLevel, File: eff.LogFile})
	if err != nil {
		emitReport(reportForError(ra, domain.ErrCodeConfigInvalid, err))
		return 1
	}
	defer closer.Close()

	hc, err := httpx.NewClient(httpx.Options{ProxyURL: eff.ProxyURL, Timeout: eff.RequestTimeout})
	if err != nil {
		emitReport(reportForError(ra, domain.ErrCodeConfigInvalid, fmt.Errorf("proxy.url 无效：%w", err)))
		return 1
	}

	cat, err := catalog.NewClient(catalog.Config{
		BaseURL:           eff.BaseURL,
		APIKey:            eff.APIKey,
		HTTPClient:        hc,
		RequestsPerSecond: eff.RequestsPerSecond,
		Retry: catalog.RetryPolicy{
			MaxRetries: retryBudget(eff.MaxRateLimitRetries),
			MaxWait:    eff.MaxRateLimitWait,
		},
		Discover: catalog.DiscoverOptions{
			CertificationCountry: eff.CertificationCountry,
			CertificationLTE:     eff.CertificationLTE,
			MaxPages:             eff.MaxPages,
		},
		Countries:   eff.Profile.Countries,
		RatingOrder: eff.RatingOrder,
		Logger:      logger,
	})
	if err != nil {
		emitReport(reportForError(ra, domain.ErrCodeConfigInvalid, err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		ui := newProgressUI(progressW)
		defer ui.Stop()
		obs = ui
	} else {
		obs = newLogObserver(logger)
	}

	rr, records := run.ExecuteWithObserver(ctx, eff, cat, obs)

	// 中断时也把已采集的部分写出。
	if err := csvsink.Write(eff.Out, eff.Profile.Columns, records); err != nil {
		logger.WithError(err).WithField("out", eff.Out).Error("写出 CSV 失败")
		rr.ErrorCode = domain.ErrCodeWriteFailed
		rr.ErrorMsg = err.Error()
		emitReport(rr)
		return 1
	}

	emitReport(rr)
	emitLocation(progressW, eff.Out, len(records))

	if rr.ErrorCode == domain.ErrCodeInterrupted {
		return 130
	}
	return 0
}

// retryBudget 把配置里的 0（不重试）换成 catalog 的负数约定；catalog 中 0 表示默认值。
func retryBudget(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

type runArgs struct {
	ConfigPath string

	From    int
	FromSet bool

	To    int
	ToSet bool

	Out    string
	OutSet bool

	Profile    string
	ProfileSet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			return runArgs{}, fmt.Errorf("多余的参数 %q", a)
		}

		name, value, hasValue := strings.Cut(a, "=")
		switch name {
		case "--from", "--to", "--out", "--profile", "--config":
		default:
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("%s 需要一个值", name)
			}
			i++
			value = args[i]
		}

		switch name {
		case "--from":
			y, err := parseYear(name, value)
			if err != nil {
				return runArgs{}, err
			}
			ra.From, ra.FromSet = y, true
		case "--to":
			y, err := parseYear(name, value)
			if err != nil {
				return runArgs{}, err
			}
			ra.To, ra.ToSet = y, true
		case "--out":
			if strings.TrimSpace(value) == "" {
				return runArgs{}, fmt.Errorf("--out 不能为空")
			}
			ra.Out, ra.OutSet = value, true
		case "--profile":
			switch strings.ToLower(value) {
			case domain.ProfileFullName, domain.ProfileBasicName:
			default:
				return runArgs{}, fmt.Errorf("--profile 只能是 full 或 basic，实际是 %q", value)
			}
			ra.Profile, ra.ProfileSet = value, true
		case "--config":
			if strings.TrimSpace(value) == "" {
				return runArgs{}, fmt.Errorf("--config 不能为空")
			}
			ra.ConfigPath = value
		}
	}

	if ra.FromSet && ra.ToSet && ra.From > ra.To {
		return runArgs{}, fmt.Errorf("--from(%d) 不能大于 --to(%d)", ra.From, ra.To)
	}
	return ra, nil
}

func parseYear(name, v string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || y < 1800 || y > 9999 {
		return 0, fmt.Errorf("%s 需要四位年份，实际是 %q", name, v)
	}
	return y, nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  movieharvest run [--from YEAR] [--to YEAR] [--out PATH] [--profile full|basic] [--config FILE]

命令：
  run    按年份采集影片元数据并导出 CSV

凭据：环境变量 API_KEY，或当前目录 .env 中的 API_KEY。
使用 "movieharvest run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  movieharvest run [--from YEAR] [--to YEAR] [--out PATH] [--profile full|basic] [--config FILE]

参数：
  --from      起始年份（含；默认 1970）
  --to        结束年份（含；默认 2024）
  --out       输出 CSV 路径（默认 movie_data.csv；已存在则覆盖）
  --profile   full：全部字段 + US/GB/CA 分级 + 文本修复；basic：精简字段 + 仅 US 分级
  --config    配置文件路径（默认尝试 ./movieharvest.json）
  -h, --help  显示帮助

环境变量：
  API_KEY              目录 API 凭据（优先于 .env 与配置文件）
  MOVIEHARVEST_<KEY>   覆盖配置文件中的同名键，例如 MOVIEHARVEST_YEAR_DELAY=2s
`)
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：years=%d candidates=%d added=%d skipped=%d degraded=%d\n",
			rr.Summary.Years, rr.Summary.Candidates, rr.Summary.Added, rr.Summary.Skipped, rr.Summary.Degraded,
		)
		if rr.ErrorCode != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(os.Stderr, "完成：years=%d candidates=%d added=%d skipped=%d degraded=%d\n",
		rr.Summary.Years, rr.Summary.Candidates, rr.Summary.Added, rr.Summary.Skipped, rr.Summary.Degraded,
	)
	if rr.ErrorCode != "" {
		fmt.Fprintf(os.Stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
	}
}

func reportForError(ra runArgs, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Out:        ra.Out,
		Profile:    ra.Profile,
		FromYear:   ra.From,
		ToYear:     ra.To,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return os.Stderr, false
}

func emitLocation(w io.Writer, out string, n int) {
	if w == nil {
		return
	}
	rel := out
	if cwd, err := os.Getwd(); err == nil {
		if r, err := filepath.Rel(cwd, out); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	fmt.Fprintf(w, "Data saved to %s (%d rows)\n", rel, n)
}

// logObserver 在非交互环境下把进度事件写成结构化日志。
type logObserver struct {
	log logrus.FieldLogger
}

var _ run.Observer = (*logObserver)(nil)

func newLogObserver(l logrus.FieldLogger) *logObserver { return &logObserver{log: l} }

func (o *logObserver) OnStart(eff config.EffectiveConfig) {
	o.log.WithFields(logrus.Fields{
		"from":       eff.FromYear,
		"to":         eff.ToYear,
		"profile":    eff.Profile.Name,
		"out":        eff.Out,
		"credential": eff.CredentialSource,
	}).Info("开始采集")
}

func (o *logObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	entry := o.log.WithFields(logrus.Fields(fields)).WithField("elapsed", formatShortDuration(dur))
	switch name {
	case "discover":
		entry.Infof("Fetching movies from %d...", intField(fields, "year"))
	case "year":
		entry.Info("年份完成")
	default:
		entry.Info(name)
	}
}

func (o *logObserver) OnItemDone(idx, total, year int, res domain.ItemResult, dur time.Duration) {
	entry := o.log.WithFields(logrus.Fields{
		"year":     year,
		"movie_id": res.MovieID,
		"progress": fmt.Sprintf("%d/%d", idx, total),
	})
	if res.Degraded {
		entry = entry.WithField("degraded", true)
	}
	entry.Info(itemLine(res))
}

func (o *logObserver) OnProgress(done, total, added, skipped int, elapsed time.Duration) {}
