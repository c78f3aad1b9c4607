package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/movieharvest/internal/domain"
)

const (
	// ErrCodeNotFound 表示 --config 指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeCredentialNotFound 表示环境变量、.env 与配置文件中都没有 API key。
	ErrCodeCredentialNotFound = "credential_not_found"
)

const (
	// FileName 是工作目录下自动发现的配置文件名。
	FileName = "movieharvest.json"
	// EnvPrefix 是配置覆盖用环境变量的前缀；嵌套键用双下划线，例如 MOVIEHARVEST_PROXY__URL。
	EnvPrefix = "MOVIEHARVEST_"
	// CredentialEnv 是凭据环境变量名（同时在 .env 中查找）。
	CredentialEnv = "API_KEY"
	DotEnvFile    = ".env"
)

const (
	DefaultFromYear             = 1970
	DefaultToYear               = 2024
	DefaultOut                  = "movie_data.csv"
	DefaultBaseURL              = "https://api.themoviedb.org/3"
	DefaultCertificationCountry = "US"
	DefaultCertificationLTE     = "R"
	DefaultRatingOrder          = "preference"
	DefaultYearDelay            = time.Second
	DefaultRequestTimeout       = 20 * time.Second
	DefaultMaxRateLimitRetries  = 20
	DefaultMaxRateLimitWait     = 15 * time.Minute
	DefaultMaxPages             = 500
	DefaultLogLevel             = "info"
)

const (
	CredentialFromEnv    = "env"
	CredentialFromDotEnv = ".env"
	CredentialFromConfig = "config"
)

// CLIArgs 保留“是否显式指定”的信息，保证 CLI 能覆盖配置中的任意值。
type CLIArgs struct {
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

// FileConfig 对应 movieharvest.json 的解析结构（环境变量覆盖后再解码）。
type FileConfig struct {
	From    int    `koanf:"from"`
	To      int    `koanf:"to"`
	Out     string `koanf:"out"`
	Profile string `koanf:"profile"`

	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`

	Countries            []string `koanf:"countries"`
	MinRuntime           *int     `koanf:"min_runtime"`
	RatingOrder          string   `koanf:"rating_order"`
	CertificationCountry *string  `koanf:"certification_country"`
	CertificationLTE     *string  `koanf:"certification_lte"`
	MaxPages             int      `koanf:"max_pages"`

	YearDelay           string  `koanf:"year_delay"`
	RequestTimeout      string  `koanf:"request_timeout"`
	RequestsPerSecond   float64 `koanf:"requests_per_second"`
	MaxRateLimitRetries *int    `koanf:"max_rate_limit_retries"`
	MaxRateLimitWait    string  `koanf:"max_rate_limit_wait"`

	Proxy *ProxyConfig `koanf:"proxy"`

	LogLevel string `koanf:"log_level"`
	LogFile  string `koanf:"log_file"`
}

type ProxyConfig struct {
	URL string `koanf:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 为空表示没有读取任何配置文件。
	ConfigPath string

	FromYear int
	ToYear   int
	Out      string
	Profile  domain.Profile

	BaseURL          string
	APIKey           string
	CredentialSource string

	RatingOrder          string
	CertificationCountry string
	CertificationLTE     string
	MaxPages             int

	YearDelay           time.Duration
	RequestTimeout      time.Duration
	RequestsPerSecond   float64
	MaxRateLimitRetries int
	MaxRateLimitWait    time.Duration

	ProxyURL string

	LogLevel string
	LogFile  string
}

// Years 返回升序的年份列表（闭区间）。
func (e EffectiveConfig) Years() []int {
	if e.ToYear < e.FromYear {
		return nil
	}
	out := make([]int, 0, e.ToYear-e.FromYear+1)
	for y := e.FromYear; y <= e.ToYear; y++ {
		out = append(out, y)
	}
	return out
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeCredentialNotFound:
		return fmt.Sprintf("%s：未找到 API key；请设置环境变量 %s，或写入 %q", e.Code, CredentialEnv, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：该文件必须存在
// 2) 否则尝试 <cwd>/movieharvest.json（可选）
//
// 覆盖优先级（固定）：CLI > MOVIEHARVEST_* 环境变量 > 配置文件 > 内置默认值。
// 凭据优先级：环境变量 API_KEY > <cwd>/.env 中的 API_KEY > 配置中的 api_key。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	eff, err := merge(cwdAbs, cli, fc, cfgPath)
	if err != nil {
		return EffectiveConfig{}, err
	}

	key, source, err := resolveCredential(cwdAbs, fc)
	if err != nil {
		return EffectiveConfig{}, err
	}
	eff.APIKey = key
	eff.CredentialSource = source
	return eff, nil
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		p := cfgPath
		if p == "" {
			p = "<defaults>"
		}
		return &Error{Code: ErrCodeInvalid, Path: p, Err: fmt.Errorf(format, args...)}
	}

	// from/to：CLI > config > 默认
	from := DefaultFromYear
	if cli.FromSet {
		from = cli.From
	} else if fc.From != 0 {
		from = fc.From
	}
	to := DefaultToYear
	if cli.ToSet {
		to = cli.To
	} else if fc.To != 0 {
		to = fc.To
	}
	if from < 1800 || to > 9999 {
		return EffectiveConfig{}, invalid("年份范围越界：%d..%d", from, to)
	}
	if from > to {
		return EffectiveConfig{}, invalid("from(%d) 不能大于 to(%d)", from, to)
	}

	out := DefaultOut
	if cli.OutSet {
		out = cli.Out
	} else if strings.TrimSpace(fc.Out) != "" {
		out = fc.Out
	}
	if strings.TrimSpace(out) == "" {
		return EffectiveConfig{}, invalid("out 不能为空")
	}
	out = absCleanFrom(cwdAbs, out)

	profileName := fc.Profile
	if cli.ProfileSet {
		profileName = cli.Profile
	}
	profile, err := domain.LookupProfile(profileName)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}
	if len(fc.Countries) > 0 {
		profile.Countries = normalizeCountries(fc.Countries)
	}
	if fc.MinRuntime != nil {
		if *fc.MinRuntime < 0 {
			return EffectiveConfig{}, invalid("min_runtime 不能为负数：%d", *fc.MinRuntime)
		}
		profile.MinRuntime = *fc.MinRuntime
	}

	baseURL := strings.TrimSpace(fc.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return EffectiveConfig{}, invalid("base_url 无效：%q", baseURL)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return EffectiveConfig{}, invalid("base_url 必须是 http/https：%q", baseURL)
	}

	ratingOrder := strings.ToLower(strings.TrimSpace(fc.RatingOrder))
	if ratingOrder == "" {
		ratingOrder = DefaultRatingOrder
	}
	if ratingOrder != "preference" && ratingOrder != "api" {
		return EffectiveConfig{}, invalid("rating_order 只能是 preference 或 api，实际是 %q", fc.RatingOrder)
	}

	certCountry := DefaultCertificationCountry
	if fc.CertificationCountry != nil {
		certCountry = strings.TrimSpace(*fc.CertificationCountry)
	}
	certLTE := DefaultCertificationLTE
	if fc.CertificationLTE != nil {
		certLTE = strings.TrimSpace(*fc.CertificationLTE)
	}

	maxPages := fc.MaxPages
	if maxPages == 0 {
		maxPages = DefaultMaxPages
	}
	// 接口只允许访问前 500 页；超出截断。
	if maxPages < 1 || maxPages > DefaultMaxPages {
		maxPages = DefaultMaxPages
	}

	yearDelay, err := parseDuration("year_delay", fc.YearDelay, DefaultYearDelay)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}
	timeout, err := parseDuration("request_timeout", fc.RequestTimeout, DefaultRequestTimeout)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}
	if timeout == 0 {
		return EffectiveConfig{}, invalid("request_timeout 必须大于 0")
	}
	maxWait, err := parseDuration("max_rate_limit_wait", fc.MaxRateLimitWait, DefaultMaxRateLimitWait)
	if err != nil {
		return EffectiveConfig{}, invalid("%v", err)
	}

	if fc.RequestsPerSecond < 0 {
		return EffectiveConfig{}, invalid("requests_per_second 不能为负数")
	}
	maxRetries := DefaultMaxRateLimitRetries
	if fc.MaxRateLimitRetries != nil {
		maxRetries = *fc.MaxRateLimitRetries
	}
	if maxRetries < 0 {
		return EffectiveConfig{}, invalid("max_rate_limit_retries 不能为负数")
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%w", err)
		}
	}

	logLevel := strings.ToLower(strings.TrimSpace(fc.LogLevel))
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	if _, err := logrus.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, invalid("log_level 无效：%q", fc.LogLevel)
	}
	logFile := ""
	if strings.TrimSpace(fc.LogFile) != "" {
		logFile = absCleanFrom(cwdAbs, fc.LogFile)
	}

	return EffectiveConfig{
		ConfigPath:           cfgPath,
		FromYear:             from,
		ToYear:               to,
		Out:                  out,
		Profile:              profile,
		BaseURL:              baseURL,
		RatingOrder:          ratingOrder,
		CertificationCountry: certCountry,
		CertificationLTE:     certLTE,
		MaxPages:             maxPages,
		YearDelay:            yearDelay,
		RequestTimeout:       timeout,
		RequestsPerSecond:    fc.RequestsPerSecond,
		MaxRateLimitRetries:  maxRetries,
		MaxRateLimitWait:     maxWait,
		ProxyURL:             proxyURL,
		LogLevel:             logLevel,
		LogFile:              logFile,
	}, nil
}

// resolveCredential 按优先级查找 API key；.env 不存在不算错误。
func resolveCredential(cwdAbs string, fc FileConfig) (key, source string, err error) {
	if v := strings.TrimSpace(os.Getenv(CredentialEnv)); v != "" {
		return v, CredentialFromEnv, nil
	}

	dotEnv := filepath.Join(cwdAbs, DotEnvFile)
	vals, err := godotenv.Read(dotEnv)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", "", &Error{Code: ErrCodeInvalid, Path: dotEnv, Err: err}
	}
	if v := strings.TrimSpace(vals[CredentialEnv]); v != "" {
		return v, CredentialFromDotEnv, nil
	}

	if v := strings.TrimSpace(fc.APIKey); v != "" {
		return v, CredentialFromConfig, nil
	}
	return "", "", &Error{Code: ErrCodeCredentialNotFound, Path: dotEnv}
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 无效：%q", name, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s 不能为负数：%q", name, raw)
	}
	return d, nil
}

func normalizeCountries(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取 JSON 配置文件并叠加 MOVIEHARVEST_* 环境变量。
// 返回值 exists 表示该文件是否存在（不存在不算错误，环境变量仍然生效）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	k := koanf.New(".")

	if fi, statErr := os.Stat(path); statErr == nil {
		if fi.IsDir() {
			return FileConfig{}, true, fmt.Errorf("期望文件，实际是目录")
		}
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return FileConfig{}, true, err
		}
		exists = true
	} else if !os.IsNotExist(statErr) {
		return FileConfig{}, false, statErr
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return FileConfig{}, exists, err
	}
	if err := k.Unmarshal("", &fc); err != nil {
		return FileConfig{}, exists, err
	}
	return fc, exists, nil
}

// envKey 把 MOVIEHARVEST_PROXY__URL 映射为 proxy.url。
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
