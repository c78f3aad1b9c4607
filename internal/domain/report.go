package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusAdded   = "added"
	StatusSkipped = "skipped"
)

const (
	ErrCodeConfigNotFound       = "config_not_found"
	ErrCodeConfigInvalid        = "config_invalid"
	ErrCodeCredentialNotFound   = "credential_not_found"
	ErrCodeWriteFailed          = "write_failed"
	ErrCodeInterrupted          = "interrupted"
	SkipReasonRuntimeBelowFloor = "runtime_below_floor"
)

// RunReport 是对外稳定输出（stdout JSON）的结构。
type RunReport struct {
	RunID   string `json:"run_id"`
	Profile string `json:"profile"`
	Out     string `json:"out"`

	FromYear int `json:"from_year"`
	ToYear   int `json:"to_year"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// ErrorCode/ErrorMsg 只在整次运行失败（配置错误、写出失败、被中断）时非空。
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	Summary ReportSummary `json:"summary"`
	Years   []YearResult  `json:"years"`
}

type ReportSummary struct {
	Years      int `json:"years"`
	Candidates int `json:"candidates"`
	Added      int `json:"added"`
	Skipped    int `json:"skipped"`
	// Degraded 统计详情请求失败、以空字段落盘的影片数。
	Degraded int `json:"degraded"`
}

type YearResult struct {
	Year       int           `json:"year"`
	Candidates int           `json:"candidates"`
	Added      int           `json:"added"`
	Skipped    int           `json:"skipped"`
	Degraded   int           `json:"degraded"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// ItemResult 是单部影片的处理结果（只用于进度事件，不进入 report）。
type ItemResult struct {
	MovieID int
	Title   string
	Runtime *int
	Status  string
	Reason  string
	// Degraded 表示详情请求失败（字段全部缺失但仍保留一行）。
	Degraded bool
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) years 按年份升序稳定排序
// 3) summary 由 years 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Years == nil {
		r.Years = []YearResult{}
	}
	sort.SliceStable(r.Years, func(i, j int) bool {
		return r.Years[i].Year < r.Years[j].Year
	})

	s := ReportSummary{Years: len(r.Years)}
	for _, y := range r.Years {
		s.Candidates += y.Candidates
		s.Added += y.Added
		s.Skipped += y.Skipped
		s.Degraded += y.Degraded
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
