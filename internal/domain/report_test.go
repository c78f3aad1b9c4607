package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		Out:        "/abs/movie_data.csv",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Years: []YearResult{
			{Year: 2021, Candidates: 3, Added: 2, Skipped: 1},
			{Year: 2019, Candidates: 2, Added: 1, Skipped: 0, Degraded: 1},
		},
	}

	r.Finalize()

	if r.Years[0].Year != 2019 || r.Years[1].Year != 2021 {
		t.Fatalf("years 排序不符合契约：%v", []int{r.Years[0].Year, r.Years[1].Year})
	}
	want := ReportSummary{Years: 2, Candidates: 5, Added: 3, Skipped: 1, Degraded: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	// time.Time 在 UTC 下应输出 'Z' 后缀。
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_EmptyYearsIsArray(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"years\":[]")) {
		t.Fatalf("years 应输出为 []：%s", string(b))
	}
}
