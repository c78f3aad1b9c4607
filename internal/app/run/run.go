package run

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/movieharvest/internal/config"
	"github.com/John-Robertt/movieharvest/internal/domain"
	"github.com/John-Robertt/movieharvest/internal/normalize"
)

// Catalog 是编排层依赖的目录能力；*catalog.Client 实现了它，测试可替换。
// 三个方法都不返回错误：失败已在实现内部记录并降级为空结果。
type Catalog interface {
	Discover(ctx context.Context, year int) []domain.MovieSummary
	FetchDetail(ctx context.Context, id int) domain.MovieDetail
	ResolveRating(ctx context.Context, id int) *string
}

// 通过可替换的函数指针，让测试不必真的等待年份间隔。
var sleepFunc = func(ctx context.Context, d time.Duration) error {
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

// Execute 执行一次完整采集，返回对外稳定的 RunReport 与按采集顺序排列的记录。
func Execute(ctx context.Context, eff config.EffectiveConfig, cat Catalog) (domain.RunReport, []domain.MovieRecord) {
	return ExecuteWithObserver(ctx, eff, cat, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
//
// 年份升序、影片按发现顺序严格串行处理：详情 -> 时长过滤 -> 分级 -> 规范化。
// 被时长过滤排除的影片不会请求分级。相邻年份之间固定停顿 eff.YearDelay。
// ctx 取消后在影片边界停止，已采集的记录照常返回。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, cat Catalog, obs Observer) (domain.RunReport, []domain.MovieRecord) {
	started := time.Now()

	if obs != nil {
		obs.OnStart(eff)
	}

	years := eff.Years()
	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Profile:   eff.Profile.Name,
		Out:       eff.Out,
		FromYear:  eff.FromYear,
		ToYear:    eff.ToYear,
		StartedAt: started,
		Years:     make([]domain.YearResult, 0, len(years)),
	}
	records := make([]domain.MovieRecord, 0, 256)

	for i, year := range years {
		if ctx.Err() != nil {
			break
		}

		yr, recs := executeYear(ctx, eff, cat, obs, year, i+1, len(years))
		records = append(records, recs...)
		rr.Years = append(rr.Years, yr)

		if obs != nil {
			obs.OnPhaseDone("year", map[string]any{
				"year":       year,
				"candidates": yr.Candidates,
				"added":      yr.Added,
				"skipped":    yr.Skipped,
				"degraded":   yr.Degraded,
			}, yr.Elapsed)
		}

		if i < len(years)-1 {
			if err := sleepFunc(ctx, eff.YearDelay); err != nil {
				break
			}
		}
	}

	if err := ctx.Err(); err != nil {
		rr.ErrorCode = domain.ErrCodeInterrupted
		rr.ErrorMsg = fmt.Sprintf("运行被中断：%v；已采集 %d 条记录", err, len(records))
	}

	rr.FinishedAt = time.Now()
	rr.Finalize()
	return rr, records
}

func executeYear(ctx context.Context, eff config.EffectiveConfig, cat Catalog, obs Observer, year, idx, total int) (domain.YearResult, []domain.MovieRecord) {
	yStarted := time.Now()
	yr := domain.YearResult{Year: year}

	movies := cat.Discover(ctx, year)
	yr.Candidates = len(movies)
	if obs != nil {
		obs.OnPhaseDone("discover", map[string]any{
			"year":       year,
			"index":      idx,
			"years":      total,
			"candidates": len(movies),
		}, time.Since(yStarted))
	}

	recs := make([]domain.MovieRecord, 0, len(movies))
	for j, m := range movies {
		if ctx.Err() != nil {
			break
		}
		itemStarted := time.Now()

		detail := cat.FetchDetail(ctx, m.ID)
		if ctx.Err() != nil {
			// 中断导致的空详情不落盘。
			break
		}
		res := domain.ItemResult{
			MovieID:  m.ID,
			Title:    displayTitle(detail, m),
			Runtime:  detail.Runtime,
			Degraded: detail.Empty(),
		}

		if skip := normalize.Excluded(detail, eff.Profile); skip != nil {
			res.Status = domain.StatusSkipped
			res.Reason = skip.Reason
			yr.Skipped++
		} else {
			rating := cat.ResolveRating(ctx, m.ID)
			if ctx.Err() != nil {
				break
			}
			rec, _ := normalize.Normalize(m.ID, detail, rating, eff.Profile)
			recs = append(recs, rec)
			res.Status = domain.StatusAdded
			yr.Added++
			if res.Degraded {
				yr.Degraded++
			}
		}

		if obs != nil {
			obs.OnItemDone(j+1, len(movies), year, res, time.Since(itemStarted))
		}
	}

	yr.Elapsed = time.Since(yStarted)
	return yr, recs
}

func displayTitle(d domain.MovieDetail, m domain.MovieSummary) string {
	if d.Title != nil {
		return *d.Title
	}
	return m.Title
}
