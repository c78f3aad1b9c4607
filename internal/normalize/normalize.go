// Package normalize 把详情、credits 与分级拼装为一行扁平的导出记录。
package normalize

import (
	"fmt"
	"strings"

	"github.com/John-Robertt/movieharvest/internal/domain"
	"github.com/John-Robertt/movieharvest/internal/textfix"
)

// Skip 表示影片被业务规则排除（不是错误）。
type Skip struct {
	Reason  string
	Title   string
	Runtime int
}

func (s *Skip) String() string {
	return fmt.Sprintf("Skipping %s - Duration: %d minutes", s.Title, s.Runtime)
}

// Excluded 判断影片是否因时长过短被排除；runtime 缺失时保留。
// 单独暴露出来，调用方可以在查询分级之前就跳过。
func Excluded(d domain.MovieDetail, p domain.Profile) *Skip {
	if d.Runtime == nil || p.MinRuntime <= 0 || *d.Runtime >= p.MinRuntime {
		return nil
	}
	title := ""
	if d.Title != nil {
		title = *d.Title
	}
	return &Skip{Reason: domain.SkipReasonRuntimeBelowFloor, Title: title, Runtime: *d.Runtime}
}

// Normalize 生成导出记录；被排除时返回零值记录与非 nil 的 Skip。
//
// movieID 来自 discover 摘要（详情请求失败时仍能定位到影片）。
func Normalize(movieID int, d domain.MovieDetail, rating *string, p domain.Profile) (domain.MovieRecord, *Skip) {
	if s := Excluded(d, p); s != nil {
		return domain.MovieRecord{}, s
	}

	fix := func(s *string) *string { return s }
	fixList := func(s string) string { return s }
	if p.RepairText {
		fix = textfix.RepairPtr
		fixList = textfix.Repair
	}

	return domain.MovieRecord{
		Title:               fix(d.Title),
		Year:                Year(d.ReleaseDate),
		Director:            fix(d.Credits.Director()),
		Producer:            fix(d.Credits.Producer()),
		Genres:              fixList(JoinNames(d.Genres)),
		Summary:             fix(d.Overview),
		Duration:            d.Runtime,
		Budget:              d.Budget,
		Revenue:             d.Revenue,
		Ratings:             d.VoteAverage,
		VoteCount:           d.VoteCount,
		Popularity:          d.Popularity,
		ContentRating:       rating,
		OriginalLanguage:    d.OriginalLanguage,
		ProductionCompanies: fixList(JoinNames(d.ProductionCompanies)),
		ProductionCountries: fixList(JoinNames(d.ProductionCountries)),
		SpokenLanguages:     fixList(JoinNames(d.SpokenLanguages)),
		Tagline:             fix(d.Tagline),
		Adult:               d.Adult,
		MovieID:             movieID,
	}, nil
}

// Year 取发行日期第一个 "-" 之前的部分；缺失时为空串。
func Year(releaseDate *string) string {
	if releaseDate == nil {
		return ""
	}
	y, _, _ := strings.Cut(*releaseDate, "-")
	return y
}

// JoinNames 按接口顺序以 ", " 拼接 name；列表缺失或为空时为空串。
func JoinNames(xs []domain.Named) string {
	if len(xs) == 0 {
		return ""
	}
	names := make([]string, 0, len(xs))
	for _, x := range xs {
		names = append(names, x.Name)
	}
	return strings.Join(names, ", ")
}
