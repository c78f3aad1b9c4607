package domain

import (
	"strconv"
)

// 导出表的列名（表头文本保持稳定，下游分析脚本依赖这些名字）。
const (
	ColTitle               = "Title"
	ColYear                = "Year"
	ColDirector            = "Director"
	ColProducer            = "Producer"
	ColGenres              = "Genres"
	ColSummary             = "Summary"
	ColDuration            = "Duration"
	ColBudget              = "Budget"
	ColRevenue             = "Revenue"
	ColRatings             = "Ratings"
	ColVoteCount           = "Vote Count"
	ColPopularity          = "Popularity"
	ColContentRating       = "Content Rating"
	ColOriginalLanguage    = "Original Language"
	ColProductionCompanies = "Production Companies"
	ColProductionCountries = "Production Countries"
	ColSpokenLanguages     = "Spoken Languages"
	ColTagline             = "Tagline"
	ColAdult               = "Adult"
	ColMovieID             = "Movie ID"
)

// FullColumns 是 full profile 的列顺序。
var FullColumns = []string{
	ColTitle, ColYear, ColDirector, ColProducer, ColGenres, ColSummary,
	ColDuration, ColBudget, ColRevenue, ColRatings, ColVoteCount, ColPopularity,
	ColContentRating, ColOriginalLanguage, ColProductionCompanies,
	ColProductionCountries, ColSpokenLanguages, ColTagline, ColAdult, ColMovieID,
}

// BasicColumns 是 basic profile 的列顺序。
var BasicColumns = []string{
	ColTitle, ColYear, ColDirector, ColProducer, ColGenres, ColSummary,
	ColDuration, ColBudget, ColRevenue, ColRatings, ColContentRating, ColMovieID,
}

// MovieRecord 是一行导出数据。
//
// 可选字段为 nil 表示“缺失”，写出时为空单元格；列表字段在源数据缺失时为空串。
type MovieRecord struct {
	Title               *string
	Year                string
	Director            *string
	Producer            *string
	Genres              string
	Summary             *string
	Duration            *int
	Budget              *int64
	Revenue             *int64
	Ratings             *float64
	VoteCount           *int
	Popularity          *float64
	ContentRating       *string
	OriginalLanguage    *string
	ProductionCompanies string
	ProductionCountries string
	SpokenLanguages     string
	Tagline             *string
	Adult               *bool
	MovieID             int
}

// Values 按 columns 的顺序渲染单元格；未知列渲染为空串。
func (r MovieRecord) Values(columns []string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = r.value(c)
	}
	return out
}

func (r MovieRecord) value(col string) string {
	switch col {
	case ColTitle:
		return str(r.Title)
	case ColYear:
		return r.Year
	case ColDirector:
		return str(r.Director)
	case ColProducer:
		return str(r.Producer)
	case ColGenres:
		return r.Genres
	case ColSummary:
		return str(r.Summary)
	case ColDuration:
		if r.Duration == nil {
			return ""
		}
		return strconv.Itoa(*r.Duration)
	case ColBudget:
		return int64Str(r.Budget)
	case ColRevenue:
		return int64Str(r.Revenue)
	case ColRatings:
		return floatStr(r.Ratings)
	case ColVoteCount:
		if r.VoteCount == nil {
			return ""
		}
		return strconv.Itoa(*r.VoteCount)
	case ColPopularity:
		return floatStr(r.Popularity)
	case ColContentRating:
		return str(r.ContentRating)
	case ColOriginalLanguage:
		return str(r.OriginalLanguage)
	case ColProductionCompanies:
		return r.ProductionCompanies
	case ColProductionCountries:
		return r.ProductionCountries
	case ColSpokenLanguages:
		return r.SpokenLanguages
	case ColTagline:
		return str(r.Tagline)
	case ColAdult:
		if r.Adult == nil {
			return ""
		}
		if *r.Adult {
			return "True"
		}
		return "False"
	case ColMovieID:
		return strconv.Itoa(r.MovieID)
	default:
		return ""
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func int64Str(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

// floatStr 保证整数值的浮点数也带小数位（7 -> "7.0"），与历史导出保持一致。
func floatStr(p *float64) string {
	if p == nil {
		return ""
	}
	s := strconv.FormatFloat(*p, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s
		}
	}
	return s + ".0"
}
