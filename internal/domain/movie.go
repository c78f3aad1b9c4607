package domain

// MovieSummary 是 discover 列表中的一条候选（只用到 id，其余字段仅用于日志）。
type MovieSummary struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Popularity  float64 `json:"popularity"`
	ReleaseDate string  `json:"release_date"`
}

// DiscoverPage 对应 /discover/movie 的单页响应。
// TotalPages 为指针：缺失时按“没有更多页”处理。
type DiscoverPage struct {
	Page       int            `json:"page"`
	Results    []MovieSummary `json:"results"`
	TotalPages *int           `json:"total_pages"`
}

// MovieDetail 对应 /movie/{id}?append_to_response=credits。
//
// 标量字段全部使用指针，以便区分“缺失”与零值；请求失败时返回零值 MovieDetail（全部缺失）。
type MovieDetail struct {
	ID                  *int     `json:"id"`
	Title               *string  `json:"title"`
	Overview            *string  `json:"overview"`
	Runtime             *int     `json:"runtime"`
	Budget              *int64   `json:"budget"`
	Revenue             *int64   `json:"revenue"`
	VoteAverage         *float64 `json:"vote_average"`
	VoteCount           *int     `json:"vote_count"`
	Popularity          *float64 `json:"popularity"`
	OriginalLanguage    *string  `json:"original_language"`
	ReleaseDate         *string  `json:"release_date"`
	Genres              []Named  `json:"genres"`
	ProductionCompanies []Named  `json:"production_companies"`
	ProductionCountries []Named  `json:"production_countries"`
	SpokenLanguages     []Named  `json:"spoken_languages"`
	Tagline             *string  `json:"tagline"`
	Adult               *bool    `json:"adult"`
	Credits             *Credits `json:"credits"`
}

// Empty 表示详情请求失败或响应为空对象。
func (d MovieDetail) Empty() bool {
	return d.ID == nil && d.Title == nil && d.Runtime == nil && d.Credits == nil
}

// Named 是 genres / companies / countries / languages 列表元素的共同形态。
type Named struct {
	Name string `json:"name"`
}

type Credits struct {
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

type CrewMember struct {
	Name       string `json:"name"`
	Job        string `json:"job"`
	Department string `json:"department"`
}

// ReleaseDates 对应 /movie/{id}/release_dates。
type ReleaseDates struct {
	ID      int               `json:"id"`
	Results []CountryReleases `json:"results"`
}

type CountryReleases struct {
	Country      string        `json:"iso_3166_1"`
	ReleaseDates []ReleaseDate `json:"release_dates"`
}

type ReleaseDate struct {
	Certification string `json:"certification"`
	Language      string `json:"iso_639_1"`
	Note          string `json:"note"`
	ReleaseDate   string `json:"release_date"`
	Type          int    `json:"type"`
}

// Director 返回第一个 job 恰为 "Director" 的 crew 成员；无 credits/crew 或无匹配时为 nil。
func (c *Credits) Director() *string { return c.FirstByJob("Director") }

// Producer 返回第一个 job 恰为 "Producer" 的 crew 成员。
func (c *Credits) Producer() *string { return c.FirstByJob("Producer") }

// FirstByJob 按 crew 原始顺序查找 job 完全相等（区分大小写）的第一个成员。
func (c *Credits) FirstByJob(job string) *string {
	if c == nil {
		return nil
	}
	for _, m := range c.Crew {
		if m.Job == job {
			name := m.Name
			return &name
		}
	}
	return nil
}
