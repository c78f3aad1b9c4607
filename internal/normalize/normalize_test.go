package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/movieharvest/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestExcluded_RuntimeFloor(t *testing.T) {
	p := domain.ProfileFull()
	cases := []struct {
		name    string
		runtime *int
		skip    bool
	}{
		{"below floor", ptr(59), true},
		{"zero", ptr(0), true},
		{"at floor", ptr(60), false},
		{"above floor", ptr(155), false},
		{"absent", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := domain.MovieDetail{Title: ptr("Short"), Runtime: tc.runtime}
			s := Excluded(d, p)
			assert.Equal(t, tc.skip, s != nil)

			_, ns := Normalize(1, d, nil, p)
			assert.Equal(t, tc.skip, ns != nil)
		})
	}
}

func TestSkip_String(t *testing.T) {
	s := Excluded(domain.MovieDetail{Title: ptr("Tiny"), Runtime: ptr(12)}, domain.ProfileFull())
	require.NotNil(t, s)
	assert.Equal(t, domain.SkipReasonRuntimeBelowFloor, s.Reason)
	assert.Equal(t, "Skipping Tiny - Duration: 12 minutes", s.String())
}

func TestNormalize_FullRecord(t *testing.T) {
	d := domain.MovieDetail{
		ID:          ptr(438631),
		Title:       ptr("Dune"),
		Overview:    ptr("A mythic and emotionally charged hero&#39;s journey."),
		Runtime:     ptr(155),
		Budget:      ptr(int64(165000000)),
		VoteAverage: ptr(7.8),
		ReleaseDate: ptr("2021-09-15"),
		Genres:      []domain.Named{{Name: "Science Fiction"}, {Name: "Adventure"}},
		ProductionCountries: []domain.Named{
			{Name: "United States of America"}, {Name: "Canada"},
		},
		Tagline: ptr("Beyond fear, destiny awaits."),
		Adult:   ptr(false),
		Credits: &domain.Credits{Crew: []domain.CrewMember{
			{Name: "Denis Villeneuve", Job: "Director"},
			{Name: "Mary Parent", Job: "Producer"},
		}},
	}

	rec, skip := Normalize(438631, d, ptr("PG-13"), domain.ProfileFull())
	require.Nil(t, skip)

	assert.Equal(t, "Dune", *rec.Title)
	assert.Equal(t, "2021", rec.Year)
	assert.Equal(t, "Denis Villeneuve", *rec.Director)
	assert.Equal(t, "Mary Parent", *rec.Producer)
	assert.Equal(t, "Science Fiction, Adventure", rec.Genres)
	assert.Equal(t, "A mythic and emotionally charged hero's journey.", *rec.Summary)
	assert.Equal(t, 155, *rec.Duration)
	assert.Equal(t, "PG-13", *rec.ContentRating)
	assert.Equal(t, "United States of America, Canada", rec.ProductionCountries)
	assert.Equal(t, "", rec.SpokenLanguages)
	assert.Nil(t, rec.Revenue)
	assert.Nil(t, rec.OriginalLanguage)
	assert.Equal(t, 438631, rec.MovieID)
}

func TestNormalize_RepairToggle(t *testing.T) {
	d := domain.MovieDetail{
		Title:  ptr("CafÃ©"),
		Genres: []domain.Named{{Name: "ComÃ©die"}},
	}

	full, _ := Normalize(1, d, nil, domain.ProfileFull())
	assert.Equal(t, "Café", *full.Title)
	assert.Equal(t, "Comédie", full.Genres)

	basic, _ := Normalize(1, d, nil, domain.ProfileBasic())
	assert.Equal(t, "CafÃ©", *basic.Title)
	assert.Equal(t, "ComÃ©die", basic.Genres)
}

func TestNormalize_EmptyDetailStillProducesRecord(t *testing.T) {
	rec, skip := Normalize(42, domain.MovieDetail{}, nil, domain.ProfileFull())
	require.Nil(t, skip)

	assert.Equal(t, 42, rec.MovieID)
	assert.Nil(t, rec.Title)
	assert.Nil(t, rec.Director)
	assert.Nil(t, rec.Producer)
	assert.Equal(t, "", rec.Year)
	assert.Equal(t, "", rec.Genres)
	assert.Nil(t, rec.ContentRating)
}

func TestYear(t *testing.T) {
	assert.Equal(t, "2021", Year(ptr("2021-09-15")))
	assert.Equal(t, "1999", Year(ptr("1999")))
	assert.Equal(t, "", Year(ptr("")))
	assert.Equal(t, "", Year(nil))
}
