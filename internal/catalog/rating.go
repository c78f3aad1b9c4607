package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/John-Robertt/movieharvest/internal/domain"
)

const (
	// RatingOrderPreference 按 Countries 的偏好顺序挑选（US 优先于 GB）。
	RatingOrderPreference = "preference"
	// RatingOrderAPI 按接口返回的国家顺序挑选第一个可接受国家。
	RatingOrderAPI = "api"
)

// ResolveRating 查询影片的分级；没有可接受国家的非空分级或请求失败时返回 nil。
func (c *Client) ResolveRating(ctx context.Context, id int) *string {
	var rd domain.ReleaseDates
	if err := c.getJSON(ctx, "/movie/"+strconv.Itoa(id)+"/release_dates", nil, &rd); err != nil {
		c.log.WithError(err).WithField("movie_id", id).Error("获取分级失败")
		return nil
	}
	return PickCertification(rd, c.countries, c.ratingOrder)
}

// PickCertification 是分级选择的纯函数部分。
// 同一国家内取第一个非空 certification，原样返回（不做 trim）。
func PickCertification(rd domain.ReleaseDates, countries []string, order string) *string {
	if len(countries) == 0 {
		return nil
	}

	if order == RatingOrderAPI {
		accepted := make(map[string]struct{}, len(countries))
		for _, c := range countries {
			accepted[strings.ToUpper(c)] = struct{}{}
		}
		for _, e := range rd.Results {
			if _, ok := accepted[strings.ToUpper(e.Country)]; !ok {
				continue
			}
			if cert := firstCertification(e); cert != nil {
				return cert
			}
		}
		return nil
	}

	for _, want := range countries {
		for _, e := range rd.Results {
			if !strings.EqualFold(e.Country, want) {
				continue
			}
			if cert := firstCertification(e); cert != nil {
				return cert
			}
		}
	}
	return nil
}

func firstCertification(e domain.CountryReleases) *string {
	for _, r := range e.ReleaseDates {
		if r.Certification != "" {
			v := r.Certification
			return &v
		}
	}
	return nil
}
