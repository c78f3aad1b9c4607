package catalog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/movieharvest/internal/domain"
)

const discoverEndpoint = "/discover/movie"

// Discover 逐页拉取某年份的候选影片，返回按页序拼接的结果。
//
// 终止条件：空页；page>=total_pages；total_pages 缺失；达到 MaxPages；请求失败。
// 请求失败只记录日志，已拿到的页保留。
func (c *Client) Discover(ctx context.Context, year int) []domain.MovieSummary {
	log := c.log.WithField("year", year)

	var out []domain.MovieSummary
	for page := 1; ; page++ {
		var p domain.DiscoverPage
		if err := c.getJSON(ctx, discoverEndpoint, c.discoverParams(year, page), &p); err != nil {
			log.WithError(err).WithField("page", page).Error("获取年份影片列表失败")
			break
		}
		if len(p.Results) == 0 {
			break
		}
		out = append(out, p.Results...)

		if p.TotalPages == nil {
			log.WithField("page", page).Warn("响应缺少 total_pages，视为没有更多页")
			break
		}
		if page >= *p.TotalPages {
			break
		}
		if page >= c.discover.MaxPages {
			log.WithFields(logrus.Fields{
				"page":        page,
				"total_pages": *p.TotalPages,
			}).Warn("达到分页上限，剩余页被忽略")
			break
		}
	}

	log.WithField("candidates", len(out)).Debug("年份发现完成")
	return out
}

func (c *Client) discoverParams(year, page int) url.Values {
	q := url.Values{}
	q.Set("primary_release_year", strconv.Itoa(year))
	q.Set("sort_by", c.discover.SortBy)
	q.Set("page", strconv.Itoa(page))
	if c.discover.CertificationCountry != "" {
		q.Set("certification_country", c.discover.CertificationCountry)
	}
	if c.discover.CertificationLTE != "" {
		q.Set("certification.lte", c.discover.CertificationLTE)
	}
	return q
}
