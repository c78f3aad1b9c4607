package catalog

import (
	"context"
	"net/url"
	"strconv"

	"github.com/John-Robertt/movieharvest/internal/domain"
)

// FetchDetail 一次请求拿到详情与内嵌的 credits。
// 任何失败都返回零值 MovieDetail（所有字段缺失），由上层照常生成记录。
func (c *Client) FetchDetail(ctx context.Context, id int) domain.MovieDetail {
	q := url.Values{}
	q.Set("append_to_response", "credits")

	var d domain.MovieDetail
	if err := c.getJSON(ctx, "/movie/"+strconv.Itoa(id), q, &d); err != nil {
		entry := c.log.WithError(err).WithField("movie_id", id)
		switch {
		case IsNotFound(err):
			entry.Warn("影片详情不存在")
		case IsRateLimited(err):
			entry.Error("限流重试已耗尽，影片详情留空")
		default:
			entry.Error("获取影片详情失败")
		}
		return domain.MovieDetail{}
	}
	return d
}
