package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"
)

// ListEntry 股票列表条目
type ListEntry struct {
	Code string // 带市场后缀的代码，如 "000001.SZ"
	Name string // 公司名称
}

// listItem 股票列表接口的单条记录
// f12=代码 f14=名称
type listItem struct {
	Code string `json:"f12"`
	Name string `json:"f14"`
}

// listResponse 股票列表接口响应
type listResponse struct {
	Data *struct {
		Diff []listItem `json:"diff"`
	} `json:"data"`
}

const listPageSize = 100

// FetchStockList 分页拉取全部沪深A股的代码和名称
//
// 逐页请求直到返回不足一页；单页失败跳过继续下一页，
// 全部页都失败时返回错误。结果按代码去重并升序排列。
func (c *Client) FetchStockList(ctx context.Context) ([]ListEntry, error) {
	seen := make(map[string]string)

	for page := 1; page <= 100; page++ {
		diff, err := c.fetchListPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warnf("stock list page %d failed: %v", page, err)
			continue
		}
		if len(diff) == 0 {
			break
		}

		for _, item := range diff {
			if len(item.Code) != 6 || !isDigits(item.Code) || item.Name == "" {
				continue
			}
			code := item.Code + ".SZ"
			if item.Code[0] == '6' {
				code = item.Code + ".SH"
			}
			if _, ok := seen[code]; !ok {
				seen[code] = item.Name
			}
		}

		if len(diff) < listPageSize {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.opts.RateLimit):
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("fetch stock list: %w", ErrEmptyPayload)
	}

	entries := make([]ListEntry, 0, len(seen))
	for code, name := range seen {
		entries = append(entries, ListEntry{Code: code, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })

	c.log.Infof("fetched %d stocks", len(entries))
	return entries, nil
}

func (c *Client) fetchListPage(ctx context.Context, page int) ([]listItem, error) {
	params := url.Values{}
	params.Set("pn", strconv.Itoa(page))
	params.Set("pz", strconv.Itoa(listPageSize))
	params.Set("po", "1")
	params.Set("np", "1")
	params.Set("fltt", "2")
	params.Set("invt", "2")
	params.Set("fid", "f3")
	params.Set("fs", "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23") // 沪深A股

	reqURL := buildURL(c.opts.ListBaseURL, "/api/qt/clist/get", params)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode list page %d: %w", page, err)
	}

	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Diff, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
