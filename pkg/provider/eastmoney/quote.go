package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// Quote 估值快照
type Quote struct {
	Code      string  `json:"stock_code"` // 股票代码
	Name      string  `json:"name"`       // 公司名称
	MarketCap float64 `json:"market_cap"` // 总市值（元）
	PETTM     float64 `json:"pe_ttm"`     // 市盈率(TTM)
	PB        float64 `json:"pb"`         // 市净率
}

// flexFloat 兼容接口可能返回的 "-" 占位字符串
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	// 非数字占位值（如 "-"）按 0 处理
	*f = 0
	return nil
}

// quoteResponse 行情快照接口响应
// f57=代码 f58=名称 f116=总市值 f162=市盈率 f167=市净率
type quoteResponse struct {
	Data *struct {
		Code      string    `json:"f57"`
		Name      string    `json:"f58"`
		MarketCap flexFloat `json:"f116"`
		PETTM     flexFloat `json:"f162"`
		PB        flexFloat `json:"f167"`
	} `json:"data"`
}

// FetchQuote 拉取一个标的的估值快照
// 这是对远端估值接口的直通转发，数值不做任何校验
func (c *Client) FetchQuote(ctx context.Context, secid string) (*Quote, error) {
	params := url.Values{}
	params.Set("secid", secid)
	params.Set("fields", "f57,f58,f116,f162,f167")

	reqURL := buildURL(c.opts.QuoteBaseURL, "/api/qt/stock/get", params)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("fetch quote %s: %w", secid, err)
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", secid, err)
	}

	if resp.Data == nil {
		return nil, fmt.Errorf("fetch quote %s: %w", secid, ErrEmptyPayload)
	}

	return &Quote{
		Code:      resp.Data.Code,
		Name:      resp.Data.Name,
		MarketCap: float64(resp.Data.MarketCap),
		PETTM:     float64(resp.Data.PETTM),
		PB:        float64(resp.Data.PB),
	}, nil
}
