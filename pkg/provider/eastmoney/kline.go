package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stockview/pkg/series"
)

// klineResponse K线接口响应
type klineResponse struct {
	Data *struct {
		Code   string   `json:"code"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

// FetchKline 拉取一个标的在 [beg, end] 区间内的日K线
//
// secid 为 "<市场标志>.<代码>" 形式（见 symbol.SecID）。
// 请求经过熔断器：连续失败后短路一段时间，避免徒劳地轰炸远端。
// 接口返回成功但 klines 为空时返回 ErrEmptyPayload。
func (c *Client) FetchKline(ctx context.Context, secid string, beg, end time.Time) (series.Series, error) {
	params := url.Values{}
	params.Set("secid", secid)
	params.Set("klt", "101") // 日线
	params.Set("fqt", "1")   // 前复权
	params.Set("beg", beg.Format("20060102"))
	params.Set("end", end.Format("20060102"))
	params.Set("fields1", "f1,f2,f3,f4,f5,f6")
	params.Set("fields2", "f51,f52,f53,f54,f55,f56,f57")

	reqURL := buildURL(c.opts.KlineBaseURL, "/api/qt/stock/kline/get", params)

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch kline %s: %w", secid, err)
	}

	var resp klineResponse
	if err := json.Unmarshal(body.([]byte), &resp); err != nil {
		return nil, fmt.Errorf("decode kline %s: %w", secid, err)
	}

	if resp.Data == nil || len(resp.Data.Klines) == 0 {
		return nil, fmt.Errorf("fetch kline %s: %w", secid, ErrEmptyPayload)
	}

	s, err := parseKlines(resp.Data.Klines)
	if err != nil {
		return nil, fmt.Errorf("parse kline %s: %w", secid, err)
	}

	c.log.Debugf("fetched %d bars for %s", len(s), secid)
	return s, nil
}

// parseKlines 解析K线字符串
// 每条格式为 "日期,开盘,收盘,最高,最低,成交量,成交额[,...]"
func parseKlines(klines []string) (series.Series, error) {
	s := make(series.Series, 0, len(klines))

	for _, line := range klines {
		fields := strings.Split(line, ",")
		if len(fields) < 7 {
			return nil, fmt.Errorf("kline %q: expected at least 7 fields", line)
		}

		ts, err := time.ParseInLocation("2006-01-02", fields[0], time.Local)
		if err != nil {
			return nil, fmt.Errorf("kline %q: %w", line, err)
		}

		vals := make([]float64, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("kline %q: %w", line, err)
			}
			vals[i] = v
		}

		s = append(s, series.Bar{
			Time:   ts,
			Open:   vals[0],
			Close:  vals[1],
			High:   vals[2],
			Low:    vals[3],
			Volume: vals[4],
			Amount: vals[5],
		})
	}

	return s, nil
}
