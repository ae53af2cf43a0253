package eastmoney

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"stockview/pkg/logger"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// 默认接口地址
const (
	defaultKlineBaseURL = "https://push2his.eastmoney.com"
	defaultQuoteBaseURL = "https://push2.eastmoney.com"
	defaultListBaseURL  = "https://82.push2.eastmoney.com"
)

// ErrEmptyPayload 接口返回成功但没有任何数据
var ErrEmptyPayload = errors.New("eastmoney: empty payload")

// Options 客户端配置
type Options struct {
	Timeout      time.Duration // 单次请求超时
	MaxRetries   int           // 最大重试次数
	RateLimit    time.Duration // 请求间隔限制
	UserAgent    string        // 用户代理
	KlineBaseURL string        // K线接口地址，测试用
	QuoteBaseURL string        // 行情快照接口地址，测试用
	ListBaseURL  string        // 股票列表接口地址，测试用
}

// DefaultOptions 返回默认客户端配置
func DefaultOptions() Options {
	return Options{
		Timeout:    8 * time.Second,
		MaxRetries: 3,
		RateLimit:  200 * time.Millisecond,
		UserAgent:  "StockView/1.0",
	}
}

// Client 东方财富数据客户端
// 提供历史K线、股票列表和估值快照三个只读接口的访问
type Client struct {
	httpClient  *http.Client
	opts        Options
	breaker     *gobreaker.CircuitBreaker
	lastRequest time.Time
	requestMu   sync.Mutex
	log         *logrus.Entry
}

// NewClient 创建东方财富客户端
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = def.RateLimit
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.KlineBaseURL == "" {
		opts.KlineBaseURL = defaultKlineBaseURL
	}
	if opts.QuoteBaseURL == "" {
		opts.QuoteBaseURL = defaultQuoteBaseURL
	}
	if opts.ListBaseURL == "" {
		opts.ListBaseURL = defaultListBaseURL
	}

	log := logger.WithComponent("EastmoneyClient")

	settings := gobreaker.Settings{
		Name:        "eastmoney",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %v -> %v", name, from, to)
		},
	}

	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
				MaxConnsPerHost:     10,
			},
			Timeout: opts.Timeout,
		},
		opts:    opts,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// get 执行一次带限流和重试的GET请求，返回响应体
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	c.enforceRateLimit()

	var lastErr error
	for i := 0; i < c.opts.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP status error: %d", resp.StatusCode)
			continue
		}

		if len(body) == 0 {
			lastErr = errors.New("empty response")
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("failed after %d retries: %w", c.opts.MaxRetries, lastErr)
}

// enforceRateLimit 执行频率限制
func (c *Client) enforceRateLimit() {
	c.requestMu.Lock()
	defer c.requestMu.Unlock()

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.opts.RateLimit && !c.lastRequest.IsZero() {
		time.Sleep(c.opts.RateLimit - elapsed)
	}
	c.lastRequest = time.Now()
}

// buildURL 拼接接口地址和查询参数
func buildURL(base, path string, params url.Values) string {
	return base + path + "?" + params.Encode()
}
