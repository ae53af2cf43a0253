package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockview/pkg/cache"
	"stockview/pkg/config"
	"stockview/pkg/provider/eastmoney"
	"stockview/pkg/repository"
	"stockview/pkg/search"
	"stockview/pkg/series"
	"stockview/pkg/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubQuotes struct {
	quote *eastmoney.Quote
	err   error
}

func (s *stubQuotes) FetchQuote(ctx context.Context, secid string) (*eastmoney.Quote, error) {
	return s.quote, s.err
}

type noopFetcher struct{}

func (noopFetcher) FetchKline(ctx context.Context, secid string, beg, end time.Time) (series.Series, error) {
	return nil, errors.New("remote disabled in tests")
}

func newTestServer(t *testing.T, quotes QuoteFetcher) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "stock")

	mgr := cache.NewManager(
		cache.ManagerConfig{CacheDir: filepath.Join(root, "cache")},
		cache.NewFetchLog(filepath.Join(root, "cache", "fetch_log.json")),
		noopFetcher{},
		nil,
	)

	listPath := filepath.Join(root, "stock_list.csv")
	require.NoError(t, os.WriteFile(listPath,
		[]byte("code,name,pinyin,pinyin_initials\n000001.SZ,平安银行,pinganyinhang,payh\n"), 0644))

	repo := repository.New(dataDir)
	srv := NewServer(
		config.ServerConfig{Port: 0, Mode: "test"},
		service.New(repo, mgr),
		repo,
		search.NewIndex(listPath),
		quotes,
	)
	return srv, dataDir
}

func writePartition(t *testing.T, dataDir, bucket, filename, rows string) {
	t.Helper()
	dir := filepath.Join(dataDir, bucket)
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := "trade_time,open,high,low,close,vol,amount\n" + rows
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644))
}

func doGet(t *testing.T, srv *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Handler().ServeHTTP(w, req)

	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

// K线查询接口的成功响应
func TestHandleStock(t *testing.T) {
	srv, dataDir := newTestServer(t, &stubQuotes{})
	writePartition(t, dataDir, "2022", "000001.SZ.csv",
		"2022-01-04,16.66,17.20,16.61,17.15,1595928,2716148644\n")

	w, body := doGet(t, srv, "/api/stock/000001.SZ?period=native")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "000001.SZ", body["stock_code"])
	assert.Equal(t, "2022", body["year"])
	assert.Equal(t, float64(1), body["count"])

	data := body["data"].([]interface{})
	bar := data[0].(map[string]interface{})
	assert.Equal(t, "2022-01-04 00:00:00", bar["trade_time"])
	assert.Equal(t, 17.15, bar["close"])
}

// 未知标的返回404
func TestHandleStock_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubQuotes{})

	w, body := doGet(t, srv, "/api/stock/999999.SZ")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, body["success"])
}

// 坏分区返回500
func TestHandleStock_Malformed(t *testing.T) {
	srv, dataDir := newTestServer(t, &stubQuotes{})
	writePartition(t, dataDir, "2022", "000001.SZ.csv", "broken\n")

	w, _ := doGet(t, srv, "/api/stock/000001.SZ")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// 年份与标的列表接口
func TestHandleYearsAndStocks(t *testing.T) {
	srv, dataDir := newTestServer(t, &stubQuotes{})
	writePartition(t, dataDir, "2021", "000001.SZ.csv", "")
	writePartition(t, dataDir, "2022", "000001.SZ.csv", "")

	_, body := doGet(t, srv, "/api/years")
	years := body["years"].([]interface{})
	assert.Equal(t, []interface{}{"2022", "2021"}, years)

	w, body := doGet(t, srv, "/api/stocks/2022")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"000001.SZ"}, body["stocks"].([]interface{}))

	w, _ = doGet(t, srv, "/api/stocks/2030")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// 年份枚举失败返回500
func TestHandleYears_Unreadable(t *testing.T) {
	srv, dataDir := newTestServer(t, &stubQuotes{})
	// 数据目录路径被一个普通文件占据
	require.NoError(t, os.WriteFile(dataDir, []byte("not a directory"), 0644))

	w, body := doGet(t, srv, "/api/years")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, body["success"])
}

// 检索接口
func TestHandleSearchStocks(t *testing.T) {
	srv, _ := newTestServer(t, &stubQuotes{})

	w, body := doGet(t, srv, "/api/search_stocks?q=payh")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), body["count"])

	results := body["results"].([]interface{})
	hit := results[0].(map[string]interface{})
	assert.Equal(t, "000001.SZ", hit["code"])
	assert.Equal(t, "平安银行", hit["name"])

	// 空查询返回空结果
	_, body = doGet(t, srv, "/api/search_stocks?q=")
	assert.Equal(t, float64(0), body["count"])
}

// 估值接口直通转发
func TestHandleStockInfo(t *testing.T) {
	srv, _ := newTestServer(t, &stubQuotes{quote: &eastmoney.Quote{
		Code: "600519", Name: "贵州茅台", MarketCap: 2.1e12, PETTM: 32.5, PB: 8.2,
	}})

	w, body := doGet(t, srv, "/api/stock_info/600519.SH")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "贵州茅台", body["name"])
	assert.Equal(t, 32.5, body["pe_ttm"])

	// 远端无数据时404
	srv, _ = newTestServer(t, &stubQuotes{err: eastmoney.ErrEmptyPayload})
	w, _ = doGet(t, srv, "/api/stock_info/600519.SH")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// 请求ID中间件透传与生成
func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t, &stubQuotes{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.Handler().ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}
