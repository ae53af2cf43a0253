package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"stockview/pkg/provider/eastmoney"
	"stockview/pkg/search"
	"stockview/pkg/series"
	"stockview/pkg/service"
	"stockview/pkg/symbol"

	"github.com/gin-gonic/gin"
)

// barJSON K线的JSON表示，时间序列化为固定格式字符串
type barJSON struct {
	TradeTime string  `json:"trade_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Vol       float64 `json:"vol"`
	Amount    float64 `json:"amount"`
}

func toBarJSON(s series.Series) []barJSON {
	out := make([]barJSON, len(s))
	for i, b := range s {
		out[i] = barJSON{
			TradeTime: b.Time.Format(series.TimeLayout),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Vol:       b.Volume,
			Amount:    b.Amount,
		}
	}
	return out
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// handleStock K线查询
// 参数: year（可选年份）、period（native/day/week/month）、
// remote_data、fill_missing_data（布尔开关）
func (s *Server) handleStock(c *gin.Context) {
	code := c.Param("code")

	year := 0
	if y := c.Query("year"); y != "" {
		if parsed, err := strconv.Atoi(y); err == nil {
			year = parsed
		}
	}

	req := service.Request{
		Code:            code,
		Year:            year,
		Period:          series.ParsePeriod(c.DefaultQuery("period", "native")),
		RemoteData:      boolQuery(c, "remote_data"),
		FillMissingData: boolQuery(c, "fill_missing_data"),
	}

	res, err := s.svc.Query(c.Request.Context(), req)
	if err != nil {
		var noData *service.NoDataError
		if errors.As(err, &noData) {
			fail(c, http.StatusNotFound, "未找到股票代码 "+code+" 的数据")
			return
		}
		s.log.Errorf("stock query %s: %v", code, err)
		fail(c, http.StatusInternalServerError, "读取数据时出错: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"stock_code": res.Code,
		"year":       strings.Join(res.Years, ","),
		"period":     string(res.Period),
		"data":       toBarJSON(res.Bars),
		"count":      len(res.Bars),
	})
}

// handleStockInfo 估值快照直通转发
func (s *Server) handleStockInfo(c *gin.Context) {
	code := c.Param("code")
	secid := symbol.Parse(code).SecID()

	quote, err := s.quotes.FetchQuote(c.Request.Context(), secid)
	if err != nil {
		if errors.Is(err, eastmoney.ErrEmptyPayload) {
			fail(c, http.StatusNotFound, "未获取到基础信息")
			return
		}
		s.log.Errorf("stock info %s: %v", code, err)
		fail(c, http.StatusInternalServerError, "获取基础信息失败: "+err.Error())
		return
	}

	stockCode := quote.Code
	if stockCode == "" {
		stockCode = code
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"stock_code": stockCode,
		"name":       quote.Name,
		"market_cap": quote.MarketCap,
		"pe_ttm":     quote.PETTM,
		"pb":         quote.PB,
	})
}

// handleYears 可用年度桶列表，降序
func (s *Server) handleYears(c *gin.Context) {
	years, err := s.repo.Years()
	if err != nil {
		s.log.Errorf("list years: %v", err)
		fail(c, http.StatusInternalServerError, "读取年份列表失败: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"years":   years,
	})
}

// handleStocksByYear 一个年度桶里的全部标的
func (s *Server) handleStocksByYear(c *gin.Context) {
	year := c.Param("year")

	stocks, err := s.repo.Stocks(year)
	if err != nil {
		fail(c, http.StatusNotFound, "年份 "+year+" 不存在")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"year":    year,
		"stocks":  stocks,
		"count":   len(stocks),
	})
}

// handleSearchStocks 股票模糊检索
// 参数: q 查询串，limit 结果上限（默认10）
func (s *Server) handleSearchStocks(c *gin.Context) {
	query := c.Query("q")
	limit := 10
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	matches, err := s.index.Search(query, limit)
	if err != nil {
		if errors.Is(err, search.ErrIndexUnavailable) {
			fail(c, http.StatusNotFound, "股票列表文件不存在")
			return
		}
		s.log.Errorf("search %q: %v", query, err)
		fail(c, http.StatusInternalServerError, "搜索失败: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"results": matches,
		"count":   len(matches),
	})
}

func boolQuery(c *gin.Context, key string) bool {
	switch strings.ToLower(c.Query(key)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
