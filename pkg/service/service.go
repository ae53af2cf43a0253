package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stockview/pkg/cache"
	"stockview/pkg/logger"
	"stockview/pkg/repository"
	"stockview/pkg/series"
	"stockview/pkg/symbol"

	"github.com/sirupsen/logrus"
)

// NoDataError 本地分区、远程拉取和缓存兜底都没有产出任何数据
// 对调用方来说这是干净的"无数据"结局，不是系统故障；
// Sources 记录尝试过的来源，便于区分"确实没有"和"临时拉取故障"
type NoDataError struct {
	Code    string
	Sources []string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data for %s (tried: %s)", e.Code, strings.Join(e.Sources, ", "))
}

// Request 一次查询的参数
type Request struct {
	Code            string        // 用户输入的股票代码
	Year            int           // 年份过滤，0 表示全部年份
	Period          series.Period // 聚合周期
	RemoteData      bool          // 是否走远程缓存管道
	FillMissingData bool          // 是否补齐历史窗口
}

// Result 查询结果
type Result struct {
	Code   string        // 原样回显的股票代码
	Years  []string      // 实际贡献数据的本地分区标签，升序去重
	Period series.Period // 实际使用的聚合周期
	Bars   series.Series // 合并聚合后的K线
}

// Service 查询编排：标准化 → 本地分区 → 远程缓存/补齐 → 合并 → 聚合
type Service struct {
	repo     *repository.Repository
	cacheMgr *cache.Manager
	log      *logrus.Entry
}

// New 创建查询服务
func New(repo *repository.Repository, cacheMgr *cache.Manager) *Service {
	return &Service{
		repo:     repo,
		cacheMgr: cacheMgr,
		log:      logger.WithComponent("StockService"),
	}
}

// Query 执行一次K线查询
//
// 批次顺序即去重优先级：本地分区批次始终排在远程和补齐批次之前，
// 重叠日期上本地数据胜出。分区解析失败会作为错误返回（不静默跳过）；
// 远程拉取失败时，只要本地还有数据就降级继续，否则整个请求失败。
func (s *Service) Query(ctx context.Context, req Request) (*Result, error) {
	sym := symbol.Parse(req.Code)
	sources := []string{}

	parts, err := s.repo.Find(sym, req.Year)
	if err != nil {
		return nil, err
	}

	var batches []series.Series
	labelSet := map[string]bool{}
	for _, p := range parts {
		sources = append(sources, p.Path)
		batch, err := p.Load()
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			batches = append(batches, batch)
			labelSet[p.Label] = true
		}
	}

	if req.RemoteData {
		sources = append(sources, "remote")
		remote, state, err := s.cacheMgr.Fetch(ctx, sym)
		if err != nil {
			if len(batches) == 0 {
				return nil, fmt.Errorf("remote data for %s: %w", req.Code, err)
			}
			s.log.Warnf("%s: remote unavailable, serving local only: %v", req.Code, err)
		} else {
			s.log.Debugf("%s: remote state %s, %d bars", req.Code, state, len(remote))
			batches = append(batches, remote)
		}
	}

	if req.FillMissingData {
		for _, wr := range s.cacheMgr.FillWindows(ctx, sym) {
			sources = append(sources, "fill:"+wr.Window.Name)
			if wr.Outcome == cache.WindowFetched {
				batches = append(batches, wr.Series)
			}
		}
	}

	merged, err := series.Merge(batches...)
	if err != nil {
		return nil, &NoDataError{Code: req.Code, Sources: sources}
	}

	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return &Result{
		Code:   req.Code,
		Years:  labels,
		Period: req.Period,
		Bars:   series.Aggregate(merged, req.Period),
	}, nil
}
