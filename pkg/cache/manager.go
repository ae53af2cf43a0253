package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockview/pkg/logger"
	"stockview/pkg/series"
	"stockview/pkg/symbol"

	"github.com/sirupsen/logrus"
)

// State 一次远程请求的结局
type State int

const (
	// FreshCache 今天已经拉取过，直接使用缓存文件，不发起网络请求
	FreshCache State = iota
	// FetchOK 远程拉取成功，缓存文件已更新
	FetchOK
	// FetchFailedWithFallback 远程拉取失败，用往日的缓存兜底，数据可能过期
	FetchFailedWithFallback
	// FetchFailedNoFallback 远程拉取失败且没有任何缓存可用
	FetchFailedNoFallback
)

func (s State) String() string {
	switch s {
	case FreshCache:
		return "fresh_cache"
	case FetchOK:
		return "fetch_ok"
	case FetchFailedWithFallback:
		return "fetch_failed_with_fallback"
	case FetchFailedNoFallback:
		return "fetch_failed_no_fallback"
	default:
		return "unknown"
	}
}

// KlineFetcher 远程K线拉取接口，由 eastmoney.Client 实现
type KlineFetcher interface {
	FetchKline(ctx context.Context, secid string, beg, end time.Time) (series.Series, error)
}

// Window 补齐模式的一个历史窗口
// LastDays 大于 0 时窗口为 [今天-LastDays, 今天]，否则取固定的 [Start, End]
type Window struct {
	Name     string
	Start    time.Time
	End      time.Time
	LastDays int
}

// WindowOutcome 单个窗口的拉取结局
type WindowOutcome int

const (
	WindowFetched WindowOutcome = iota // 拉到了数据
	WindowEmpty                        // 远端没有该窗口的数据
	WindowFailed                       // 拉取出错
)

// WindowResult 单个窗口的拉取结果
// 每个窗口独立成败，由调用方决定部分成功是否可接受
type WindowResult struct {
	Window  Window
	Outcome WindowOutcome
	Series  series.Series
	Err     error
}

// ManagerConfig 缓存管理器配置
type ManagerConfig struct {
	CacheDir      string   // 每个标的一个缓存文件的目录
	LookbackYears int      // 全量拉取的回看年数
	Windows       []Window // 补齐模式的窗口集合
}

// DefaultWindows 默认补齐窗口：一段已知的历史缺口加一个最近窗口
func DefaultWindows() []Window {
	return []Window{
		{
			Name:  "gap",
			Start: time.Date(2024, 10, 8, 0, 0, 0, 0, time.Local),
			End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.Local),
		},
		{Name: "latest", LastDays: 30},
	}
}

// Manager 远程数据缓存管理器
//
// 对每个标的维护一个按日新鲜度策略的缓存文件：同一自然日内
// 最多发起一次远程拉取，拉取失败时回退到旧缓存。状态机见 State。
type Manager struct {
	cfg      ManagerConfig
	fetchLog *FetchLog
	fetcher  KlineFetcher
	clock    Clock
	log      *logrus.Entry
}

// NewManager 创建缓存管理器，clock 传 nil 时使用系统时钟
func NewManager(cfg ManagerConfig, fetchLog *FetchLog, fetcher KlineFetcher, clock Clock) *Manager {
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.LookbackYears <= 0 {
		cfg.LookbackYears = 10
	}
	if cfg.Windows == nil {
		cfg.Windows = DefaultWindows()
	}
	return &Manager{
		cfg:      cfg,
		fetchLog: fetchLog,
		fetcher:  fetcher,
		clock:    clock,
		log:      logger.WithComponent("CacheManager"),
	}
}

// Fetch 取得一个标的的远程数据，按日缓存
//
// 日志记录今天已拉取且缓存文件在 → 直接读缓存（FreshCache）。
// 否则发起覆盖长回看窗口的远程拉取：成功则整体重写缓存文件并把
// 日志推进到今天（FetchOK）；失败或空结果时，若存在往日缓存则
// 照常返回（FetchFailedWithFallback，err 为 nil），否则请求失败
// （FetchFailedNoFallback）。
func (m *Manager) Fetch(ctx context.Context, sym symbol.Symbol) (series.Series, State, error) {
	q := sym.Qualified()
	id := q.String()
	path := m.cachePath(q)
	today := m.clock.Now().Format(DateLayout)

	last, recorded, err := m.fetchLog.LastFetchDate(id)
	if err != nil {
		// 日志损坏不阻断请求，当作没有记录处理
		m.log.Warnf("fetch log unreadable: %v", err)
		last, recorded = "", false
	}

	if recorded && last == today {
		if s, err := m.readCache(path); err == nil {
			m.log.Debugf("%s: cache fresh, no network call", id)
			return s, FreshCache, nil
		}
		// 日志说今天拉过但文件读不出来，重新拉取
	}

	now := m.clock.Now()
	fetched, fetchErr := m.fetcher.FetchKline(ctx, q.SecID(), now.AddDate(-m.cfg.LookbackYears, 0, 0), now)
	if fetchErr == nil && len(fetched) == 0 {
		fetchErr = fmt.Errorf("%s: empty remote result", id)
	}

	if fetchErr == nil {
		if err := m.writeCache(path, fetched); err != nil {
			m.log.Errorf("%s: write cache: %v", id, err)
		} else {
			expect := ""
			if recorded {
				expect = last
			}
			ok, err := m.fetchLog.CompareAndSetDate(id, expect, today)
			if err != nil {
				m.log.Errorf("%s: update fetch log: %v", id, err)
			} else if !ok {
				// 并发请求抢先记录了今天，结果一样，无需重试
				m.log.Debugf("%s: fetch log already advanced", id)
			}
		}
		return fetched, FetchOK, nil
	}

	m.log.Warnf("%s: remote fetch failed: %v", id, fetchErr)

	if s, err := m.readCache(path); err == nil {
		m.log.Infof("%s: serving stale cache", id)
		return s, FetchFailedWithFallback, nil
	}

	return nil, FetchFailedNoFallback, fmt.Errorf("remote fetch %s failed with no cache fallback: %w", id, fetchErr)
}

// FillWindows 补齐模式：独立拉取每个配置的历史窗口
//
// 每个窗口的成败互不影响，结果逐个带标签返回；
// 调用方通常只合并 WindowFetched 的序列。
func (m *Manager) FillWindows(ctx context.Context, sym symbol.Symbol) []WindowResult {
	q := sym.Qualified()
	now := m.clock.Now()

	results := make([]WindowResult, 0, len(m.cfg.Windows))
	for _, w := range m.cfg.Windows {
		beg, end := w.Start, w.End
		if w.LastDays > 0 {
			beg, end = now.AddDate(0, 0, -w.LastDays), now
		}

		s, err := m.fetcher.FetchKline(ctx, q.SecID(), beg, end)
		switch {
		case err != nil:
			m.log.Warnf("%s: fill window %s failed: %v", q, w.Name, err)
			results = append(results, WindowResult{Window: w, Outcome: WindowFailed, Err: err})
		case len(s) == 0:
			results = append(results, WindowResult{Window: w, Outcome: WindowEmpty})
		default:
			m.log.Debugf("%s: fill window %s fetched %d bars", q, w.Name, len(s))
			results = append(results, WindowResult{Window: w, Outcome: WindowFetched, Series: s})
		}
	}

	return results
}

// cachePath 每个标的一个缓存文件，列格式与分区文件一致
func (m *Manager) cachePath(q symbol.Symbol) string {
	return filepath.Join(m.cfg.CacheDir, q.String()+".csv")
}

func (m *Manager) readCache(path string) (series.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := series.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse cache %s: %w", path, err)
	}
	return s, nil
}

// writeCache 整体重写缓存文件，临时文件+rename 原子落盘
func (m *Manager) writeCache(path string, s series.Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}

	if err := series.WriteCSV(f, s); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}

	return os.Rename(tmp, path)
}
