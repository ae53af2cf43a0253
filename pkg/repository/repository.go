package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"stockview/pkg/logger"
	"stockview/pkg/series"
	"stockview/pkg/symbol"

	"github.com/sirupsen/logrus"
)

// Partition 一个标的在一个年度分区里的数据文件
type Partition struct {
	Path  string // 文件路径
	Label string // 分区标签（目录名，如 "2022"）
}

// Load 读取分区的全部K线
// 解析失败会携带文件路径返回，不会静默丢弃分区
func (p Partition) Load() (series.Series, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("open partition %s: %w", p.Path, err)
	}
	defer f.Close()

	s, err := series.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse partition %s: %w", p.Path, err)
	}
	return s, nil
}

// Repository 按年度分区组织的本地K线仓库
// 数据目录下每个年度桶是一个子目录，目录名以四位年份开头
// （纯年份为日/分钟桶的默认命名，带后缀的名字编码其他粒度），
// 目录内每个标的一个 <代码>.<市场>.csv 文件。仓库只读，不修改任何文件。
type Repository struct {
	dataDir string
	log     *logrus.Entry
}

// New 创建仓库
func New(dataDir string) *Repository {
	return &Repository{
		dataDir: dataDir,
		log:     logger.WithComponent("Repository"),
	}
}

// Find 枚举一个标的的全部分区文件，按分区标签升序（自早到晚）
//
// year 为 0 时扫描所有年度桶，否则只扫描匹配该年份的桶。
// 每个年度桶内按候选文件名的优先顺序探测；未带市场后缀的标的
// 可能同时存在 .SZ 和 .SH 两个文件，两个都会被返回。
// 标的不存在任何数据时返回空结果和 nil 错误，这是正常情况。
func (r *Repository) Find(sym symbol.Symbol, year int) ([]Partition, error) {
	buckets, err := r.buckets(year)
	if err != nil {
		return nil, err
	}

	var parts []Partition
	for _, bucket := range buckets {
		for _, name := range sym.CandidateFilenames() {
			path := filepath.Join(r.dataDir, bucket, name)
			if _, err := os.Stat(path); err == nil {
				parts = append(parts, Partition{Path: path, Label: bucket})
			}
		}
	}

	r.log.Debugf("found %d partitions for %s", len(parts), sym)
	return parts, nil
}

// FindLatest 返回最新年度桶里的分区文件（最多一个）
// 没有任何数据时返回 nil, nil
func (r *Repository) FindLatest(sym symbol.Symbol) (*Partition, error) {
	buckets, err := r.buckets(0)
	if err != nil {
		return nil, err
	}

	// 自晚到早找第一个命中
	for i := len(buckets) - 1; i >= 0; i-- {
		for _, name := range sym.CandidateFilenames() {
			path := filepath.Join(r.dataDir, buckets[i], name)
			if _, err := os.Stat(path); err == nil {
				return &Partition{Path: path, Label: buckets[i]}, nil
			}
		}
	}

	return nil, nil
}

// Years 返回全部年度桶标签，降序
// 数据目录不存在时返回空结果；其余枚举失败作为错误返回
func (r *Repository) Years() ([]string, error) {
	buckets, err := r.buckets(0)
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(buckets)))
	return buckets, nil
}

// Stocks 返回一个年度桶里的全部标的，升序
func (r *Repository) Stocks(bucket string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.dataDir, bucket))
	if err != nil {
		return nil, fmt.Errorf("read bucket %s: %w", bucket, err)
	}

	var stocks []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		stocks = append(stocks, strings.TrimSuffix(e.Name(), ".csv"))
	}

	sort.Strings(stocks)
	return stocks, nil
}

// buckets 枚举年度桶目录名，升序
// year 非 0 时只保留年份前缀匹配的桶
func (r *Repository) buckets(year int) ([]string, error) {
	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir %s: %w", r.dataDir, err)
	}

	var buckets []string
	for _, e := range entries {
		if !e.IsDir() || !isBucketName(e.Name()) {
			continue
		}
		if year != 0 && bucketYear(e.Name()) != year {
			continue
		}
		buckets = append(buckets, e.Name())
	}

	sort.Strings(buckets)
	return buckets, nil
}

// isBucketName 目录名是否是年度桶：以四位数字年份开头
func isBucketName(name string) bool {
	if len(name) < 4 {
		return false
	}
	for _, r := range name[:4] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// bucketYear 提取桶名的年份前缀
func bucketYear(name string) int {
	year := 0
	for _, r := range name[:4] {
		year = year*10 + int(r-'0')
	}
	return year
}
