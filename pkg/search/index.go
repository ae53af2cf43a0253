package search

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"stockview/pkg/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ErrIndexUnavailable 股票列表文件缺失，检索服务不可用
var ErrIndexUnavailable = errors.New("stock list unavailable")

// Record 检索索引中的一条股票
type Record struct {
	Code     string // 带市场后缀的代码
	Name     string // 公司名称
	Pinyin   string // 名称全拼，小写
	Initials string // 名称拼音首字母，小写
}

// Match 一条检索命中
type Match struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// versionedIndex 以文件修改时间为版本号的索引快照
// 显式持有版本与数据，替代隐式的模块级缓存字典
type versionedIndex struct {
	version time.Time
	records []Record
}

// Index 股票模糊检索索引
//
// 从股票列表文件构建，在内存中按文件修改时间缓存：
// 文件被更新后下一次读取自动重建，无须显式失效调用。
// 列表缺少拼音列时在加载时计算一次并随快照缓存。
type Index struct {
	path   string
	mu     sync.RWMutex
	cached *versionedIndex
	log    *logrus.Entry
}

// NewIndex 创建检索索引
func NewIndex(path string) *Index {
	return &Index{
		path: path,
		log:  logger.WithComponent("SearchIndex"),
	}
}

// Search 返回最多 limit 条命中，按索引顺序先到先得
//
// 匹配谓词（大小写不敏感，查询串和名称都去掉空格）：
// 查询是代码、名称、全拼或拼音首字母之一的子串。
// 凑满 limit 条即提前结束，结果不是按相关度排序的前N名。
func (idx *Index) Search(query string, limit int) ([]Match, error) {
	q := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(query), " ", ""))
	if q == "" {
		return []Match{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	records, err := idx.load()
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, limit)
	for _, r := range records {
		if matchRecord(r, q) {
			matches = append(matches, Match{Code: r.Code, Name: r.Name})
			if len(matches) >= limit {
				break
			}
		}
	}

	return matches, nil
}

// Records 返回当前索引快照里的全部记录
func (idx *Index) Records() ([]Record, error) {
	return idx.load()
}

func matchRecord(r Record, q string) bool {
	if strings.Contains(strings.ToLower(r.Code), q) {
		return true
	}
	name := strings.ToLower(strings.ReplaceAll(r.Name, " ", ""))
	if strings.Contains(name, q) {
		return true
	}
	return strings.Contains(r.Pinyin, q) || strings.Contains(r.Initials, q)
}

// load 返回与文件当前修改时间一致的索引快照，必要时重建
func (idx *Index) load() ([]Record, error) {
	info, err := os.Stat(idx.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, idx.path)
	}

	idx.mu.RLock()
	cached := idx.cached
	idx.mu.RUnlock()
	if cached != nil && cached.version.Equal(info.ModTime()) {
		return cached.records, nil
	}

	records, err := readList(idx.path)
	if err != nil {
		return nil, err
	}

	computed := 0
	for i := range records {
		if records[i].Pinyin == "" {
			records[i].Pinyin, records[i].Initials = namePinyin(records[i].Name)
			computed++
		}
	}
	if computed > 0 {
		idx.log.Infof("computed pinyin for %d of %d records", computed, len(records))
	}

	idx.mu.Lock()
	idx.cached = &versionedIndex{version: info.ModTime(), records: records}
	idx.mu.Unlock()

	idx.log.Debugf("index rebuilt: %d records, version %s", len(records), info.ModTime())
	return records, nil
}

// readList 读取股票列表文件
// 列为 code,name[,pinyin,pinyin_initials]，表头可选；
// 容忍GBK编码的文件（按需转为UTF-8）
func readList(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stock list %s: %w", path, err)
	}

	if !utf8.Valid(data) {
		decoded, err := io.ReadAll(transform.NewReader(
			strings.NewReader(string(data)), simplifiedchinese.GBK.NewDecoder()))
		if err == nil {
			data = decoded
		}
	}

	cr := csv.NewReader(strings.NewReader(string(data)))
	cr.FieldsPerRecord = -1

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse stock list %s: %w", path, err)
		}
		if len(row) < 2 {
			continue
		}
		if row[0] == "code" {
			continue // 表头
		}

		r := Record{Code: strings.TrimSpace(row[0]), Name: strings.TrimSpace(row[1])}
		if len(row) >= 4 {
			r.Pinyin = strings.ToLower(strings.TrimSpace(row[2]))
			r.Initials = strings.ToLower(strings.TrimSpace(row[3]))
		}
		if r.Code != "" && r.Name != "" {
			records = append(records, r)
		}
	}

	return records, nil
}

// SaveList 将股票列表写到磁盘，固定四列并补全拼音
// 用于定时刷新任务：持久化计算好的拼音，下次加载无须重算
func SaveList(path string, records []Record) error {
	var buf strings.Builder
	cw := csv.NewWriter(&buf)

	if err := cw.Write([]string{"code", "name", "pinyin", "pinyin_initials"}); err != nil {
		return err
	}
	for _, r := range records {
		if r.Pinyin == "" {
			r.Pinyin, r.Initials = namePinyin(r.Name)
		}
		if err := cw.Write([]string{r.Code, r.Name, r.Pinyin, r.Initials}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("write stock list: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename stock list: %w", err)
	}

	return nil
}
