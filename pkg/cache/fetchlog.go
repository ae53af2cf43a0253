package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DateLayout 拉取日志中日期的格式
const DateLayout = "2006-01-02"

// FetchLog 共享的拉取日志
//
// 磁盘上是一个扁平JSON对象：标的 -> 最近一次成功拉取的日期字符串。
// 每次操作都完整读入再完整重写（临时文件+rename 原子落盘）。
// 条目只增不删，文件会无限增长，这是已知限制。
//
// 读改写全程持有进程级互斥锁，并通过 CompareAndSetDate 提供
// 比较并更新语义：并发的拉取请求不可能都记录成功。
type FetchLog struct {
	mu   sync.Mutex
	path string
}

// NewFetchLog 创建拉取日志
func NewFetchLog(path string) *FetchLog {
	return &FetchLog{path: path}
}

// LastFetchDate 返回一个标的最近一次成功拉取的日期
// 日志文件不存在视为空日志
func (l *FetchLog) LastFetchDate(id string) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return "", false, err
	}

	date, ok := entries[id]
	return date, ok, nil
}

// CompareAndSetDate 仅当当前记录的日期等于 expect 时将其更新为 next
// 标的尚无记录时 expect 传空串。返回是否更新成功
func (l *FetchLog) CompareAndSetDate(id, expect, next string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load()
	if err != nil {
		return false, err
	}

	if entries[id] != expect {
		return false, nil
	}

	entries[id] = next
	if err := l.save(entries); err != nil {
		return false, err
	}

	return true, nil
}

// load 完整读入日志文件
func (l *FetchLog) load() (map[string]string, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read fetch log %s: %w", l.path, err)
	}

	entries := map[string]string{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse fetch log %s: %w", l.path, err)
	}

	return entries, nil
}

// save 完整重写日志文件
func (l *FetchLog) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fetch log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create fetch log dir: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write fetch log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("rename fetch log: %w", err)
	}

	return nil
}
