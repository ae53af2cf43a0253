package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 日志文件不存在视为空日志
func TestFetchLog_Missing(t *testing.T) {
	l := NewFetchLog(filepath.Join(t.TempDir(), "fetch_log.json"))

	date, ok, err := l.LastFetchDate("000001.SZ")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, date)
}

// 测试比较并更新语义
func TestFetchLog_CompareAndSetDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetch_log.json")
	l := NewFetchLog(path)

	// 无记录时 expect 为空串
	ok, err := l.CompareAndSetDate("000001.SZ", "", "2022-01-03")
	require.NoError(t, err)
	assert.True(t, ok)

	date, found, err := l.LastFetchDate("000001.SZ")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "2022-01-03", date)

	// 期望值不匹配时不更新
	ok, err = l.CompareAndSetDate("000001.SZ", "", "2022-01-04")
	require.NoError(t, err)
	assert.False(t, ok)

	date, _, _ = l.LastFetchDate("000001.SZ")
	assert.Equal(t, "2022-01-03", date)

	// 期望值匹配时推进
	ok, err = l.CompareAndSetDate("000001.SZ", "2022-01-03", "2022-01-04")
	require.NoError(t, err)
	assert.True(t, ok)
}

// 两个并发的更新者只有一个能赢
func TestFetchLog_ConcurrentWinners(t *testing.T) {
	l := NewFetchLog(filepath.Join(t.TempDir(), "fetch_log.json"))

	wins := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			ok, err := l.CompareAndSetDate("000001.SZ", "", "2022-01-03")
			assert.NoError(t, err)
			wins <- ok
		}()
	}

	a, b := <-wins, <-wins
	assert.True(t, a != b, "exactly one writer must win")
}

// 日志在磁盘上是扁平JSON对象，可跨实例读取
func TestFetchLog_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetch_log.json")

	l := NewFetchLog(path)
	_, err := l.CompareAndSetDate("000001.SZ", "", "2022-01-03")
	require.NoError(t, err)
	_, err = l.CompareAndSetDate("600519.SH", "", "2022-01-04")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"000001.SZ"`)

	l2 := NewFetchLog(path)
	date, ok, err := l2.LastFetchDate("600519.SH")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2022-01-04", date)
}
