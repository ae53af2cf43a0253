package series

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(date string, close float64) Bar {
	return Bar{Time: day(date), Open: close, High: close, Low: close, Close: close, Volume: 1, Amount: 1}
}

// 测试合并排序与时间戳去重
func TestMerge_SortAndDedup(t *testing.T) {
	a := Series{bar("2022-01-05", 10), bar("2022-01-03", 9)}
	b := Series{bar("2022-01-04", 8), bar("2022-01-03", 7)}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	// 升序且唯一
	assert.Equal(t, day("2022-01-03"), merged[0].Time)
	assert.Equal(t, day("2022-01-04"), merged[1].Time)
	assert.Equal(t, day("2022-01-05"), merged[2].Time)

	// 重叠时间戳保留靠前批次的记录
	assert.Equal(t, 9.0, merged[0].Close)
}

// 跨年分区重叠同一天时，本地批次（靠前）必须胜出
func TestMerge_LocalBatchWinsOverRemote(t *testing.T) {
	local2021 := Series{bar("2021-12-31", 15)}
	local2022 := Series{bar("2022-01-03", 16)}
	remote := Series{bar("2022-01-03", 99), bar("2022-01-04", 17)}

	merged, err := Merge(local2021, local2022, remote)
	require.NoError(t, err)
	require.Len(t, merged, 3)

	assert.Equal(t, 16.0, merged[1].Close, "local close must win on 2022-01-03")
	assert.Equal(t, 17.0, merged[2].Close)
}

// 每个时间戳恰好保留一条记录
func TestMerge_UniqueTimestamps(t *testing.T) {
	a := Series{bar("2022-01-03", 1), bar("2022-01-03", 2)}
	b := Series{bar("2022-01-03", 3)}

	merged, err := Merge(a, b)
	require.NoError(t, err)
	assert.Len(t, merged, 1)
	assert.Equal(t, 1.0, merged[0].Close)
}

// 全部来源为空时返回 ErrNoData 而不是空序列
func TestMerge_Empty(t *testing.T) {
	_, err := Merge()
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Merge(Series{}, nil)
	assert.ErrorIs(t, err, ErrNoData)
}
