package series

import (
	"errors"
	"sort"
)

// ErrNoData 所有来源合并后没有任何数据
var ErrNoData = errors.New("no data")

// Merge 将多个来源的批次合并为一条规范序列
//
// 批次按参数顺序拼接后整体按时间升序稳定排序，再按时间戳去重，
// 保留排序后首次出现的记录。稳定排序保证同一时间戳下靠前的批次获胜，
// 因此调用方通过传参顺序表达优先级：本地分区在前、远程/补齐数据在后，
// 重叠日期上本地数据胜出。
//
// 合并结果为空时返回 ErrNoData，而不是伪装成功的空序列。
func Merge(batches ...Series) (Series, error) {
	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total == 0 {
		return nil, ErrNoData
	}

	merged := make(Series, 0, total)
	for _, b := range batches {
		merged = append(merged, b...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})

	// 原地去重，保留每个时间戳的第一条
	out := merged[:1]
	for _, bar := range merged[1:] {
		if !bar.Time.Equal(out[len(out)-1].Time) {
			out = append(out, bar)
		}
	}

	return out, nil
}
