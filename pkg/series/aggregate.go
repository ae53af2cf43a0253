package series

import (
	"time"
)

// Period 聚合周期
type Period string

const (
	PeriodNative Period = "native" // 原始粒度，不做聚合
	PeriodDay    Period = "day"    // 按自然日聚合（分钟数据转日线）
	PeriodWeek   Period = "week"   // 按自然周聚合
	PeriodMonth  Period = "month"  // 按自然月聚合
)

// ParsePeriod 解析周期参数，未知取值回落到原始粒度
func ParsePeriod(s string) Period {
	switch Period(s) {
	case PeriodDay:
		return PeriodDay
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	default:
		return PeriodNative
	}
}

// Aggregate 将规范序列降采样到指定周期
//
// 每个输出桶：open取首行、high取最大、low取最小、close取末行、
// vol与amount求和。没有任何输入行的桶（节假日）不会出现在结果里。
// 输入必须已按时间升序；native 周期原样返回输入，不做拷贝也不修改。
// 对同一周期重复聚合是幂等的：桶标签落在桶内，再聚合仍归入同一个桶。
func Aggregate(s Series, p Period) Series {
	if p == PeriodNative || len(s) == 0 {
		return s
	}

	out := make(Series, 0, len(s))
	var cur Bar
	var curKey time.Time
	open := false

	for _, bar := range s {
		key := bucketKey(bar.Time, p)
		if !open || !key.Equal(curKey) {
			if open {
				out = append(out, cur)
			}
			cur = bar
			cur.Time = key
			curKey = key
			open = true
			continue
		}

		if bar.High > cur.High {
			cur.High = bar.High
		}
		if bar.Low < cur.Low {
			cur.Low = bar.Low
		}
		cur.Close = bar.Close
		cur.Volume += bar.Volume
		cur.Amount += bar.Amount
	}

	if open {
		out = append(out, cur)
	}

	return out
}

// bucketKey 计算某行所属桶的标签时间
// 日桶标签为当日零点，周桶标签为该周的周日（周日结束的自然周），
// 月桶标签为当月1日
func bucketKey(t time.Time, p Period) time.Time {
	switch p {
	case PeriodDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case PeriodWeek:
		days := 7 - int(t.Weekday())
		if t.Weekday() == time.Sunday {
			days = 0
		}
		sunday := t.AddDate(0, 0, days)
		return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 0, 0, 0, 0, t.Location())
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return t
	}
}
