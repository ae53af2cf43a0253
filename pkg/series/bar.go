package series

import (
	"time"
)

// TimeLayout 数据文件中 trade_time 列的时间格式
const TimeLayout = "2006-01-02 15:04:05"

// Bar 一个时间桶内的K线数据
type Bar struct {
	Time   time.Time `json:"trade_time"` // 时间戳
	Open   float64   `json:"open"`       // 开盘价
	High   float64   `json:"high"`       // 最高价
	Low    float64   `json:"low"`        // 最低价
	Close  float64   `json:"close"`      // 收盘价
	Volume float64   `json:"vol"`        // 成交量
	Amount float64   `json:"amount"`     // 成交额
}

// Series 同一标的的K线序列
// 规范序列（合并去重后）按时间升序且时间戳唯一
type Series []Bar
