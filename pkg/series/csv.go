package series

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// csvHeader 数据文件的固定列
var csvHeader = []string{"trade_time", "open", "high", "low", "close", "vol", "amount"}

// ReadCSV 读取一个分区文件的全部K线
// 列为 trade_time,open,high,low,close,vol,amount，时间格式见 TimeLayout；
// 表头缺失或任何一行解析失败都作为错误返回，不会静默跳过
func ReadCSV(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: missing header")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < len(csvHeader) || header[0] != csvHeader[0] {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var s Series
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s = append(s, bar)
	}

	return s, nil
}

// WriteCSV 将K线序列整体写出为标准列格式
func WriteCSV(w io.Writer, s Series) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, bar := range s {
		row := []string{
			bar.Time.Format(TimeLayout),
			formatFloat(bar.Open),
			formatFloat(bar.High),
			formatFloat(bar.Low),
			formatFloat(bar.Close),
			formatFloat(bar.Volume),
			formatFloat(bar.Amount),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func parseRow(record []string) (Bar, error) {
	if len(record) < len(csvHeader) {
		return Bar{}, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(record))
	}

	ts, err := parseTime(record[0])
	if err != nil {
		return Bar{}, err
	}

	fields := make([]float64, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return Bar{}, fmt.Errorf("column %s: %w", csvHeader[i+1], err)
		}
		fields[i] = v
	}

	return Bar{
		Time:   ts,
		Open:   fields[0],
		High:   fields[1],
		Low:    fields[2],
		Close:  fields[3],
		Volume: fields[4],
		Amount: fields[5],
	}, nil
}

// parseTime 将时间列归一为统一表示
// 兼容不带时分秒的日线写法 "2006-01-02"
func parseTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(TimeLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("column trade_time: %q", s)
	}
	return t, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
