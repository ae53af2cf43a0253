package cache

import "time"

// Clock 提供当前时间接口，用于mock测试
type Clock interface {
	Now() time.Time
}

// systemClock 使用系统实际时间
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock 返回系统时钟
func SystemClock() Clock {
	return systemClock{}
}
