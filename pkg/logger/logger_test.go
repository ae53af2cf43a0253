package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 测试日志级别解析与非法级别兜底
func TestInit(t *testing.T) {
	Init(Config{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, GetLogger().GetLevel())

	Init(Config{Level: "not-a-level"})
	assert.Equal(t, logrus.InfoLevel, GetLogger().GetLevel())
}

// WithComponent 返回带组件字段的日志器
func TestWithComponent(t *testing.T) {
	Init(Config{Level: "info"})

	entry := WithComponent("Repository")
	require.NotNil(t, entry)
	assert.Equal(t, "Repository", entry.Data["component"])
}
