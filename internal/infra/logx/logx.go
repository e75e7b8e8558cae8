// Package logx 构造运行日志器（stderr，文本或 JSON）。
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	Level  string // panic/fatal/error/warn/info/debug/trace；空=info
	Format string // text/json；空=text
	Out    io.Writer
}

// New 按 cfg 构造 logger。非法 level/format 返回错误（由配置校验层映射为 config_invalid）。
func New(cfg Config) (*logrus.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := logrus.New()
	l.SetLevel(level)
	if cfg.Out != nil {
		l.SetOutput(cfg.Out)
	} else {
		l.SetOutput(os.Stderr)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", FormatText:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
	case FormatJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("非法日志格式：%q（可选 text/json）", cfg.Format)
	}
	return l, nil
}

// ParseLevel 解析日志级别；空串为 info。
func ParseLevel(s string) (logrus.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return logrus.InfoLevel, nil
	}
	lv, err := logrus.ParseLevel(s)
	if err != nil {
		return 0, fmt.Errorf("非法日志级别：%q", s)
	}
	return lv, nil
}

// Discard 返回丢弃所有输出的 logger；Deps 未注入 Log 时的默认值。
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
