package datenorm

import (
	"time"

	"github.com/araddon/dateparse"
)

// Fallback 是规则链之后的 best-effort 兜底解析。
// 返回 ok=false 表示无法（或不应）给出结果；实现不得 panic 到调用方。
type Fallback func(s string) (time.Time, bool)

// BestEffort 使用 dateparse 的严格模式：mm/dd 与 dd/mm 有歧义时视为失败。
func BestEffort(s string) (t time.Time, ok bool) {
	defer func() {
		// dateparse 对少数畸形输入会 panic；兜底步骤一律降级为失败。
		if r := recover(); r != nil {
			t, ok = time.Time{}, false
		}
	}()

	parsed, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// NoFallback 关闭兜底解析（只认四条显式规则）。
func NoFallback(string) (time.Time, bool) { return time.Time{}, false }
