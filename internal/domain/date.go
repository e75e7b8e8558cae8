package domain

import "time"

// CanonicalLayout 是规范时间戳的展示格式（分钟精度，定宽）。
const CanonicalLayout = "2006-01-02 15:04"

// ParsedDate 是日期字段的解析结果：要么是规范时间戳，要么是 unparseable。
//
// 约束：
// - 规范时间戳一律是 UTC 下的“墙上时间”（naive），秒及以下为 0
// - Original 保存原始字符串（已 trim），用于 unparseable 时的回退展示
// - “没给日期”与“给了但格式坏了”的区别体现在 Original 是否为空
type ParsedDate struct {
	t        time.Time
	ok       bool
	Original string
}

// Canonical 由年月日时分构造规范时间戳；调用方负责事先校验日历合法性。
func Canonical(year int, month time.Month, day, hour, minute int, original string) ParsedDate {
	return ParsedDate{
		t:        time.Date(year, month, day, hour, minute, 0, 0, time.UTC),
		ok:       true,
		Original: original,
	}
}

// CanonicalFrom 取 t 在其自身时区下的墙上时间，截断到分钟。
func CanonicalFrom(t time.Time, original string) ParsedDate {
	return Canonical(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), original)
}

// Unparseable 构造一个无法解析的日期，保留原始字符串。
func Unparseable(original string) ParsedDate {
	return ParsedDate{Original: original}
}

// Valid 表示是否为规范时间戳。
func (d ParsedDate) Valid() bool { return d.ok }

// Time 返回规范时间戳；unparseable 时 ok=false。
func (d ParsedDate) Time() (time.Time, bool) { return d.t, d.ok }

// Equal 只比较“规范值”，不比较 Original。
func (d ParsedDate) Equal(o ParsedDate) bool {
	if d.ok != o.ok {
		return false
	}
	if !d.ok {
		return true
	}
	return d.t.Equal(o.t)
}

// WithOriginal 返回替换了 Original 的副本。
func (d ParsedDate) WithOriginal(original string) ParsedDate {
	d.Original = original
	return d
}

func (d ParsedDate) String() string {
	if !d.ok {
		return "unparseable(" + d.Original + ")"
	}
	return d.t.Format(CanonicalLayout)
}
