// Package datenorm 把活动导出里形态各异的日期时间字符串规范化为分钟精度的时间戳。
//
// 规则按固定优先级尝试，首个匹配的规则决定结果：
//  1. YYYY年M月D日(曜日) H:MM（后面可跟 ～/ー/- 与任意文本）
//  2. YYYY-M-D H:MM（后面可跟 : 或 - 与任意文本）
//  3. YYYY年M月D日（无时间，00:00）
//  4. YYYY-M-D（无时间，00:00）
//  5. best-effort 兜底解析（见 fallback.go）
//
// 规则命中但日历非法（例如 2 月 30 日）时直接给出 unparseable，不再继续尝试后续规则。
// 解析失败从不报错，只降级为 unparseable 并保留原文。
package datenorm

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// 规则名，供 Explain 审计使用。
const (
	RuleBlank           = "blank"
	RuleJaDateTime      = "ja_datetime"
	RuleISODateTime     = "iso_datetime"
	RuleJaDate          = "ja_date"
	RuleISODate         = "iso_date"
	RuleFallback        = "fallback"
	RuleNoMatch         = "no_match"
	RuleInvalidCalendar = "invalid_calendar"
)

type rule struct {
	name    string
	re      *regexp.Regexp
	hasTime bool
}

// 只锚定开头：匹配之后的区间/补充说明一律丢弃。
// 输入在匹配前已做全角折叠，因此这里只需要处理半角形态。
var rules = []rule{
	{name: RuleJaDateTime, re: regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日(?:\(.+?\))?\s*(\d{1,2}):(\d{1,2})`), hasTime: true},
	{name: RuleISODateTime, re: regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{1,2})`), hasTime: true},
	{name: RuleJaDate, re: regexp.MustCompile(`^(\d{4})年(\d{1,2})月(\d{1,2})日`)},
	{name: RuleISODate, re: regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)},
}

// Normalizer 持有可替换的兜底解析步骤；零值使用 BestEffort。
type Normalizer struct {
	Fallback Fallback
}

// Default 是包级默认 Normalizer。
var Default = Normalizer{Fallback: BestEffort}

// Normalize 使用 Default 规范化 s。
func Normalize(s string) domain.ParsedDate {
	return Default.Normalize(s)
}

// Normalize 规范化 s；结果的 Original 为 trim 后的输入（空/none 时为空串）。
func (n Normalizer) Normalize(s string) domain.ParsedDate {
	d, _ := n.Explain(s)
	return d
}

// Explain 与 Normalize 相同，但额外返回决定结果的规则名。
func (n Normalizer) Explain(s string) (domain.ParsedDate, string) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return domain.Unparseable(""), RuleBlank
	}

	folded := width.Fold.String(s)
	for _, r := range rules {
		m := r.re.FindStringSubmatch(folded)
		if m == nil {
			continue
		}
		nums := make([]int, 5)
		for i := 1; i < len(m); i++ {
			v, err := strconv.Atoi(m[i])
			if err != nil {
				return domain.Unparseable(s), RuleInvalidCalendar
			}
			nums[i-1] = v
		}
		if !r.hasTime {
			nums[3], nums[4] = 0, 0
		}
		if !validCalendar(nums[0], nums[1], nums[2], nums[3], nums[4]) {
			return domain.Unparseable(s), RuleInvalidCalendar
		}
		return domain.Canonical(nums[0], time.Month(nums[1]), nums[2], nums[3], nums[4], s), r.name
	}

	fb := n.Fallback
	if fb == nil {
		fb = BestEffort
	}
	if t, ok := fb(folded); ok {
		return domain.CanonicalFrom(t, s), RuleFallback
	}
	return domain.Unparseable(s), RuleNoMatch
}

func validCalendar(year, month, day, hour, minute int) bool {
	if year < 1 || month < 1 || month > 12 || day < 1 {
		return false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Year() == year && int(t.Month()) == month && t.Day() == day
}
