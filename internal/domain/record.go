package domain

import (
	"strconv"
	"strings"
)

// Schema 描述核心流程关心的列名；其余列原样透传。
type Schema struct {
	EventName string
	DateTime  string
	Deadline  string
	Format    string
	Detail    string
}

// DefaultSchema 与活动导出文本的表头保持一致。
func DefaultSchema() Schema {
	return Schema{
		EventName: "イベント名",
		DateTime:  "開催日時",
		Deadline:  "申し込み締切日",
		Format:    "開催形式",
		Detail:    "イベント内容詳細",
	}
}

// Required 返回 merge 必须存在的列（顺序固定，便于报错稳定）。
func (s Schema) Required() []string {
	return []string{s.EventName, s.DateTime, s.Deadline}
}

// Record 是一行活动数据。
//
// 不变量：
// - Values 保存所有列的原始字符串（包括两个日期列的原文）
// - DateTime/Deadline 是两个日期列的类型化视图，由 DateNormalizer 填充
// - 列顺序不在 Record 里，由所属 Store/Header 的 Columns 决定
type Record struct {
	Values   map[string]string
	DateTime ParsedDate
	Deadline ParsedDate
}

// NewRecord 按 columns 顺序把 fields 装配成 Record。
// fields 少于 columns 时补 ""，多出的部分丢弃。
func NewRecord(columns []string, fields []string) Record {
	v := make(map[string]string, len(columns))
	for i, c := range columns {
		if i < len(fields) {
			v[c] = fields[i]
		} else {
			v[c] = ""
		}
	}
	return Record{Values: v}
}

// Get 返回列值；列不存在时返回 ""。
func (r Record) Get(col string) string {
	if r.Values == nil {
		return ""
	}
	return r.Values[col]
}

// Store 是有序的记录集合 + 有序的列清单。
type Store struct {
	Columns []string
	Records []Record
}

// Len 返回记录数。
func (s Store) Len() int { return len(s.Records) }

// UniqueColumns 给重名列加序号后缀（a, a.1, a.2），避免 NewRecord 的 map 互相覆盖。
// 后缀若与已有列名冲突则继续递增；不重名的列保持原样。
func UniqueColumns(header []string) []string {
	taken := make(map[string]struct{}, len(header))
	for _, h := range header {
		taken[h] = struct{}{}
	}
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		n, dup := seen[h]
		if !dup {
			seen[h] = 0
			out[i] = h
			continue
		}
		for {
			n++
			c := h + "." + strconv.Itoa(n)
			if _, ok := taken[c]; !ok {
				seen[h] = n
				taken[c] = struct{}{}
				out[i] = c
				break
			}
		}
	}
	return out
}

// UnionColumns 返回 a 的列，再追加 b 中 a 没有的列（保持各自顺序）。
func UnionColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// CleanEventName 是 RecordKey 使用的活动名规范化：去首尾空白，再去首尾双引号。
func CleanEventName(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
