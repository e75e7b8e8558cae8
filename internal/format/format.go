// Package format 把规范时间戳渲染回可持久化的展示字符串。
package format

import (
	"github.com/John-Robertt/evmerge/internal/domain"
)

// Date 渲染单个日期字段：
// - 规范时间戳：YYYY-MM-DD HH:MM；年份超出 1..9999 时回退到 time.Time 的默认字符串
// - unparseable：有原文用原文，否则空串
func Date(d domain.ParsedDate) string {
	t, ok := d.Time()
	if !ok {
		return d.Original
	}
	if y := t.Year(); y < 1 || y > 9999 {
		return t.String()
	}
	return t.Format(domain.CanonicalLayout)
}

// Render 返回记录两个日期字段的展示字符串。
func Render(r domain.Record) (dateTime, deadline string) {
	return Date(r.DateTime), Date(r.Deadline)
}

// ToTable 把 Store 转成可写出的 Table：日期列用 Render 的结果，其余列原样，缺失值为 ""。
func ToTable(s domain.Store, schema domain.Schema) domain.Table {
	t := domain.Table{
		Columns: append([]string(nil), s.Columns...),
		Rows:    make([][]string, 0, len(s.Records)),
	}
	for _, r := range s.Records {
		dt, dl := Render(r)
		row := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			switch c {
			case schema.DateTime:
				row[i] = dt
			case schema.Deadline:
				row[i] = dl
			default:
				row[i] = r.Get(c)
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
