package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/infra/fsx"
)

type xlsxStore struct {
	path  string
	sheet string
}

func (s *xlsxStore) Path() string { return s.path }

func (s *xlsxStore) Load(ctx context.Context) (domain.Table, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Table{}, false, err
	}
	fi, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Table{}, false, nil
		}
		return domain.Table{}, false, readErr(s.path, err)
	}
	if fi.IsDir() {
		return domain.Table{}, true, readErr(s.path, &fsx.PathTypeConflictError{Path: s.path, Want: "file", Got: "dir"})
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return domain.Table{}, true, nil
		}
		sheet = list[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return domain.Table{}, true, readErr(s.path, fmt.Errorf("工作表 %q 不存在", sheet))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	if err := restoreDateCells(f, sheet, rows, raw); err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	return normalizeTable(rows), true, nil
}

// restoreDateCells 把日期单元格改写为规范时间戳。
//
// GetRows 返回的是按数字格式渲染后的文本（例如 "May-24"、"04-30-24"），日和时刻会丢失；
// 这里按原始值（Excel 序列日或 ISO 8601）重新换算。只检查渲染值与原始值不同的单元格。
func restoreDateCells(f *excelize.File, sheet string, rows, raw [][]string) error {
	var date1904 bool
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	for i := range rows {
		if i >= len(raw) {
			break
		}
		for j := range rows[i] {
			if j >= len(raw[i]) || raw[i][j] == rows[i][j] {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return err
			}
			t, ok, err := cellTime(f, sheet, cell, raw[i][j], date1904)
			if err != nil {
				return err
			}
			if ok {
				rows[i][j] = t.Format(domain.CanonicalLayout)
			}
		}
	}
	return nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// cellTime 返回日期单元格的时间；不是日期时 ok=false。
func cellTime(f *excelize.File, sheet, cell, raw string, date1904 bool) (t time.Time, ok bool, err error) {
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return time.Time{}, false, err
	}
	switch typ {
	case excelize.CellTypeDate:
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return time.Time{}, false, nil
	}

	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	idx, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return time.Time{}, false, err
	}
	style, err := f.GetStyle(idx)
	if err != nil {
		return time.Time{}, false, err
	}
	if !isDateStyle(style) {
		return time.Time{}, false, nil
	}
	t, err = excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// isDateStyle 判断数字格式是否为日期/时间格式。
func isDateStyle(st *excelize.Style) bool {
	if st == nil {
		return false
	}
	if st.CustomNumFmt != nil {
		return isDateFormatCode(*st.CustomNumFmt)
	}
	switch n := st.NumFmt; {
	case n >= 14 && n <= 22, n >= 27 && n <= 36, n >= 45 && n <= 47, n >= 50 && n <= 58:
		return true
	}
	return false
}

// isDateFormatCode 去掉引号文本、转义字符与 [...] 段后，看是否含年/日/时记号。
// [h]:mm 这类经过时长不算日期。
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	rs := []rune(code)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '\\':
			i++
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	s := strings.ToLower(b.String())
	if strings.Contains(s, "general") {
		return false
	}
	return strings.ContainsAny(s, "ydh")
}

func (s *xlsxStore) Save(ctx context.Context, t domain.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheet = DefaultSheet
	}
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			return writeErr(s.path, err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return writeErr(s.path, err)
	}
	if err := setRow(sw, 1, t.Columns); err != nil {
		return writeErr(s.path, err)
	}
	for i, r := range t.Rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := setRow(sw, i+2, r); err != nil {
			return writeErr(s.path, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return writeErr(s.path, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsx.WriteAtomic(s.path, func(w io.Writer) error { return f.Write(w) }); err != nil {
		return writeErr(s.path, err)
	}
	return nil
}

func setRow(sw *excelize.StreamWriter, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vs := make([]interface{}, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return sw.SetRow(cell, vs)
}
