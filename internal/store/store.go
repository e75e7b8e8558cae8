// Package store 读写持久化的活动表格。表格本身对核心流程不透明：只交换列名与字符串行。
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// Store 是一个表格文件。
type Store interface {
	Path() string
	// Load 读取整张表；文件不存在时 exists=false 且 err=nil。
	Load(ctx context.Context) (t domain.Table, exists bool, err error)
	// Save 整表覆盖写入；失败时原文件保持不变。
	Save(ctx context.Context, t domain.Table) error
}

// Options 是各后端的可选参数。
type Options struct {
	Sheet string // xlsx：读取/写出的工作表名；空=读第一个工作表、写 Sheet1
	Table string // sqlite：表名；空=events
}

const (
	DefaultSheet = "Sheet1"
	DefaultTable = "events"
)

// Error 是存储层的结构化错误，Code 取 domain.ErrCodeStore*。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case domain.ErrCodeStoreUnsupported:
		return fmt.Sprintf("不支持的存储格式：%q：%v", e.Path, e.Err)
	case domain.ErrCodeStoreWriteFailed:
		return fmt.Sprintf("写入存储失败：%q：%v", e.Path, e.Err)
	default:
		return fmt.Sprintf("读取存储失败：%q：%v", e.Path, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf 返回 err 链上 *Error 的 Code；不是存储错误时返回 ""。
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func readErr(path string, err error) error {
	return &Error{Code: domain.ErrCodeStoreReadFailed, Path: path, Err: err}
}

func writeErr(path string, err error) error {
	return &Error{Code: domain.ErrCodeStoreWriteFailed, Path: path, Err: err}
}

// Open 按扩展名选择后端：.xlsx → excelize；.db/.sqlite/.sqlite3 → SQLite。
func Open(path string, opts Options) (Store, error) {
	path = filepath.Clean(strings.TrimSpace(path))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		sheet := strings.TrimSpace(opts.Sheet)
		return &xlsxStore{path: path, sheet: sheet}, nil
	case ".db", ".sqlite", ".sqlite3":
		table := strings.TrimSpace(opts.Table)
		if table == "" {
			table = DefaultTable
		}
		return &sqliteStore{path: path, table: table}, nil
	default:
		return nil, &Error{
			Code: domain.ErrCodeStoreUnsupported,
			Path: path,
			Err:  errors.New("仅支持 .xlsx / .db / .sqlite / .sqlite3"),
		}
	}
}

// normalizeTable 以首行为表头：表头 trim，数据行补齐/截断到表头宽度，全空行丢弃。
func normalizeTable(rows [][]string) domain.Table {
	if len(rows) == 0 {
		return domain.Table{}
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	for len(header) > 0 && header[len(header)-1] == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return domain.Table{}
	}
	header = domain.UniqueColumns(header)

	t := domain.Table{Columns: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, r := range rows[1:] {
		if blankRow(r) {
			continue
		}
		row := make([]string, len(header))
		copy(row, r)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blankRow(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
