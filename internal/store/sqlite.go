package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/infra/fsx"
)

// rowColumn 记录行序；读回时按它排序，不作为业务列暴露。
const rowColumn = "_evmerge_row"

type sqliteStore struct {
	path  string
	table string
}

func (s *sqliteStore) Path() string { return s.path }

func (s *sqliteStore) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败：%w", err)
	}
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	return db, nil
}

func (s *sqliteStore) Load(ctx context.Context) (domain.Table, bool, error) {
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

	db, err := s.open()
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	defer db.Close()

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, s.table).Scan(&name)
	if err == sql.ErrNoRows {
		return domain.Table{}, true, nil
	}
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}

	cols, err := s.columns(ctx, db)
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	if len(cols) == 0 {
		return domain.Table{}, true, nil
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", strings.Join(quoted, ", "), quoteIdent(s.table), quoteIdent(rowColumn))
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	defer rows.Close()

	t := domain.Table{Columns: cols}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.Table{}, true, readErr(s.path, err)
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = v.String
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.Table{}, true, readErr(s.path, err)
	}
	return t, true, nil
}

// columns 返回业务列（按建表顺序，不含 rowColumn）。
func (s *sqliteStore) columns(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(s.table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hasRow bool
	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if name == rowColumn {
			hasRow = true
			continue
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !hasRow && len(cols) > 0 {
		return nil, fmt.Errorf("表 %q 缺少行序列 %q", s.table, rowColumn)
	}
	return cols, nil
}

func (s *sqliteStore) Save(ctx context.Context, t domain.Table) error {
	for _, c := range t.Columns {
		if c == rowColumn {
			return writeErr(s.path, fmt.Errorf("列名 %q 保留给内部使用", rowColumn))
		}
	}
	if fi, err := os.Stat(s.path); err == nil && fi.IsDir() {
		return writeErr(s.path, &fsx.PathTypeConflictError{Path: s.path, Want: "file", Got: "dir"})
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return writeErr(s.path, err)
	}

	db, err := s.open()
	if err != nil {
		return writeErr(s.path, err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return writeErr(s.path, err)
	}
	defer func() { _ = tx.Rollback() }()

	table := quoteIdent(s.table)
	defs := []string{quoteIdent(rowColumn) + " INTEGER PRIMARY KEY"}
	names := make([]string, 0, len(t.Columns))
	marks := make([]string, 0, len(t.Columns)+1)
	marks = append(marks, "?")
	for _, c := range t.Columns {
		defs = append(defs, quoteIdent(c)+" TEXT")
		names = append(names, quoteIdent(c))
		marks = append(marks, "?")
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
		return writeErr(s.path, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return writeErr(s.path, err)
	}

	ins, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(append([]string{quoteIdent(rowColumn)}, names...), ", "), strings.Join(marks, ", ")))
	if err != nil {
		return writeErr(s.path, err)
	}
	defer ins.Close()

	for i, r := range t.Rows {
		args := make([]any, 0, len(t.Columns)+1)
		args = append(args, i+1)
		for j := range t.Columns {
			v := ""
			if j < len(r) {
				v = r[j]
			}
			args = append(args, v)
		}
		if _, err := ins.ExecContext(ctx, args...); err != nil {
			return writeErr(s.path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeErr(s.path, err)
	}
	return nil
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
