package domain

// Table 是交给表格存储读写的不透明形态：有序列名 + 字符串行。
//
// 不变量：每行长度与 Columns 相同（读入时已补齐/截断）。
type Table struct {
	Columns []string
	Rows    [][]string
}

// Empty 表示没有列（例如存储文件不存在或只有空表）。
func (t Table) Empty() bool { return len(t.Columns) == 0 }
