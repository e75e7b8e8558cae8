// Package parse 把逗号分隔的活动导出文本切分为 Record。
package parse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// ErrEmptyInput 表示输入为空或只有空白；调用方应跳过本次 merge，不改动存储。
var ErrEmptyInput = errors.New("输入数据为空")

// MissingColumnError 表示表头缺少 merge 所需的列。
type MissingColumnError struct {
	Column string
	Source string // 输入文件或存储路径，便于定位
}

func (e *MissingColumnError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("缺少必需列 %q", e.Column)
	}
	return fmt.Sprintf("%s 缺少必需列 %q", e.Source, e.Column)
}

// Result 是一次解析的产物。
type Result struct {
	Header  []string
	Records []domain.Record

	// SkippedBlank / SkippedHeader 只用于日志。
	SkippedBlank  int
	SkippedHeader int
}

// Parse 解析 text：首个非空行为表头，其余每行一条记录。
//
// 规则：
// - 空行、与表头行逐字节相同的行跳过（拼接导出时表头会重复出现）
// - 字段少于表头时补 ""，多于表头时截断（不报错）
// - 不处理引号：按逗号直接切分
// - 重名列按 a, a.1, a.2 改名，每列的值都保留
func Parse(text string) (Result, error) {
	lines := splitLines(strings.TrimSpace(strings.TrimPrefix(text, "\ufeff")))
	if len(lines) == 0 {
		return Result{}, ErrEmptyInput
	}

	headerLine := lines[0]
	header := strings.Split(headerLine, ",")
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	header = domain.UniqueColumns(header)

	res := Result{
		Header:  header,
		Records: make([]domain.Record, 0, len(lines)-1),
	}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			res.SkippedBlank++
			continue
		}
		if line == headerLine {
			res.SkippedHeader++
			continue
		}
		res.Records = append(res.Records, domain.NewRecord(header, strings.Split(line, ",")))
	}
	return res, nil
}

// RequireColumns 校验 header 含有 schema 的必需列。
func RequireColumns(header []string, schema domain.Schema, source string) error {
	set := make(map[string]struct{}, len(header))
	for _, h := range header {
		set[h] = struct{}{}
	}
	for _, c := range schema.Required() {
		if _, ok := set[c]; !ok {
			return &MissingColumnError{Column: c, Source: source}
		}
	}
	return nil
}

// splitLines 按 \r\n、\n、\r 切分行（不保留行尾）。
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}
