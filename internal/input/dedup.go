// Package input 负责输入文本的预处理：按行去重、字符编码解码。
package input

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/John-Robertt/evmerge/internal/infra/fsx"
)

// DedupResult 是一次按行去重的计数。
type DedupResult struct {
	Lines   int `json:"lines"`
	Unique  int `json:"unique"`
	Dropped int `json:"dropped"`
}

// lineSet 按“行 + 行尾”逐字节判等：`a\n` 与 `a\r\n`、末行无换行的 `a` 互不相同。
type lineSet map[string]struct{}

func (s lineSet) firstSeen(line []byte) bool {
	if _, ok := s[string(line)]; ok {
		return false
	}
	s[string(line)] = struct{}{}
	return true
}

// DedupLines 读取 inputPath，保留每个完全相同行的首次出现，原子写入 outputPath。
// inputPath 与 outputPath 可以相同。
func DedupLines(inputPath, outputPath string) (DedupResult, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return DedupResult{}, err
	}
	defer f.Close()

	var res DedupResult
	err = fsx.WriteAtomic(outputPath, func(w io.Writer) error {
		r, err := DedupStream(f, w)
		res = r
		return err
	})
	if err != nil {
		return res, fmt.Errorf("去重写出失败：%w", err)
	}
	return res, nil
}

// DedupStream 从 r 读行、向 w 写出首次出现的行。
func DedupStream(r io.Reader, w io.Writer) (DedupResult, error) {
	var res DedupResult
	seen := make(lineSet)
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			res.Lines++
			if seen.firstSeen(line) {
				res.Unique++
				if _, werr := w.Write(line); werr != nil {
					return res, werr
				}
			} else {
				res.Dropped++
			}
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
}

// DedupBytes 是内存版本（dry-run 不落盘时使用）。
func DedupBytes(b []byte) ([]byte, DedupResult) {
	var out bytes.Buffer
	out.Grow(len(b))
	res, _ := DedupStream(bytes.NewReader(b), &out)
	return out.Bytes(), res
}
