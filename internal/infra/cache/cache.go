package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/evmerge/internal/infra/fsx"
)

// DirName 是存储文件旁的工作目录名。
const DirName = ".evmerge"

// Store 提供 <store 所在目录>/.evmerge/ 下的工作文件读写：
// 每次运行的去重中间文件、最近一次的 report.json。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - 正常运行：允许写（ReadOnly=false）
type Store struct {
	Root     string // <store 所在目录>/.evmerge
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

// New 以存储文件路径定位工作目录。
func New(storePath string, readOnly bool) Store {
	dir := filepath.Dir(filepath.Clean(strings.TrimSpace(storePath)))
	return Store{
		Root:     filepath.Join(dir, DirName),
		ReadOnly: readOnly,
	}
}

// ReportPath 返回最近一次运行报告的路径。
func (s Store) ReportPath() string {
	return filepath.Join(s.Root, "report.json")
}

// DedupPath 返回某次运行中某个输入文件的去重中间文件路径：
// <root>/runs/<run id>/<输入文件名>.dedup.txt
func (s Store) DedupPath(runID, input string) (string, error) {
	id, err := cleanRunID(runID)
	if err != nil {
		return "", err
	}
	base := filepath.Base(strings.TrimSpace(input))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("非法输入文件名：%q", input)
	}
	return filepath.Join(s.Root, "runs", id, base+".dedup.txt"), nil
}

// PrepareDedupPath 与 DedupPath 相同，但只读模式下返回 ErrReadOnly。
func (s Store) PrepareDedupPath(runID, input string) (string, error) {
	if s.ReadOnly {
		return "", ErrReadOnly
	}
	return s.DedupPath(runID, input)
}

// PruneRuns 删除 runs/ 下除 keepRunID 以外的全部运行目录，只留本次的中间文件。
// runs/ 不存在时什么都不做。
func (s Store) PruneRuns(keepRunID string) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	keep, err := cleanRunID(keepRunID)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.Root, "runs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReadReport 读取最近一次的 report.json；不存在时 ok=false。
func (s Store) ReadReport() ([]byte, bool, error) {
	b, err := os.ReadFile(s.ReportPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// WriteReport 覆盖写 report.json。
func (s Store) WriteReport(b []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	return fsx.WriteFileAtomic(s.ReportPath(), b)
}

var runIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func cleanRunID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("run id 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !runIDRE.MatchString(id) {
		return "", fmt.Errorf("非法 run id：%q", id)
	}
	return id, nil
}
