package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ExcludedDir 是工作目录名；扫描时永久排除。
const ExcludedDir = ".evmerge"

// Inputs 把 CLI/配置给出的输入展开为有序的导出文本文件列表。
//
// 规则：
// - 文件：原样保留（不检查扩展名）
// - 目录：递归收集 .txt / .csv 文件，排除 .evmerge/ 与以 '.' 开头的目录；目录内按相对路径排序
// - 不存在的路径直接报错
// - 同一文件出现多次只保留第一次
func Inputs(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}

	for _, p := range paths {
		p = filepath.Clean(strings.TrimSpace(p))
		fi, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			add(p)
			continue
		}
		files, err := scanDir(p)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("目录 %q 下没有 .txt/.csv 文件", p)
		}
		for _, f := range files {
			add(f)
		}
	}
	return out, nil
}

func scanDir(root string) ([]string, error) {
	type entry struct{ abs, rel string }
	files := make([]entry, 0, 16)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && isExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isInputExt(strings.ToLower(filepath.Ext(d.Name()))) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, entry{abs: path, rel: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].rel < files[j].rel })
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.abs
	}
	return out, nil
}

func isInputExt(ext string) bool {
	switch ext {
	case ".txt", ".csv":
		return true
	default:
		return false
	}
}

func isExcludedDir(name string) bool {
	return name == ExcludedDir || strings.HasPrefix(name, ".")
}
