package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// FileConfig 对应 evmerge.yaml 的解析结构。
// 布尔项用指针区分“未写”与“写了 false”。
type FileConfig struct {
	Inputs        []string      `yaml:"inputs"`
	Store         string        `yaml:"store"`
	Sheet         string        `yaml:"sheet"`
	Table         string        `yaml:"table"`
	InputEncoding string        `yaml:"input_encoding"`
	SortByDate    *bool         `yaml:"sort_by_date"`
	Ascending     *bool         `yaml:"ascending"`
	DryRun        *bool         `yaml:"dry_run"`
	TopOrganizers int           `yaml:"top_organizers"`
	Columns       ColumnsConfig `yaml:"columns"`
	Log           LogConfig     `yaml:"log"`
}

// ColumnsConfig 覆盖默认列名；未写的项沿用默认。
type ColumnsConfig struct {
	EventName string `yaml:"event_name"`
	DateTime  string `yaml:"datetime"`
	Deadline  string `yaml:"deadline"`
	Format    string `yaml:"format"`
	Detail    string `yaml:"detail"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c ColumnsConfig) schema() (domain.Schema, error) {
	s := domain.DefaultSchema()
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&s.EventName, c.EventName)
	set(&s.DateTime, c.DateTime)
	set(&s.Deadline, c.Deadline)
	set(&s.Format, c.Format)
	set(&s.Detail, c.Detail)

	seen := make(map[string]struct{}, 3)
	for _, col := range s.Required() {
		if _, dup := seen[col]; dup {
			return domain.Schema{}, fmt.Errorf("columns 中活动名/开催日时/截止日不能指向同一列：%q", col)
		}
		seen[col] = struct{}{}
	}
	return s, nil
}

// readFileConfig 读取并解析 YAML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
