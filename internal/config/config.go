package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/infra/logx"
	"github.com/John-Robertt/evmerge/internal/input"
	"github.com/John-Robertt/evmerge/internal/stats"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件/环境变量无法解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

const (
	// DefaultConfigName 是 cwd 下自动发现的配置文件名。
	DefaultConfigName = "evmerge.yaml"
	// DefaultStore 是未指定存储时使用的表格文件。
	DefaultStore = "event_data.xlsx"
	// DefaultInput 是未指定输入时读取的导出文本。
	DefaultInput = "csv_data.txt"
)

// CLIArgs 是命令行入口，保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --dry-run=false 必须能覆盖 dry_run: true。
type CLIArgs struct {
	ConfigPath string
	Inputs     []string

	Store    string
	StoreSet bool

	Sheet    string
	SheetSet bool

	InputEncoding    string
	InputEncodingSet bool

	SortByDate    bool
	SortByDateSet bool

	Ascending    bool
	AscendingSet bool

	DryRun    bool
	DryRunSet bool

	LogLevel    string
	LogLevelSet bool

	LogFormat    string
	LogFormatSet bool
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigFile 是实际读取的配置文件；未读取时为空。
	ConfigFile string

	Inputs []string
	Store  string
	Sheet  string
	Table  string

	InputEncoding string

	SortByDate bool
	Ascending  bool
	DryRun     bool

	Schema        domain.Schema
	TopOrganizers int

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件与环境变量，并与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) --config 或 EVMERGE_CONFIG 指定：必须存在
// 2) 否则尝试 <cwd>/evmerge.yaml（可选）
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
// 配置文件里的相对路径以配置文件所在目录为基准；CLI/环境变量里的以 cwd 为基准。
func LoadEffective(cwd string, environ map[string]string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	ec, err := parseEnv(environ)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: err}
	}

	cfgPath, explicit := "", false
	switch {
	case strings.TrimSpace(cli.ConfigPath) != "":
		cfgPath, explicit = absCleanFrom(cwdAbs, cli.ConfigPath), true
	case ec.Config != nil && strings.TrimSpace(*ec.Config) != "":
		cfgPath, explicit = absCleanFrom(cwdAbs, *ec.Config), true
	default:
		cfgPath = filepath.Join(cwdAbs, DefaultConfigName)
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if explicit {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	return merge(cwdAbs, cfgPath, cli, ec, fc)
}

func merge(cwdAbs, cfgPath string, cli CLIArgs, ec EnvConfig, fc FileConfig) (EffectiveConfig, error) {
	invalid := func(err error) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	fileBase := cwdAbs
	if cfgPath != "" {
		fileBase = filepath.Dir(cfgPath)
	}

	eff := EffectiveConfig{ConfigFile: cfgPath}

	// inputs：CLI > 配置文件 > 默认
	switch {
	case len(cli.Inputs) > 0:
		for _, p := range cli.Inputs {
			eff.Inputs = append(eff.Inputs, absCleanFrom(cwdAbs, p))
		}
	case len(fc.Inputs) > 0:
		for _, p := range fc.Inputs {
			eff.Inputs = append(eff.Inputs, absCleanFrom(fileBase, p))
		}
	default:
		eff.Inputs = []string{absCleanFrom(cwdAbs, DefaultInput)}
	}

	// store：CLI > env > config > 默认
	switch {
	case cli.StoreSet && strings.TrimSpace(cli.Store) != "":
		eff.Store = absCleanFrom(cwdAbs, cli.Store)
	case ec.Store != nil && strings.TrimSpace(*ec.Store) != "":
		eff.Store = absCleanFrom(cwdAbs, *ec.Store)
	case strings.TrimSpace(fc.Store) != "":
		eff.Store = absCleanFrom(fileBase, fc.Store)
	default:
		eff.Store = absCleanFrom(cwdAbs, DefaultStore)
	}

	eff.Sheet = pickString(cli.Sheet, cli.SheetSet, ec.Sheet, fc.Sheet, "")
	eff.Table = pickString("", false, ec.Table, fc.Table, "")

	enc, err := input.NormalizeEncoding(pickString(cli.InputEncoding, cli.InputEncodingSet, ec.InputEncoding, fc.InputEncoding, input.EncodingUTF8))
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	eff.InputEncoding = enc

	eff.SortByDate = pickBool(cli.SortByDate, cli.SortByDateSet, ec.SortByDate, fc.SortByDate, false)
	eff.Ascending = pickBool(cli.Ascending, cli.AscendingSet, ec.Ascending, fc.Ascending, true)
	eff.DryRun = pickBool(cli.DryRun, cli.DryRunSet, ec.DryRun, fc.DryRun, false)

	eff.LogLevel = pickString(cli.LogLevel, cli.LogLevelSet, ec.LogLevel, fc.Log.Level, "info")
	if _, err := logx.ParseLevel(eff.LogLevel); err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	eff.LogFormat = strings.ToLower(pickString(cli.LogFormat, cli.LogFormatSet, ec.LogFormat, fc.Log.Format, logx.FormatText))
	if eff.LogFormat != logx.FormatText && eff.LogFormat != logx.FormatJSON {
		return EffectiveConfig{}, invalid(fmt.Errorf("log.format 只能是 text 或 json，实际是 %q", eff.LogFormat))
	}

	top := fc.TopOrganizers
	if ec.TopOrganizers != nil {
		top = *ec.TopOrganizers
	}
	if top < 0 {
		return EffectiveConfig{}, invalid(fmt.Errorf("top_organizers 不能为负数：%d", top))
	}
	if top == 0 {
		top = stats.DefaultTopN
	}
	eff.TopOrganizers = top

	schema, err := fc.Columns.schema()
	if err != nil {
		return EffectiveConfig{}, invalid(err)
	}
	eff.Schema = schema

	return eff, nil
}

func pickString(cliVal string, cliSet bool, envVal *string, fileVal, def string) string {
	switch {
	case cliSet && strings.TrimSpace(cliVal) != "":
		return strings.TrimSpace(cliVal)
	case envVal != nil && strings.TrimSpace(*envVal) != "":
		return strings.TrimSpace(*envVal)
	case strings.TrimSpace(fileVal) != "":
		return strings.TrimSpace(fileVal)
	default:
		return def
	}
}

func pickBool(cliVal, cliSet bool, envVal, fileVal *bool, def bool) bool {
	switch {
	case cliSet:
		return cliVal
	case envVal != nil:
		return *envVal
	case fileVal != nil:
		return *fileVal
	default:
		return def
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
