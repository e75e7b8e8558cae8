package run

import (
	"time"

	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/input"
)

// Observer 用于把“运行进度/阶段/输入文件结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
type Observer interface {
	// OnStart 在 Execute 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnInputDone 在每个输入文件处理完（去重 + 解析）后调用。
	OnInputDone(idx, total int, path string, res InputResult, dur time.Duration)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
}

// InputResult 是单个输入文件的处理结果。
type InputResult struct {
	Dedup   input.DedupResult
	Records int
	Empty   bool
}

// 阶段名。
const (
	PhaseInput = "input"
	PhaseLoad  = "load"
	PhaseMerge = "merge"
	PhaseWrite = "write"
	PhaseStats = "stats"
)

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig) {}
func (nopObserver) OnInputDone(int, int, string, InputResult, time.Duration) {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
