package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/evmerge/internal/app/run"
	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/infra/cache"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约。
// run 层只发事件，CLI 决定如何展示。
type progressUI struct {
	w io.Writer

	mu        sync.Mutex
	startedAt time.Time
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "merge"
	modeHint := ""
	if eff.DryRun {
		mode = "dry-run"
		modeHint = " (不写存储/不写工作目录)"
	}

	fmt.Fprintf(p.w, "[%s] evmerge run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  inputs: %s\n", formatList(eff.Inputs))
	fmt.Fprintf(p.w, "  store: %s\n", eff.Store)
	if eff.Sheet != "" {
		fmt.Fprintf(p.w, "  sheet: %s\n", eff.Sheet)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  encoding: %s\n", eff.InputEncoding)
	fmt.Fprintf(p.w, "  sort: %s\n", formatSort(eff.SortByDate, eff.Ascending))
	if !eff.DryRun {
		fmt.Fprintf(p.w, "  workspace: %s\n", cache.New(eff.Store, false).Root)
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnInputDone(idx, total int, path string, res run.InputResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := truncate(filepath.Base(path), 80)
	if res.Empty {
		fmt.Fprintf(p.w, "[%d/%d] %s EMPTY (空输入，跳过) (%s)\n", idx, total, name, formatShortDuration(dur))
		return
	}
	fmt.Fprintf(p.w, "[%d/%d] %s OK lines=%d dropped_lines=%d records=%d (%s)\n",
		idx, total, name, res.Dedup.Lines, res.Dedup.Dropped, res.Records, formatShortDuration(dur),
	)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhaseInput:
		fmt.Fprintf(p.w, "输入: files=%d lines=%d dropped_lines=%d records=%d (%s)\n",
			intField(fields, "files"),
			intField(fields, "lines"),
			intField(fields, "dropped_lines"),
			intField(fields, "records"),
			formatShortDuration(dur),
		)
	case run.PhaseLoad:
		state := "ok"
		switch {
		case boolField(fields, "unreadable"):
			state = "unreadable"
		case !boolField(fields, "exists"):
			state = "new"
		}
		fmt.Fprintf(p.w, "读取存储: %s records=%d (%s)\n", state, intField(fields, "records"), formatShortDuration(dur))
	case run.PhaseMerge:
		fmt.Fprintf(p.w, "合并: accepted=%d dropped=%d backfilled=%d total=%d (%s)\n",
			intField(fields, "accepted"),
			intField(fields, "dropped"),
			intField(fields, "backfilled"),
			intField(fields, "total"),
			formatShortDuration(dur),
		)
	case run.PhaseWrite:
		if boolField(fields, "dry_run") {
			fmt.Fprintln(p.w, "写入: 跳过 (dry-run)")
			break
		}
		fmt.Fprintf(p.w, "写入: records=%d (%s)\n", intField(fields, "records"), formatShortDuration(dur))
	case run.PhaseStats:
		fmt.Fprintf(p.w, "统计: formats=%d organizers=%d elapsed=%s\n\n",
			intField(fields, "formats"), intField(fields, "organizers"), formatElapsed(time.Since(p.startedAt)),
		)
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func formatSort(byDate, ascending bool) string {
	if !byDate {
		return "off"
	}
	if ascending {
		return "开催日时 升序"
	}
	return "开催日时 降序"
}

func formatList(xs []string) string {
	if len(xs) == 0 {
		return "(无)"
	}
	return truncate(strings.Join(xs, ", "), 160)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	v, ok := fields[key]
	if !ok {
		return 0
	}
	switch x := v.(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}

func boolField(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}
