package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/stats"
)

// emitReport 输出一次运行的结果。
//
// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要/告警走 stderr）。
// stdout 是 TTY：输出人类可读的摘要与统计。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if !isTerminal(stdout) {
		_ = writeJSON(stdout, rr)
		fmt.Fprintln(stderr, summaryLine(rr))
		return
	}

	fmt.Fprintln(stdout, summaryLine(rr))
	for _, w := range rr.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	if rr.ErrorCode != "" && rr.Status == domain.StatusFailed {
		fmt.Fprintf(stderr, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
	}
	if rr.Stats != nil {
		fmt.Fprintln(stdout)
		stats.Print(stdout, *rr.Stats)
	}
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：status=%s incoming=%d existing=%d backfilled=%d accepted=%d dropped=%d total=%d",
		rr.Status, s.Incoming, s.ExistingKept, s.Backfilled, s.Accepted, s.Dropped, s.Total,
	)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTerminal(stderr) {
		return stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTerminal(stdout) {
		return stdout, true
	}
	return nil, false
}
