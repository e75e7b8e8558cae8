package stats

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// Print 以终端友好的形式输出统计（全角字符按 2 列对齐）。
func Print(w io.Writer, st domain.Stats) {
	fmt.Fprintf(w, "活动总数: %d\n", st.Total)

	fmt.Fprintln(w, "\n开催形式:")
	printCounts(w, st.Formats)

	fmt.Fprintf(w, "\n主办方（前 %d）:\n", len(st.Organizers))
	printCounts(w, st.Organizers)
}

func printCounts(w io.Writer, cs []domain.Count) {
	if len(cs) == 0 {
		fmt.Fprintln(w, "  (无)")
		return
	}
	col := 0
	for _, c := range cs {
		if n := displayWidth(label(c.Value)); n > col {
			col = n
		}
	}
	for _, c := range cs {
		v := label(c.Value)
		pad := strings.Repeat(" ", col-displayWidth(v))
		fmt.Fprintf(w, "  %s%s  %d件\n", v, pad, c.Count)
	}
}

// label 让空值在终端上可见。
func label(v string) string {
	if v == "" {
		return "(空)"
	}
	return v
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}
