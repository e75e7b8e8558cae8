package merge

import (
	"sort"

	"github.com/John-Robertt/evmerge/internal/domain"
)

// SortByDate 按开催日时稳定排序；无法解析的日期无论升降序都排在最后。
func SortByDate(records []domain.Record, ascending bool) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, oki := records[i].DateTime.Time()
		tj, okj := records[j].DateTime.Time()
		switch {
		case !oki || !okj:
			return oki && !okj
		case ascending:
			return ti.Before(tj)
		default:
			return ti.After(tj)
		}
	})
}
