// Package merge 把新解析的活动记录合并进既有存储：自去重、按活动名回填日期、批内去重、拼接。
package merge

import (
	"github.com/John-Robertt/evmerge/internal/datenorm"
	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/parse"
)

// Options 控制一次合并。
type Options struct {
	Schema domain.Schema

	SortByDate bool
	Ascending  bool

	// Normalizer 为零值时使用 datenorm.Default。
	Normalizer *datenorm.Normalizer
}

func (o Options) normalizer() datenorm.Normalizer {
	if o.Normalizer == nil {
		return datenorm.Default
	}
	return *o.Normalizer
}

// Result 是合并后的存储与计数。
type Result struct {
	Store  domain.Store
	Counts domain.MergeSummary
}

// NormalizeRecord 用 Normalizer 填充 r 的两个日期视图（原文取自 Values）。
func NormalizeRecord(r *domain.Record, schema domain.Schema, n datenorm.Normalizer) {
	r.DateTime = n.Normalize(r.Get(schema.DateTime))
	r.Deadline = n.Normalize(r.Get(schema.Deadline))
}

// FromTable 把存储读出的 Table 装配成 Store（日期视图在 Merge 中重新规范化）。
// 空表（无列）视为空存储；有列但缺必需列时返回 *parse.MissingColumnError。
func FromTable(t domain.Table, schema domain.Schema, source string) (domain.Store, error) {
	if t.Empty() {
		return domain.Store{}, nil
	}
	if err := parse.RequireColumns(t.Columns, schema, source); err != nil {
		return domain.Store{}, err
	}
	s := domain.Store{
		Columns: append([]string(nil), t.Columns...),
		Records: make([]domain.Record, 0, len(t.Rows)),
	}
	for _, row := range t.Rows {
		s.Records = append(s.Records, domain.NewRecord(s.Columns, row))
	}
	return s, nil
}

// Merge 执行合并：
//  1. 既有记录重新规范化日期（存储里的字符串可能是规范值，也可能是残留原文）
//  2. 既有记录按 RecordKey 自去重，先出现者保留
//  3. 构建既有 key 集合
//  4. 活动名 -> 既有记录中首个有效开催日时；新记录开催日时无法解析时回填（截止日不回填）
//  5. 新记录依次与既有 key、本批已接受 key 比较，重复即丢弃
//  6. 既有记录在前，接受的新记录在后
//
// incoming 的日期视图须已由调用方填充（见 NormalizeRecord）。
func Merge(existing domain.Store, incoming []domain.Record, incomingColumns []string, opts Options) Result {
	schema := opts.Schema
	n := opts.normalizer()

	res := Result{}
	res.Counts.ExistingLoaded = len(existing.Records)
	res.Counts.Incoming = len(incoming)

	keys := make(domain.KeySet, len(existing.Records))
	kept := make([]domain.Record, 0, len(existing.Records)+len(incoming))
	for _, r := range existing.Records {
		NormalizeRecord(&r, schema, n)
		k := domain.KeyOf(schema, r)
		if keys.Has(k) {
			continue
		}
		keys.Add(k)
		kept = append(kept, r)
	}
	res.Counts.ExistingKept = len(kept)

	backfill := newBackfillIndex(kept, schema)

	accepted := make(domain.KeySet, len(incoming))
	for _, r := range incoming {
		if backfill.apply(&r, schema) {
			res.Counts.Backfilled++
		}
		k := domain.KeyOf(schema, r)
		if keys.Has(k) || accepted.Has(k) {
			res.Counts.Dropped++
			continue
		}
		accepted.Add(k)
		kept = append(kept, r)
		res.Counts.Accepted++
	}

	res.Store = domain.Store{
		Columns: domain.UnionColumns(existing.Columns, incomingColumns),
		Records: kept,
	}
	if opts.SortByDate {
		SortByDate(res.Store.Records, opts.Ascending)
	}
	res.Counts.Total = len(res.Store.Records)
	return res
}

// backfillIndex: 规范化活动名 -> 既有记录中首个有效开催日时（按存储顺序）。
type backfillIndex map[string]domain.ParsedDate

func newBackfillIndex(records []domain.Record, schema domain.Schema) backfillIndex {
	ix := make(backfillIndex)
	for _, r := range records {
		if !r.DateTime.Valid() {
			continue
		}
		name := domain.CleanEventName(r.Get(schema.EventName))
		if _, ok := ix[name]; !ok {
			ix[name] = r.DateTime
		}
	}
	return ix
}

// apply 仅在 r 的开催日时无法解析时回填；保留 r 自己的原文。
func (ix backfillIndex) apply(r *domain.Record, schema domain.Schema) bool {
	if r.DateTime.Valid() {
		return false
	}
	d, ok := ix[domain.CleanEventName(r.Get(schema.EventName))]
	if !ok {
		return false
	}
	r.DateTime = d.WithOriginal(r.DateTime.Original)
	return true
}
