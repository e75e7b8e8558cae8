package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/datenorm"
	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/format"
	"github.com/John-Robertt/evmerge/internal/infra/cache"
	"github.com/John-Robertt/evmerge/internal/infra/fsx"
	"github.com/John-Robertt/evmerge/internal/infra/logx"
	"github.com/John-Robertt/evmerge/internal/input"
	"github.com/John-Robertt/evmerge/internal/merge"
	"github.com/John-Robertt/evmerge/internal/parse"
	"github.com/John-Robertt/evmerge/internal/scan"
	"github.com/John-Robertt/evmerge/internal/stats"
	"github.com/John-Robertt/evmerge/internal/store"
)

// Deps 是 Execute 的可替换依赖；零值可用。
type Deps struct {
	Log        logrus.FieldLogger
	Observer   Observer
	Normalizer *datenorm.Normalizer

	// NewRunID 默认 uuid.NewString。
	NewRunID func() string
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logx.Discard()
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	return d
}

// Execute 执行一次合并，并返回对外稳定的 RunReport。
//
// 阶段：input（展开/去重/解码/解析）→ load（读存储）→ merge → write → stats。
// - 输入全部为空：status=skipped，不改动存储
// - 存储读取失败：降级为 warning，按空存储合并；写出前把不可读文件改名保留
// - dry-run：不落盘（不写中间文件、不写存储）
// - 写出成功后删除 .evmerge/runs/ 下旧的运行目录
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	deps = deps.withDefaults()
	obs := deps.Observer

	rr := domain.RunReport{
		RunID:     deps.NewRunID(),
		Inputs:    append([]string(nil), eff.Inputs...),
		Store:     eff.Store,
		DryRun:    eff.DryRun,
		StartedAt: time.Now().UTC(),
	}
	log := deps.Log.WithField("run_id", rr.RunID)
	obs.OnStart(eff)

	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		log.WithFields(logrus.Fields{"status": rr.Status, "error_code": rr.ErrorCode}).Info("运行结束")
		return rr
	}
	fail := func(code string, err error) domain.RunReport {
		rr.Fail(code, err.Error())
		log.WithError(err).WithField("error_code", code).Error("运行失败")
		return finish()
	}

	ws := cache.New(eff.Store, eff.DryRun)
	schema := schemaOf(eff)

	// input
	started := time.Now()
	batch, err := readInputs(eff, ws, rr.RunID, schema, deps, log)
	if err != nil {
		return fail(errorCode(err), err)
	}
	rr.Inputs = batch.files
	obs.OnPhaseDone(PhaseInput, map[string]any{
		"files":         len(batch.files),
		"lines":         batch.lines,
		"dropped_lines": batch.droppedLines,
		"records":       len(batch.records),
	}, time.Since(started))

	if len(batch.records) == 0 && batch.allEmpty {
		rr.Status = domain.StatusSkipped
		rr.ErrorCode = domain.ErrCodeEmptyInput
		rr.ErrorMsg = parse.ErrEmptyInput.Error()
		rr.Warn("输入为空或只有空白，跳过合并")
		return finish()
	}

	if err := ctx.Err(); err != nil {
		return fail(domain.ErrCodeCanceled, err)
	}

	// load
	started = time.Now()
	st, err := store.Open(eff.Store, store.Options{Sheet: eff.Sheet, Table: eff.Table})
	if err != nil {
		return fail(errorCode(err), err)
	}
	existing, exists, unreadable := loadExisting(ctx, st, schema, &rr, log)
	if err := ctx.Err(); err != nil {
		return fail(domain.ErrCodeCanceled, err)
	}
	obs.OnPhaseDone(PhaseLoad, map[string]any{
		"exists":     exists,
		"unreadable": unreadable,
		"records":    existing.Len(),
	}, time.Since(started))

	// merge
	started = time.Now()
	res := merge.Merge(existing, batch.records, batch.header, merge.Options{
		Schema:     schema,
		SortByDate: eff.SortByDate,
		Ascending:  eff.Ascending,
		Normalizer: deps.Normalizer,
	})
	rr.Summary = res.Counts
	log.WithFields(logrus.Fields{
		"existing_loaded": res.Counts.ExistingLoaded,
		"existing_kept":   res.Counts.ExistingKept,
		"backfilled":      res.Counts.Backfilled,
		"accepted":        res.Counts.Accepted,
		"dropped":         res.Counts.Dropped,
		"total":           res.Counts.Total,
	}).Info("合并完成")
	obs.OnPhaseDone(PhaseMerge, map[string]any{
		"accepted":   res.Counts.Accepted,
		"dropped":    res.Counts.Dropped,
		"backfilled": res.Counts.Backfilled,
		"total":      res.Counts.Total,
	}, time.Since(started))

	if err := ctx.Err(); err != nil {
		return fail(domain.ErrCodeCanceled, err)
	}

	// write
	started = time.Now()
	if eff.DryRun {
		obs.OnPhaseDone(PhaseWrite, map[string]any{"dry_run": true}, time.Since(started))
	} else {
		if unreadable {
			aside, err := fsx.MoveAside(st.Path(), ".unreadable-"+rr.RunID)
			if err != nil {
				return fail(domain.ErrCodeStoreWriteFailed, fmt.Errorf("保留不可读的存储文件失败：%w", err))
			}
			rr.Warn(fmt.Sprintf("不可读的存储文件已改名保留：%s", aside))
			log.WithField("path", aside).Warn("不可读的存储文件已改名保留")
		}
		if err := st.Save(ctx, format.ToTable(res.Store, schema)); err != nil {
			if ctx.Err() != nil {
				return fail(domain.ErrCodeCanceled, err)
			}
			return fail(domain.ErrCodeStoreWriteFailed, err)
		}
		// 写成功后只保留本次的中间文件。
		if err := ws.PruneRuns(rr.RunID); err != nil {
			log.WithError(err).Warn("清理旧的运行目录失败")
		}
		obs.OnPhaseDone(PhaseWrite, map[string]any{
			"path":    st.Path(),
			"records": res.Store.Len(),
		}, time.Since(started))
	}

	// stats
	started = time.Now()
	sum := stats.Summarize(res.Store, stats.Options{
		FormatColumn: schema.Format,
		DetailColumn: schema.Detail,
		TopN:         eff.TopOrganizers,
	})
	rr.Stats = &sum
	obs.OnPhaseDone(PhaseStats, map[string]any{
		"total":      sum.Total,
		"formats":    len(sum.Formats),
		"organizers": len(sum.Organizers),
	}, time.Since(started))

	return finish()
}

type inputBatch struct {
	files        []string
	header       []string
	records      []domain.Record
	lines        int
	droppedLines int
	allEmpty     bool
}

// inputError 把输入阶段的错误与 error_code 绑定。
type inputError struct {
	code string
	err  error
}

func (e *inputError) Error() string { return e.err.Error() }
func (e *inputError) Unwrap() error { return e.err }

func readInputs(eff config.EffectiveConfig, ws cache.Store, runID string, schema domain.Schema, deps Deps, log logrus.FieldLogger) (inputBatch, error) {
	files, err := scan.Inputs(eff.Inputs)
	if err != nil {
		return inputBatch{}, &inputError{code: domain.ErrCodeInputReadFailed, err: fmt.Errorf("读取输入失败：%w", err)}
	}

	n := deps.Normalizer
	if n == nil {
		n = &datenorm.Default
	}

	b := inputBatch{files: files, allEmpty: true}
	for i, path := range files {
		started := time.Now()
		text, dres, err := dedupAndDecode(path, eff, ws, runID)
		if err != nil {
			return inputBatch{}, &inputError{code: domain.ErrCodeInputReadFailed, err: fmt.Errorf("读取输入 %q 失败：%w", path, err)}
		}
		b.lines += dres.Lines
		b.droppedLines += dres.Dropped

		res, err := parse.Parse(string(text))
		if errors.Is(err, parse.ErrEmptyInput) {
			log.WithField("input", path).Warn("输入为空，跳过")
			deps.Observer.OnInputDone(i+1, len(files), path, InputResult{Dedup: dres, Empty: true}, time.Since(started))
			continue
		}
		if err != nil {
			return inputBatch{}, &inputError{code: domain.ErrCodeInputReadFailed, err: err}
		}
		if err := parse.RequireColumns(res.Header, schema, path); err != nil {
			return inputBatch{}, &inputError{code: domain.ErrCodeMissingColumn, err: err}
		}
		if b.header == nil {
			b.header = res.Header
		} else if !slices.Equal(b.header, res.Header) {
			return inputBatch{}, &inputError{
				code: domain.ErrCodeHeaderMismatch,
				err:  fmt.Errorf("输入 %q 的表头与首个输入不一致：%s", path, strings.Join(res.Header, ",")),
			}
		}
		b.allEmpty = false

		for j := range res.Records {
			merge.NormalizeRecord(&res.Records[j], schema, *n)
		}
		b.records = append(b.records, res.Records...)

		log.WithFields(logrus.Fields{
			"input":          path,
			"lines":          dres.Lines,
			"dropped_lines":  dres.Dropped,
			"records":        len(res.Records),
			"skipped_header": res.SkippedHeader,
		}).Debug("输入解析完成")
		deps.Observer.OnInputDone(i+1, len(files), path, InputResult{Dedup: dres, Records: len(res.Records)}, time.Since(started))
	}
	return b, nil
}

// dedupAndDecode 先按行去重再解码：
// - 正常运行：去重结果写入工作目录（.evmerge/runs/<run id>/），再从中间文件读取
// - dry-run：全部在内存完成
//
// 去重按字节进行；所支持的编码里 '\n' 字节只表示换行，因此先去重后解码与先解码后去重等价。
func dedupAndDecode(path string, eff config.EffectiveConfig, ws cache.Store, runID string) ([]byte, input.DedupResult, error) {
	if ws.ReadOnly {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, input.DedupResult{}, err
		}
		out, dres := input.DedupBytes(raw)
		text, err := input.Decode(out, eff.InputEncoding)
		return text, dres, err
	}

	dst, err := ws.PrepareDedupPath(runID, path)
	if err != nil {
		return nil, input.DedupResult{}, err
	}
	dres, err := input.DedupLines(path, dst)
	if err != nil {
		return nil, dres, err
	}
	text, err := input.ReadFile(dst, eff.InputEncoding)
	return text, dres, err
}

// loadExisting 读取并装配既有存储。读取失败不终止运行：记 warning，按空存储继续。
func loadExisting(ctx context.Context, st store.Store, schema domain.Schema, rr *domain.RunReport, log logrus.FieldLogger) (existing domain.Store, exists, unreadable bool) {
	tbl, exists, err := st.Load(ctx)
	if err == nil {
		existing, err = merge.FromTable(tbl, schema, st.Path())
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.Store{}, exists, false
		}
		rr.Warn(fmt.Sprintf("%s：%v；按空存储处理", domain.ErrCodeStoreReadFailed, err))
		log.WithError(err).WithField("path", st.Path()).Warn("读取存储失败，按空存储处理")
		return domain.Store{}, exists, exists
	}
	return existing, exists, false
}

// schemaOf 在未配置列名时回落到默认表头。
func schemaOf(eff config.EffectiveConfig) domain.Schema {
	if eff.Schema.EventName == "" {
		return domain.DefaultSchema()
	}
	return eff.Schema
}

// errorCode 把各层错误映射为 report 的 error_code。
func errorCode(err error) string {
	var ie *inputError
	if errors.As(err, &ie) {
		return ie.code
	}
	if c := store.CodeOf(err); c != "" {
		return c
	}
	if c := config.Code(err); c != "" {
		return c
	}
	return domain.ErrCodeInternal
}

// WriteReport 把报告写入工作目录的 report.json（dry-run 时返回 cache.ErrReadOnly）。
func WriteReport(eff config.EffectiveConfig, rr domain.RunReport) (string, error) {
	ws := cache.New(eff.Store, eff.DryRun)
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return "", err
	}
	b = append(b, '\n')
	if err := ws.WriteReport(b); err != nil {
		return "", err
	}
	return ws.ReportPath(), nil
}

// LastReport 读取工作目录中最近一次的 report.json。
func LastReport(eff config.EffectiveConfig) (domain.RunReport, bool, error) {
	b, ok, err := cache.New(eff.Store, true).ReadReport()
	if err != nil || !ok {
		return domain.RunReport{}, ok, err
	}
	var rr domain.RunReport
	if err := json.Unmarshal(b, &rr); err != nil {
		return domain.RunReport{}, true, fmt.Errorf("解析 report.json 失败：%w", err)
	}
	return rr, true, nil
}

// Summarize 只读地统计现有存储（stats 命令使用）。
// 存储不存在时返回 exists=false。
func Summarize(ctx context.Context, eff config.EffectiveConfig) (domain.Stats, bool, error) {
	st, err := store.Open(eff.Store, store.Options{Sheet: eff.Sheet, Table: eff.Table})
	if err != nil {
		return domain.Stats{}, false, err
	}
	tbl, exists, err := st.Load(ctx)
	if err != nil || !exists {
		return domain.Stats{}, exists, err
	}
	schema := schemaOf(eff)
	s, err := merge.FromTable(tbl, schema, st.Path())
	if err != nil {
		return domain.Stats{}, true, &store.Error{Code: domain.ErrCodeStoreReadFailed, Path: st.Path(), Err: err}
	}
	return stats.Summarize(s, stats.Options{
		FormatColumn: schema.Format,
		DetailColumn: schema.Detail,
		TopN:         eff.TopOrganizers,
	}), true, nil
}
