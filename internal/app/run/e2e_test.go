package run

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"

	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/domain"
	"github.com/John-Robertt/evmerge/internal/infra/cache"
	"github.com/John-Robertt/evmerge/internal/store"
)

const header = "イベント名,開催日時,申し込み締切日,開催形式,イベント内容詳細"

func exportText(lines ...string) string {
	return header + "\n" + strings.Join(lines, "\n") + "\n"
}

func newEff(t *testing.T, storeName string, inputs ...string) config.EffectiveConfig {
	t.Helper()
	dir := t.TempDir()
	eff := config.EffectiveConfig{
		Store:         filepath.Join(dir, storeName),
		InputEncoding: "utf-8",
		Ascending:     true,
		Schema:        domain.DefaultSchema(),
		TopOrganizers: 5,
	}
	for i, text := range inputs {
		p := filepath.Join(dir, "in", string(rune('a'+i))+".txt")
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(text), 0o644))
		eff.Inputs = append(eff.Inputs, p)
	}
	return eff
}

func fixedID() string { return "run-1" }

func loadTable(t *testing.T, path string) domain.Table {
	t.Helper()
	st, err := store.Open(path, store.Options{})
	require.NoError(t, err)
	tbl, exists, err := st.Load(context.Background())
	require.NoError(t, err)
	require.True(t, exists)
	return tbl
}

func TestExecute_MergeIntoNewStoreThenAgain(t *testing.T) {
	for _, name := range []string{"events.xlsx", "events.db"} {
		t.Run(name, func(t *testing.T) {
			eff := newEff(t, name, exportText(
				"Meetup,2024年6月1日（土）9:00～12:00,2024-05-25,オンライン,主催：A社。",
				"Meetup,2024年6月1日（土）9:00～12:00,2024-05-25,オンライン,主催：A社。",
				"TalkA,2024-05-01 10:00-12:00,,会場,主催:B社",
				"",
				header,
				"TalkB,調整中,,会場,",
			))

			rr := Execute(context.Background(), eff, Deps{NewRunID: fixedID})
			require.Equal(t, domain.StatusOK, rr.Status, "report=%+v", rr)
			assert.Equal(t, "run-1", rr.RunID)
			assert.Equal(t, 3, rr.Summary.Accepted)
			assert.Equal(t, 3, rr.Summary.Total)
			require.NotNil(t, rr.Stats)
			assert.Equal(t, []domain.Count{{Value: "会場", Count: 2}, {Value: "オンライン", Count: 1}}, rr.Stats.Formats)
			assert.Equal(t, []domain.Count{{Value: "A社", Count: 1}, {Value: "B社", Count: 1}}, rr.Stats.Organizers)

			tbl := loadTable(t, eff.Store)
			assert.Equal(t, strings.Split(header, ","), tbl.Columns)
			assert.Equal(t, [][]string{
				{"Meetup", "2024-06-01 09:00", "2024-05-25 00:00", "オンライン", "主催：A社。"},
				{"TalkA", "2024-05-01 10:00", "", "会場", "主催:B社"},
				{"TalkB", "調整中", "", "会場", ""},
			}, tbl.Rows)

			// 中间文件写在工作目录
			ws := cache.New(eff.Store, false)
			p, err := ws.DedupPath("run-1", eff.Inputs[0])
			require.NoError(t, err)
			_, err = os.Stat(p)
			assert.NoError(t, err)

			// 第二次：新的一天 + 回填 + 重复
			require.NoError(t, os.WriteFile(eff.Inputs[0], []byte(exportText(
				"Meetup,2024-07-01 09:00,,オンライン,",
				"Meetup,2024-06-01 09:00,,オンライン,重复",
				"TalkA,未定,,会場,",
			)), 0o644))
			eff.SortByDate = true
			eff.Ascending = false
			rr = Execute(context.Background(), eff, Deps{NewRunID: func() string { return "run-2" }})
			require.Equal(t, domain.StatusOK, rr.Status, "report=%+v", rr)
			assert.Equal(t, domain.MergeSummary{
				Incoming:       3,
				ExistingLoaded: 3,
				ExistingKept:   3,
				Backfilled:     1,
				Accepted:       1,
				Dropped:        2,
				Total:          4,
			}, rr.Summary)

			tbl = loadTable(t, eff.Store)
			var got []string
			for _, r := range tbl.Rows {
				got = append(got, r[0]+"@"+r[1])
			}
			assert.Equal(t, []string{
				"Meetup@2024-07-01 09:00",
				"Meetup@2024-06-01 09:00",
				"TalkA@2024-05-01 10:00",
				"TalkB@調整中",
			}, got)

			// 旧的运行目录已清理，只留本次
			_, err = os.Stat(filepath.Join(ws.Root, "runs", "run-1"))
			assert.True(t, os.IsNotExist(err), "err=%v", err)
			p, err = ws.DedupPath("run-2", eff.Inputs[0])
			require.NoError(t, err)
			_, err = os.Stat(p)
			assert.NoError(t, err)
		})
	}
}

func TestExecute_DryRun_NoWrites(t *testing.T) {
	eff := newEff(t, "events.xlsx", exportText("TalkA,2024-05-01 10:00,,会場,"))
	eff.DryRun = true

	rr := Execute(context.Background(), eff, Deps{})

	assert.Equal(t, domain.StatusOK, rr.Status)
	assert.True(t, rr.DryRun)
	assert.Equal(t, 1, rr.Summary.Total)
	_, err := os.Stat(eff.Store)
	assert.True(t, os.IsNotExist(err), "dry-run 不应写存储")
	_, err = os.Stat(cache.New(eff.Store, true).Root)
	assert.True(t, os.IsNotExist(err), "dry-run 不应创建工作目录")

	_, err = WriteReport(eff, rr)
	assert.ErrorIs(t, err, cache.ErrReadOnly)
}

func TestExecute_EmptyInputSkipped(t *testing.T) {
	eff := newEff(t, "events.xlsx", "  \n\n\t\n")

	rr := Execute(context.Background(), eff, Deps{})

	assert.Equal(t, domain.StatusSkipped, rr.Status)
	assert.Equal(t, domain.ErrCodeEmptyInput, rr.ErrorCode)
	assert.NotEmpty(t, rr.Warnings)
	assert.Nil(t, rr.Stats)
	_, err := os.Stat(eff.Store)
	assert.True(t, os.IsNotExist(err), "空输入不应改动存储")
}

func TestExecute_MissingColumnFails(t *testing.T) {
	eff := newEff(t, "events.xlsx", "名前,日付\nx,2024-01-01\n")

	rr := Execute(context.Background(), eff, Deps{})

	assert.Equal(t, domain.StatusFailed, rr.Status)
	assert.Equal(t, domain.ErrCodeMissingColumn, rr.ErrorCode)
}

func TestExecute_HeaderMismatchFails(t *testing.T) {
	eff := newEff(t, "events.xlsx",
		exportText("A,2024-01-01,,,"),
		"イベント名,開催日時,申し込み締切日\nB,2024-01-02,\n",
	)

	rr := Execute(context.Background(), eff, Deps{})

	assert.Equal(t, domain.ErrCodeHeaderMismatch, rr.ErrorCode)
}

func TestExecute_MultipleInputsConcatenated(t *testing.T) {
	eff := newEff(t, "events.db",
		exportText("A,2024-01-01,,会場,"),
		"",
		exportText("B,2024-01-02,,会場,", "A,2024-01-01 00:00,,会場,"),
	)

	rr := Execute(context.Background(), eff, Deps{})

	require.Equal(t, domain.StatusOK, rr.Status, "report=%+v", rr)
	assert.Equal(t, 3, rr.Summary.Incoming)
	assert.Equal(t, 2, rr.Summary.Total)
	assert.Len(t, rr.Inputs, 3)
}

func TestExecute_ShiftJISInput(t *testing.T) {
	sjis, err := japanese.ShiftJIS.NewEncoder().String(exportText("勉強会,2024年5月1日 10:00,,会場,"))
	require.NoError(t, err)
	eff := newEff(t, "events.xlsx", sjis)
	eff.InputEncoding = "shift_jis"

	rr := Execute(context.Background(), eff, Deps{})

	require.Equal(t, domain.StatusOK, rr.Status, "report=%+v", rr)
	tbl := loadTable(t, eff.Store)
	assert.Equal(t, []string{"勉強会", "2024-05-01 10:00", "", "会場", ""}, tbl.Rows[0])
}

func TestExecute_UnreadableStoreDegradesAndIsKept(t *testing.T) {
	eff := newEff(t, "events.xlsx", exportText("TalkA,2024-05-01 10:00,,会場,"))
	require.NoError(t, os.WriteFile(eff.Store, []byte("definitely not a zip file"), 0o644))

	rr := Execute(context.Background(), eff, Deps{NewRunID: fixedID})

	assert.Equal(t, domain.StatusDegraded, rr.Status)
	assert.Empty(t, rr.ErrorCode)
	assert.Equal(t, 1, rr.Summary.Total)

	b, err := os.ReadFile(eff.Store + ".unreadable-run-1")
	require.NoError(t, err)
	assert.Equal(t, "definitely not a zip file", string(b))

	tbl := loadTable(t, eff.Store)
	assert.Len(t, tbl.Rows, 1)
}

func TestExecute_StoreWithoutRequiredColumnsIsUnreadable(t *testing.T) {
	eff := newEff(t, "events.db", exportText("TalkA,2024-05-01 10:00,,会場,"))
	st, err := store.Open(eff.Store, store.Options{})
	require.NoError(t, err)
	require.NoError(t, st.Save(context.Background(), domain.Table{Columns: []string{"foo"}, Rows: [][]string{{"bar"}}}))

	rr := Execute(context.Background(), eff, Deps{NewRunID: fixedID})

	assert.Equal(t, domain.StatusDegraded, rr.Status)
	_, err = os.Stat(eff.Store + ".unreadable-run-1")
	assert.NoError(t, err)
}

func TestExecute_WriteFailure(t *testing.T) {
	eff := newEff(t, "events.xlsx", exportText("TalkA,2024-05-01 10:00,,会場,"))
	// 存储路径是目录：读取降级、改名保留后写出；这里让改名目标已存在以触发写失败。
	require.NoError(t, os.MkdirAll(eff.Store, 0o755))
	require.NoError(t, os.MkdirAll(eff.Store+".unreadable-run-1", 0o755))

	rr := Execute(context.Background(), eff, Deps{NewRunID: fixedID})

	assert.Equal(t, domain.StatusFailed, rr.Status)
	assert.Equal(t, domain.ErrCodeStoreWriteFailed, rr.ErrorCode)
}

func TestExecute_UnsupportedStore(t *testing.T) {
	eff := newEff(t, "events.csv", exportText("TalkA,2024-05-01 10:00,,会場,"))

	rr := Execute(context.Background(), eff, Deps{})

	assert.Equal(t, domain.ErrCodeStoreUnsupported, rr.ErrorCode)
}

func TestExecute_MissingInput(t *testing.T) {
	eff := newEff(t, "events.xlsx")
	eff.Inputs = []string{filepath.Join(t.TempDir(), "nope.txt")}

	rr := Execute(context.Background(), eff, Deps{})

	assert.Equal(t, domain.ErrCodeInputReadFailed, rr.ErrorCode)
}

func TestExecute_Canceled(t *testing.T) {
	eff := newEff(t, "events.xlsx", exportText("TalkA,2024-05-01 10:00,,会場,"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rr := Execute(ctx, eff, Deps{})

	assert.Equal(t, domain.ErrCodeCanceled, rr.ErrorCode)
	_, err := os.Stat(eff.Store)
	assert.True(t, os.IsNotExist(err))
}

func TestReportRoundTripAndSummarize(t *testing.T) {
	eff := newEff(t, "events.xlsx", exportText(
		"A,2024-01-01,,会場,主催：X",
		"B,2024-01-02,,会場,主催：X",
	))
	rr := Execute(context.Background(), eff, Deps{NewRunID: fixedID})
	require.Equal(t, domain.StatusOK, rr.Status)

	path, err := WriteReport(eff, rr)
	require.NoError(t, err)
	assert.Equal(t, cache.New(eff.Store, false).ReportPath(), path)

	last, ok, err := LastReport(eff)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rr.RunID, last.RunID)
	assert.Equal(t, rr.Summary, last.Summary)

	st, exists, err := Summarize(context.Background(), eff)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, *rr.Stats, st)
}

func TestExecute_ExcelDateCellsKeepDedupAndBackfill(t *testing.T) {
	eff := newEff(t, "events.xlsx", exportText(
		"TalkA,2024-05-01 10:00,,会場,",
		"TalkA,未定,,会場,",
		"TalkB,2024-06-01 10:00,,会場,",
	))

	// 在 Excel 里手工编辑过的存储：开催日时是日期单元格
	f := excelize.NewFile()
	var cols []interface{}
	for _, c := range strings.Split(header, ",") {
		cols = append(cols, c)
	}
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &cols))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "TalkA"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellValue("Sheet1", "D2", "会場"))
	require.NoError(t, f.SaveAs(eff.Store))
	require.NoError(t, f.Close())

	rr := Execute(context.Background(), eff, Deps{NewRunID: fixedID})
	require.Equal(t, domain.StatusOK, rr.Status, "report=%+v", rr)
	assert.Equal(t, 1, rr.Summary.ExistingKept)
	assert.Equal(t, 1, rr.Summary.Backfilled)
	assert.Equal(t, 1, rr.Summary.Accepted)
	assert.Equal(t, 2, rr.Summary.Dropped)

	tbl := loadTable(t, eff.Store)
	assert.Equal(t, [][]string{
		{"TalkA", "2024-05-01 10:00", "", "会場", ""},
		{"TalkB", "2024-06-01 10:00", "", "会場", ""},
	}, tbl.Rows)
}
