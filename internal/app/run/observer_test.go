package run

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/evmerge/internal/config"
	"github.com/John-Robertt/evmerge/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls int
	phases     []string
	inputs     []string
	results    []InputResult
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnInputDone(idx, total int, path string, res InputResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inputs = append(o.inputs, filepath.Base(path))
	o.results = append(o.results, res)
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func TestExecute_EmitsPhaseAndInputEvents(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	files := map[string]string{
		"a.txt": exportText("A,2024-01-01,,会場,", "A,2024-01-01,,会場,"),
		"b.csv": "",
	}
	for name, text := range files {
		if err := os.WriteFile(filepath.Join(in, name), []byte(text), 0o644); err != nil {
			t.Fatalf("写入输入失败：%v", err)
		}
	}

	obs := &recordObserver{}
	rr := Execute(context.Background(), config.EffectiveConfig{
		Inputs:        []string{in},
		Store:         filepath.Join(root, "events.xlsx"),
		InputEncoding: "utf-8",
		DryRun:        true,
	}, Deps{Observer: obs})
	if rr.Status != domain.StatusOK {
		t.Fatalf("期望 ok，实际 %+v", rr)
	}

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	wantPhases := []string{PhaseInput, PhaseLoad, PhaseMerge, PhaseWrite, PhaseStats}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	if want := []string{"a.txt", "b.csv"}; !reflect.DeepEqual(obs.inputs, want) {
		t.Fatalf("输入事件不符合预期：got=%v want=%v", obs.inputs, want)
	}
	if got := obs.results[0]; got.Records != 1 || got.Dedup.Dropped != 1 || got.Empty {
		t.Fatalf("a.txt 结果不符合预期：%+v", got)
	}
	if !obs.results[1].Empty {
		t.Fatalf("b.csv 应标记为空：%+v", obs.results[1])
	}
}

func TestExecute_SkippedStopsAfterInputPhase(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "a.txt")
	if err := os.WriteFile(in, nil, 0o644); err != nil {
		t.Fatalf("写入输入失败：%v", err)
	}

	obs := &recordObserver{}
	rr := Execute(context.Background(), config.EffectiveConfig{
		Inputs:        []string{in},
		Store:         filepath.Join(root, "events.xlsx"),
		InputEncoding: "utf-8",
	}, Deps{Observer: obs})
	if rr.Status != domain.StatusSkipped {
		t.Fatalf("期望 skipped，实际 %s", rr.Status)
	}
	if want := []string{PhaseInput}; !reflect.DeepEqual(obs.phases, want) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, want)
	}
}
