package domain

import (
	"encoding/json"
	"time"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

const (
	ErrCodeConfigNotFound   = "config_not_found"
	ErrCodeConfigInvalid    = "config_invalid"
	ErrCodeEmptyInput       = "empty_input"
	ErrCodeMissingColumn    = "missing_column"
	ErrCodeHeaderMismatch   = "header_mismatch"
	ErrCodeInputReadFailed  = "input_read_failed"
	ErrCodeStoreReadFailed  = "store_read_failed"
	ErrCodeStoreWriteFailed = "store_write_failed"
	ErrCodeStoreUnsupported = "store_unsupported"
	ErrCodeCanceled         = "canceled"
	ErrCodeInternal         = "internal"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID  string   `json:"run_id"`
	Inputs []string `json:"inputs"`
	Store  string   `json:"store"`
	DryRun bool     `json:"dry_run"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Status    string   `json:"status"`
	ErrorCode string   `json:"error_code"`
	ErrorMsg  string   `json:"error_msg"`
	Warnings  []string `json:"warnings"`

	Summary MergeSummary `json:"summary"`
	Stats   *Stats       `json:"stats,omitempty"`
}

// MergeSummary 是一次 merge 的计数（仅用于日志/报告，不属于数据契约）。
type MergeSummary struct {
	Incoming       int `json:"incoming"`
	ExistingLoaded int `json:"existing_loaded"`
	ExistingKept   int `json:"existing_kept"`
	Backfilled     int `json:"backfilled"`
	Accepted       int `json:"accepted"`
	Dropped        int `json:"dropped"`
	Total          int `json:"total"`
}

// Stats 是合并结果的统计摘要。
type Stats struct {
	Total      int     `json:"total"`
	Formats    []Count `json:"formats"`
	Organizers []Count `json:"organizers"`
}

type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Warn 追加一条降级提示。
func (r *RunReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Fail 把报告标记为失败。
func (r *RunReport) Fail(code, msg string) {
	r.Status = StatusFailed
	r.ErrorCode = code
	r.ErrorMsg = msg
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) slice 字段非 nil（JSON 输出 [] 而不是 null）
// 3) 推导 status：有 error_code 即 failed；ok 但有 warning 即 degraded
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Inputs == nil {
		r.Inputs = []string{}
	}
	if r.Warnings == nil {
		r.Warnings = []string{}
	}
	if r.Stats != nil {
		if r.Stats.Formats == nil {
			r.Stats.Formats = []Count{}
		}
		if r.Stats.Organizers == nil {
			r.Stats.Organizers = []Count{}
		}
	}

	switch {
	case r.ErrorCode != "" && r.Status != StatusSkipped:
		r.Status = StatusFailed
	case r.Status == "" || r.Status == StatusOK:
		if len(r.Warnings) > 0 {
			r.Status = StatusDegraded
		} else {
			r.Status = StatusOK
		}
	}
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
