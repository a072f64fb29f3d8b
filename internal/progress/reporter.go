// Package progress は実行中パイプラインの進捗状態を提供する。
// 書き込みはパイプライン（単一ゴルーチン）のみが行い、HTTPハンドラは
// Snapshotで読み取る。完了時に実行サマリとログを永続化する。
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsmill/internal/model"
)

// maxLogEntries はメモリに保持するログの上限。超過分は古い順に捨てる。
const maxLogEntries = 100

// RunRepository は実行履歴の永続化に必要な操作。
type RunRepository interface {
	Create(ctx context.Context, run *model.Run) error
	Finish(ctx context.Context, run *model.Run) error
}

// LogEntry は進捗ログの1件。
type LogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// Counts は処理件数の内訳。
type Counts struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Snapshot はある時点の進捗状態のコピー。
type Snapshot struct {
	Active    bool       `json:"active"`
	RunID     string     `json:"run_id,omitempty"`
	Forced    bool       `json:"forced"`
	StartedAt time.Time  `json:"started_at,omitzero"`
	Total     int        `json:"total"`
	Index     int        `json:"index"`
	Percent   int        `json:"percent"`
	Status    string     `json:"status"`
	Counts    Counts     `json:"counts"`
	Log       []LogEntry `json:"log"`
}

// Reporter は進捗状態の唯一の保持者。
type Reporter struct {
	mu     sync.Mutex
	runs   RunRepository
	logger *slog.Logger

	active        bool
	runID         string
	forced        bool
	startedAt     time.Time
	total         int
	index         int
	status        string
	counts        Counts
	failedSources []string
	log           []LogEntry
}

// NewReporter はReporterの新しいインスタンスを生成する。
func NewReporter(runs RunRepository, logger *slog.Logger) *Reporter {
	return &Reporter{
		runs:   runs,
		logger: logger,
	}
}

// Begin は新しい実行を開始し、実行IDを返す。
// すでに実行中の場合はErrRunActiveを返す。実行行はこの時点で永続化される。
func (r *Reporter) Begin(ctx context.Context, forced bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return "", model.ErrRunActive
	}

	run := &model.Run{
		ID:        uuid.New().String(),
		Forced:    forced,
		StartedAt: time.Now(),
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return "", fmt.Errorf("実行履歴の作成に失敗: %w", err)
	}

	r.active = true
	r.runID = run.ID
	r.forced = forced
	r.startedAt = run.StartedAt
	r.total = 0
	r.index = 0
	r.status = "準備中"
	r.counts = Counts{}
	r.failedSources = nil
	r.log = nil

	return run.ID, nil
}

// Active は実行中かどうかを返す。
func (r *Reporter) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// SetTotal は処理予定件数を設定する。事前カウント後に一度だけ呼ぶ。
func (r *Reporter) SetTotal(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = total
}

// Advance は1記事分進捗を進め、現在の状態メッセージを更新する。
func (r *Reporter) Advance(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index++
	r.status = status
}

// SetStatus は件数を進めずに状態メッセージだけを更新する。
func (r *Reporter) SetStatus(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

// Record は1記事の処理結果を件数に反映する。
func (r *Reporter) Record(decision string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts.Processed++
	switch decision {
	case "create":
		r.counts.Created++
	case "full_update", "image_only":
		r.counts.Updated++
	case "skip":
		r.counts.Skipped++
	case "failed":
		r.counts.Failed++
	}
}

// RecordSourceFailure は取得に失敗したソース名を記録する。
func (r *Reporter) RecordSourceFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failedSources = append(r.failedSources, name)
}

// Append は進捗ログにメッセージを追記する。
// 上限を超えた場合は最も古いエントリから捨てる。
func (r *Reporter) Append(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = append(r.log, LogEntry{At: time.Now(), Message: message})
	if len(r.log) > maxLogEntries {
		r.log = r.log[len(r.log)-maxLogEntries:]
	}
}

// Snapshot は現在の進捗状態のコピーを返す。
func (r *Reporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	percent := 0
	if r.total > 0 {
		percent = r.index * 100 / r.total
		if percent > 100 {
			percent = 100
		}
	}

	logCopy := make([]LogEntry, len(r.log))
	copy(logCopy, r.log)

	return Snapshot{
		Active:    r.active,
		RunID:     r.runID,
		Forced:    r.forced,
		StartedAt: r.startedAt,
		Total:     r.total,
		Index:     r.index,
		Percent:   percent,
		Status:    r.status,
		Counts:    r.counts,
		Log:       logCopy,
	}
}

// Finalize は実行サマリとログスナップショットを永続化し、
// 進捗状態を非アクティブに戻す。永続化に失敗しても状態は解除する。
func (r *Reporter) Finalize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active {
		return nil
	}

	now := time.Now()
	messages := make([]string, len(r.log))
	for i, entry := range r.log {
		messages[i] = entry.At.Format(time.RFC3339) + " " + entry.Message
	}

	run := &model.Run{
		ID:            r.runID,
		Forced:        r.forced,
		StartedAt:     r.startedAt,
		FinishedAt:    &now,
		Processed:     r.counts.Processed,
		Created:       r.counts.Created,
		Updated:       r.counts.Updated,
		Skipped:       r.counts.Skipped,
		Failed:        r.counts.Failed,
		FailedSources: r.failedSources,
		LogSnapshot:   messages,
	}

	err := r.runs.Finish(ctx, run)
	if err != nil {
		r.logger.Error("実行履歴の保存に失敗しました",
			slog.String("run_id", r.runID),
			slog.String("error", err.Error()),
		)
	}

	r.active = false
	r.status = "完了"

	if err != nil {
		return fmt.Errorf("実行履歴の保存に失敗: %w", err)
	}
	return nil
}
