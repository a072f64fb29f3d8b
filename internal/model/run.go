package model

import "time"

// Run は1回のパイプライン実行のメタデータを表す。
// ラン完了時にサマリーカウントとログスナップショットが永続化される。
type Run struct {
	ID         string
	Forced     bool
	StartedAt  time.Time
	FinishedAt *time.Time

	// サマリーカウント
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int

	// FailedSources は処理に失敗したソース名のリスト。
	FailedSources []string

	// LogSnapshot はラン終了時点のローリングログのコピー。
	LogSnapshot []string
}
