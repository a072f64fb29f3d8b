// Package model はドメインモデルを定義する。
package model

import "time"

// ScheduleUnit はフィードソースの処理間隔の単位を表す。
type ScheduleUnit string

const (
	// ScheduleUnitHour は1時間単位のスケジュール。
	ScheduleUnitHour ScheduleUnit = "hour"
	// ScheduleUnitDay は1日単位のスケジュール。
	ScheduleUnitDay ScheduleUnit = "day"
	// ScheduleUnitWeek は1週間単位のスケジュール。
	ScheduleUnitWeek ScheduleUnit = "week"
	// ScheduleUnitMonth は1ヶ月（固定30日）単位のスケジュール。
	ScheduleUnitMonth ScheduleUnit = "month"
)

// Source は取り込み対象の外部フィードの設定を表す。
// 設定の作成・編集は外部の管理コラボレーターが行い、
// パイプラインが変更するのはLastProcessedAtのみ。
type Source struct {
	ID            string
	URL           string
	Name          string
	Enabled       bool
	ScheduleUnit  ScheduleUnit
	ScheduleCount int // 単位あたりの処理回数（正の整数）

	// DedupPolicy は既存記事の取り扱い方針
	// （skip-duplicates / update-duplicates）。
	DedupPolicy string

	// 記事生成時に付与するメタデータのフラグ
	IncludeAuthor    bool
	IncludePubdate   bool
	IncludeTags      bool
	IncludeLocations bool

	// LastProcessedAt は最後にスケジュール処理が完了した時刻。
	// nilは一度も処理されていないことを表す。
	LastProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
