// Package schedule はフィードソースの処理タイミング判定を提供する。
// 副作用を持たない純粋な判定関数のみで構成される。
package schedule

import (
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// unitSeconds はスケジュール単位ごとの秒数。monthは固定30日として扱う。
var unitSeconds = map[model.ScheduleUnit]int64{
	model.ScheduleUnitHour:  3600,
	model.ScheduleUnitDay:   86400,
	model.ScheduleUnitWeek:  604800,
	model.ScheduleUnitMonth: 2592000,
}

// defaultInterval は単位が不明な場合のフォールバック間隔（1日）。
const defaultInterval = 86400 * time.Second

// Interval はスケジュール単位と回数から処理間隔を計算する。
// 間隔 = 単位秒数 / 単位あたりの回数。countが0以下の場合は1として扱う。
func Interval(unit model.ScheduleUnit, count int) time.Duration {
	secs, ok := unitSeconds[unit]
	if !ok {
		return defaultInterval
	}
	if count <= 0 {
		count = 1
	}
	return time.Duration(secs/int64(count)) * time.Second
}

// IsDue はソースが処理対象かどうかを判定する。
// 一度も処理されていないソースは常に処理対象となる。
// それ以外は最終処理時刻からの経過時間が設定間隔以上の場合に処理対象となる。
// 手動実行はこの判定を経由しない。
func IsDue(source *model.Source, now time.Time) bool {
	if source.LastProcessedAt == nil {
		return true
	}
	interval := Interval(source.ScheduleUnit, source.ScheduleCount)
	return now.Sub(*source.LastProcessedAt) >= interval
}
