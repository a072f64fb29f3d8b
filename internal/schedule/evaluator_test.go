package schedule

import (
	"testing"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// 単位ごとの間隔計算を検証
func TestInterval_Units(t *testing.T) {
	tests := []struct {
		unit  model.ScheduleUnit
		count int
		want  time.Duration
	}{
		{model.ScheduleUnitHour, 1, time.Hour},
		{model.ScheduleUnitHour, 2, 30 * time.Minute},
		{model.ScheduleUnitDay, 1, 24 * time.Hour},
		{model.ScheduleUnitDay, 2, 12 * time.Hour},
		{model.ScheduleUnitWeek, 1, 7 * 24 * time.Hour},
		{model.ScheduleUnitMonth, 1, 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		got := Interval(tt.unit, tt.count)
		if got != tt.want {
			t.Errorf("Interval(%s, %d) = %v, want %v", tt.unit, tt.count, got, tt.want)
		}
	}
}

// countが0以下の場合に1として扱われることを検証
func TestInterval_NonPositiveCount(t *testing.T) {
	if got := Interval(model.ScheduleUnitDay, 0); got != 24*time.Hour {
		t.Errorf("Interval(day, 0) = %v, want 24h", got)
	}
	if got := Interval(model.ScheduleUnitDay, -1); got != 24*time.Hour {
		t.Errorf("Interval(day, -1) = %v, want 24h", got)
	}
}

// 不明な単位がデフォルト間隔にフォールバックすることを検証
func TestInterval_UnknownUnit(t *testing.T) {
	if got := Interval(model.ScheduleUnit("fortnight"), 1); got != 24*time.Hour {
		t.Errorf("不明な単位 = %v, want 24h", got)
	}
}

// 未処理のソースが常に処理対象であることを検証
func TestIsDue_NeverProcessed(t *testing.T) {
	source := &model.Source{
		ScheduleUnit:  model.ScheduleUnitDay,
		ScheduleCount: 1,
	}

	if !IsDue(source, time.Now()) {
		t.Error("未処理のソースは常に処理対象であるべき")
	}
}

// スケジュール例: day/2 = 43200秒間隔の境界を検証
func TestIsDue_DayTwiceBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 経過40000秒 < 43200秒: 処理対象外
	last := now.Add(-40000 * time.Second)
	source := &model.Source{
		ScheduleUnit:    model.ScheduleUnitDay,
		ScheduleCount:   2,
		LastProcessedAt: &last,
	}
	if IsDue(source, now) {
		t.Error("経過40000秒は間隔43200秒未満のため処理対象外であるべき")
	}

	// 経過50000秒 >= 43200秒: 処理対象
	last2 := now.Add(-50000 * time.Second)
	source.LastProcessedAt = &last2
	if !IsDue(source, now) {
		t.Error("経過50000秒は間隔43200秒以上のため処理対象であるべき")
	}
}

// 経過時間ちょうどの境界で処理対象になることを検証
func TestIsDue_ExactBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)
	source := &model.Source{
		ScheduleUnit:    model.ScheduleUnitHour,
		ScheduleCount:   1,
		LastProcessedAt: &last,
	}

	if !IsDue(source, now) {
		t.Error("経過時間が間隔ちょうどの場合は処理対象であるべき")
	}
}

// IsDueが経過時間に対して単調であることを検証:
// 時刻Tで処理対象なら、それ以降の任意の時刻でも処理対象
func TestIsDue_Monotonic(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	last := base.Add(-12 * time.Hour)
	source := &model.Source{
		ScheduleUnit:    model.ScheduleUnitDay,
		ScheduleCount:   2,
		LastProcessedAt: &last,
	}

	if !IsDue(source, base) {
		t.Fatal("前提: 時刻baseで処理対象であるべき")
	}

	for _, delta := range []time.Duration{time.Second, time.Hour, 24 * time.Hour, 365 * 24 * time.Hour} {
		if !IsDue(source, base.Add(delta)) {
			t.Errorf("時刻base+%vでも処理対象であり続けるべき", delta)
		}
	}
}
