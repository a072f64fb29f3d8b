package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/pipeline"
)

type fakeRunner struct {
	calls int
	err   error
	opts  []pipeline.Options
}

func (f *fakeRunner) Run(ctx context.Context, opts pipeline.Options) (string, error) {
	f.calls++
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return "", f.err
	}
	return "run-1", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Tickがスケジュール実行（非強制）としてパイプラインを起動することを検証
func TestTick_RunsScheduled(t *testing.T) {
	runner := &fakeRunner{}
	w := New(runner, testLogger(), 10*time.Minute)

	w.Tick(context.Background())

	if runner.calls != 1 {
		t.Fatalf("calls = %d, want 1", runner.calls)
	}
	if runner.opts[0].Forced {
		t.Error("スケジュール実行はForced = false であるべき")
	}
}

// 進行中のランがある場合にエラーにならずスキップされることを検証
func TestTick_SkipsWhenRunActive(t *testing.T) {
	runner := &fakeRunner{err: model.ErrRunActive}
	w := New(runner, testLogger(), 10*time.Minute)

	// panicや異常終了がないことのみ確認する
	w.Tick(context.Background())

	if runner.calls != 1 {
		t.Fatalf("calls = %d, want 1", runner.calls)
	}
}

// 実行エラーでもワーカーが継続可能であることを検証
func TestTick_SurvivesRunError(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("想定外のエラー")}
	w := New(runner, testLogger(), 10*time.Minute)

	w.Tick(context.Background())
	runner.err = nil
	w.Tick(context.Background())

	if runner.calls != 2 {
		t.Fatalf("calls = %d, want 2", runner.calls)
	}
}

// Start/Stopのライフサイクルを検証
func TestStartStop(t *testing.T) {
	runner := &fakeRunner{}
	w := New(runner, testLogger(), time.Hour)

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w.Stop(ctx)
}
