package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresRunRepo はPostgreSQLを使用したランリポジトリ。
// ラン完了時のログスナップショットの永続ストアを兼ねる。
type PostgresRunRepo struct {
	db *sql.DB
}

// NewPostgresRunRepo はPostgresRunRepoを生成する。
func NewPostgresRunRepo(db *sql.DB) *PostgresRunRepo {
	return &PostgresRunRepo{db: db}
}

// Create はラン開始時のレコードを作成する。
func (r *PostgresRunRepo) Create(ctx context.Context, run *model.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, forced, started_at)
		 VALUES ($1, $2, $3)`,
		run.ID, run.Forced, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("ランの作成に失敗しました: %w", err)
	}
	return nil
}

// Finish はラン完了時にサマリーカウントとログスナップショットを保存する。
func (r *PostgresRunRepo) Finish(ctx context.Context, run *model.Run) error {
	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE runs SET
		    finished_at = $2, processed = $3, created = $4, updated = $5,
		    skipped = $6, failed = $7, failed_sources = $8, log_snapshot = $9
		 WHERE id = $1`,
		run.ID, finishedAt, run.Processed, run.Created, run.Updated,
		run.Skipped, run.Failed,
		pq.Array(run.FailedSources), pq.Array(run.LogSnapshot),
	)
	if err != nil {
		return fmt.Errorf("ランの完了記録に失敗しました: %w", err)
	}
	return nil
}

// FindLatest は最新のランを返す。存在しない場合はnilを返す。
func (r *PostgresRunRepo) FindLatest(ctx context.Context) (*model.Run, error) {
	run := &model.Run{}
	var finishedAt sql.NullTime
	var failedSources, logSnapshot pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`SELECT id, forced, started_at, finished_at, processed, created, updated,
		        skipped, failed, failed_sources, log_snapshot
		 FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(
		&run.ID, &run.Forced, &run.StartedAt, &finishedAt,
		&run.Processed, &run.Created, &run.Updated,
		&run.Skipped, &run.Failed, &failedSources, &logSnapshot,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新ランの取得に失敗しました: %w", err)
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	run.FailedSources = []string(failedSources)
	run.LogSnapshot = []string(logSnapshot)

	return run, nil
}

// compile-time interface check
var _ RunRepository = (*PostgresRunRepo)(nil)
