package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用したソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

const sourceColumns = `id, url, name, enabled, schedule_unit, schedule_count,
       dedup_policy, include_author, include_pubdate, include_tags, include_locations,
       last_processed_at, created_at, updated_at`

// scanSource は1行分のソースをスキャンする。
func scanSource(row interface{ Scan(...any) error }) (*model.Source, error) {
	source := &model.Source{}
	var lastProcessed sql.NullTime

	err := row.Scan(
		&source.ID, &source.URL, &source.Name, &source.Enabled,
		&source.ScheduleUnit, &source.ScheduleCount,
		&source.DedupPolicy,
		&source.IncludeAuthor, &source.IncludePubdate,
		&source.IncludeTags, &source.IncludeLocations,
		&lastProcessed, &source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastProcessed.Valid {
		t := lastProcessed.Time
		source.LastProcessedAt = &t
	}

	return source, nil
}

// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByID(ctx context.Context, id string) (*model.Source, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの取得に失敗しました: %w", err)
	}
	return source, nil
}

// ListEnabled は有効なソースの一覧をURL昇順で返す。
func (r *PostgresSourceRepo) ListEnabled(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE enabled = true ORDER BY url`)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ソースのスキャンに失敗しました: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の読み取りに失敗しました: %w", err)
	}

	return sources, nil
}

// ListByIDs は指定IDのソース一覧を返す。存在しないIDは無視される。
func (r *PostgresSourceRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Source, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = ANY($1) ORDER BY url`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ソースのスキャンに失敗しました: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の読み取りに失敗しました: %w", err)
	}

	return sources, nil
}

// UpdateLastProcessed はソースの最終処理時刻を更新する。
func (r *PostgresSourceRepo) UpdateLastProcessed(ctx context.Context, sourceID string, processedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sources SET last_processed_at = $2, updated_at = now() WHERE id = $1`,
		sourceID, processedAt)
	if err != nil {
		return fmt.Errorf("最終処理時刻の更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
