package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsmill/internal/model"
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// FindByPermalink はsource_permalinkで記事を検索する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByPermalink(ctx context.Context, permalink string) (*model.Article, error) {
	article := &model.Article{}
	var imageURL, imageMime sql.NullString
	var publishedAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, source_permalink, source_name, title, original_title, body,
		        fingerprint, has_image, image_url, image_data, image_mime,
		        published_at, created_at, updated_at
		 FROM articles WHERE source_permalink = $1`,
		permalink,
	).Scan(
		&article.ID, &article.SourcePermalink, &article.SourceName,
		&article.Title, &article.OriginalTitle, &article.Body,
		&article.Fingerprint, &article.HasImage,
		&imageURL, &article.ImageData, &imageMime,
		&publishedAt, &article.CreatedAt, &article.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の検索に失敗しました: %w", err)
	}

	article.ImageURL = nullStringValue(imageURL)
	article.ImageMime = nullStringValue(imageMime)
	if publishedAt.Valid {
		t := publishedAt.Time
		article.PublishedAt = &t
	}

	return article, nil
}

// Create は新規記事を作成し、IDを返す。
func (r *PostgresArticleRepo) Create(ctx context.Context, article *model.Article) (string, error) {
	var publishedAt sql.NullTime
	if article.PublishedAt != nil {
		publishedAt = sql.NullTime{Time: *article.PublishedAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO articles (id, source_permalink, source_name, title, original_title,
		                       body, fingerprint, has_image, image_url, image_data,
		                       image_mime, published_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		article.ID, article.SourcePermalink, article.SourceName,
		article.Title, article.OriginalTitle, article.Body,
		article.Fingerprint, article.HasImage,
		nullString(article.ImageURL), article.ImageData, nullString(article.ImageMime),
		publishedAt, article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("記事の作成に失敗しました: %w", err)
	}

	return article.ID, nil
}

// Update は既存記事のテキスト内容とフィンガープリントを上書き更新する。
// 画像関連のカラムはSetImageでのみ変更される。
func (r *PostgresArticleRepo) Update(ctx context.Context, article *model.Article) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET
		    title = $2, original_title = $3, body = $4,
		    fingerprint = $5, updated_at = $6
		 WHERE id = $1`,
		article.ID, article.Title, article.OriginalTitle,
		article.Body, article.Fingerprint, article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("記事の更新に失敗しました: %w", err)
	}
	return nil
}

// SetImage は記事に画像を添付し、has_imageをtrueに更新する。
// updated_atは変更しない（テキスト内容の変更時刻を保つため）。
func (r *PostgresArticleRepo) SetImage(ctx context.Context, articleID string, data []byte, mimeType, sourceURL string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE articles SET
		    has_image = true, image_data = $2, image_mime = $3, image_url = $4
		 WHERE id = $1`,
		articleID, data, nullString(mimeType), nullString(sourceURL),
	)
	if err != nil {
		return fmt.Errorf("画像の添付に失敗しました: %w", err)
	}
	return nil
}

// GetMeta は記事のメタデータ値を取得する。未設定の場合は空文字列を返す。
func (r *PostgresArticleRepo) GetMeta(ctx context.Context, articleID, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM article_meta WHERE article_id = $1 AND key = $2`,
		articleID, key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("メタデータの取得に失敗しました: %w", err)
	}
	return value, nil
}

// SetMeta は記事のメタデータ値を冪等にUPSERTする。
func (r *PostgresArticleRepo) SetMeta(ctx context.Context, articleID, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO article_meta (article_id, key, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (article_id, key) DO UPDATE SET value = EXCLUDED.value`,
		articleID, key, value,
	)
	if err != nil {
		return fmt.Errorf("メタデータの設定に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
