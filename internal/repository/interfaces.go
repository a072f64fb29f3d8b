// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// SourceRepository はフィードソース設定の永続化インターフェース。
// ソースの作成・編集は外部の管理コラボレーターが行うため、
// パイプライン側は読み取りとlast_processed_atの更新のみを必要とする。
type SourceRepository interface {
	// FindByID は指定IDのソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Source, error)

	// ListEnabled は有効なソースの一覧を返す。
	ListEnabled(ctx context.Context) ([]*model.Source, error)

	// ListByIDs は指定IDのソース一覧を返す。存在しないIDは無視される。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Source, error)

	// UpdateLastProcessed はソースの最終処理時刻を更新する。
	// スケジュールサイクル完了時に1回だけ呼ばれる。
	UpdateLastProcessed(ctx context.Context, sourceID string, processedAt time.Time) error
}

// ArticleRepository は公開記事（コンテンツストア）の永続化インターフェース。
type ArticleRepository interface {
	// FindByPermalink はsource_permalinkで記事を検索する。見つからない場合はnilを返す。
	FindByPermalink(ctx context.Context, permalink string) (*model.Article, error)

	// Create は新規記事を作成し、IDを返す。
	Create(ctx context.Context, article *model.Article) (string, error)

	// Update は既存記事のテキスト内容とフィンガープリントを上書き更新する。
	Update(ctx context.Context, article *model.Article) error

	// SetImage は記事に画像を添付し、has_imageを更新する。
	SetImage(ctx context.Context, articleID string, data []byte, mimeType, sourceURL string) error

	// GetMeta は記事のメタデータ値を取得する。未設定の場合は空文字列を返す。
	GetMeta(ctx context.Context, articleID, key string) (string, error)

	// SetMeta は記事のメタデータ値を冪等に設定する。
	SetMeta(ctx context.Context, articleID, key, value string) error
}

// RunRepository はラン（パイプライン実行）メタデータの永続化インターフェース。
// ログスナップショットの永続ストアを兼ねる。
type RunRepository interface {
	// Create はラン開始時のレコードを作成する。
	Create(ctx context.Context, run *model.Run) error

	// Finish はラン完了時にサマリーカウントとログスナップショットを保存する。
	Finish(ctx context.Context, run *model.Run) error

	// FindLatest は最新のランを返す。存在しない場合はnilを返す。
	FindLatest(ctx context.Context) (*model.Run, error)
}
