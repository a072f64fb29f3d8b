package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/newsmill/internal/model"
)

// 各リポジトリがインターフェースを満たすことを検証
func TestPostgresRepos_ImplementInterfaces(t *testing.T) {
	var _ SourceRepository = (*PostgresSourceRepo)(nil)
	var _ ArticleRepository = (*PostgresArticleRepo)(nil)
	var _ RunRepository = (*PostgresRunRepo)(nil)
}

// コンストラクタが正しく初期化されることを検証
func TestNewPostgresRepos_Initialize(t *testing.T) {
	if NewPostgresSourceRepo(nil) == nil {
		t.Error("NewPostgresSourceRepo が nil を返した")
	}
	if NewPostgresArticleRepo(nil) == nil {
		t.Error("NewPostgresArticleRepo が nil を返した")
	}
	if NewPostgresRunRepo(nil) == nil {
		t.Error("NewPostgresRunRepo が nil を返した")
	}
}

// Sourceモデルのlast_processed_atがnil許容であることを検証
func TestSourceModel_NeverProcessed(t *testing.T) {
	source := &model.Source{
		ID:            "source-1",
		URL:           "https://example.com/feed.xml",
		Name:          "Example News",
		Enabled:       true,
		ScheduleUnit:  model.ScheduleUnitDay,
		ScheduleCount: 2,
	}

	if source.LastProcessedAt != nil {
		t.Error("last_processed_at は未処理のソースでnilであるべき")
	}
}

// nullStringヘルパーの双方向変換を検証
func TestNullStringHelpers(t *testing.T) {
	if nullString("").Valid {
		t.Error("空文字列はNULLに変換されるべき")
	}
	if !nullString("value").Valid {
		t.Error("非空文字列はValidであるべき")
	}
	if nullStringValue(nullString("value")) != "value" {
		t.Error("nullStringValue が往復変換で値を失った")
	}
	if nullStringValue(sql.NullString{}) != "" {
		t.Error("NULLは空文字列になるべき")
	}
}

// Articleモデルの画像フィールドがデフォルトで空であることを検証
func TestArticleModel_NoImageByDefault(t *testing.T) {
	now := time.Now()
	article := &model.Article{
		ID:              "article-1",
		SourcePermalink: "https://example.com/post/1",
		Title:           "タイトル",
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if article.HasImage {
		t.Error("has_image はデフォルトでfalseであるべき")
	}
	if article.ImageData != nil {
		t.Error("image_data はデフォルトでnilであるべき")
	}
}
