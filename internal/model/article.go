package model

import "time"

// Article はパイプラインが生成・更新する公開記事を表す。
// source_permalinkがストア内で一意のキーとなる。
// パイプラインは作成と更新のみを行い、削除はしない。
type Article struct {
	ID              string
	SourcePermalink string
	SourceName      string
	Title           string
	OriginalTitle   string
	Body            string // サニタイズ済みHTML
	Fingerprint     string // 正規化済みタイトル+本文のハッシュ
	HasImage        bool
	ImageURL        string
	ImageData       []byte
	ImageMime       string
	PublishedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
