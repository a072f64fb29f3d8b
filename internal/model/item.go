package model

import "time"

// ParsedItem はフィードパーサーから取得した1記事分の生データを表す。
// 永続化されず、1回のランの中で消費される。
type ParsedItem struct {
	Permalink   string
	Title       string
	Description string     // 未サニタイズのHTML
	ContentHTML string     // 未サニタイズのHTML
	PublishedAt *time.Time
	Author      string
	Categories  []string

	// enclosure要素（サムネイル/リンクのペア、存在しない場合は空）
	EnclosureURL  string
	EnclosureType string

	// media名前空間の拡張（media:content / media:thumbnail のURL）
	MediaContentURL   string
	MediaThumbnailURL string

	// georss名前空間の拡張（georss:point の座標文字列、存在しない場合は空）
	GeoPoint string
}
