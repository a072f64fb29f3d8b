// Package image は記事の代表画像の解決を提供する。
// フィード内の複数の抽出戦略と記事ページのスクレイプを
// 順序付きカスケードとして評価し、最初に有効なURLを返す。
package image

import (
	"net/url"
	"strings"
)

// imageExtensions は画像として認識するパス拡張子。
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// hostingMarkers は画像ホスティングを示すパスセグメント。
// 拡張子を持たないCDN配信URLをこのマーカーで許可する。
var hostingMarkers = []string{"images", "img", "media", "uploads", "wp-content", "cdn"}

// NormalizeURL は候補URLを検証用に正規化する。
// プロトコル相対URL（//host/path）はhttpsを前置して絶対URLにする。
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

// IsValidImageURL は候補URLが画像URLとして妥当かを判定する。
// 条件: 非空で、構文的に正しい絶対URL（プロトコル相対は正規化後）であり、
// かつ (a) パスが既知の画像拡張子で終わる（クエリ文字列は許容）、または
// (b) パスに画像ホスティングのマーカーセグメントを含むこと。
// 戻り値は正規化済みURLと判定結果。
func IsValidImageURL(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	normalized := NormalizeURL(raw)

	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	if parsed.Host == "" {
		return "", false
	}

	path := strings.ToLower(parsed.Path)

	// (a) 既知の画像拡張子で終わる
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return normalized, true
		}
	}

	// (b) 画像ホスティングのパスセグメントを含む
	for _, segment := range strings.Split(path, "/") {
		for _, marker := range hostingMarkers {
			if segment == marker {
				return normalized, true
			}
		}
	}

	return "", false
}
