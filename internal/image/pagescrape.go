package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// decorativePattern は装飾用画像（アイコン・ロゴ等）を除外するパターン。
var decorativePattern = regexp.MustCompile(`(?i)icon|logo|avatar|social|button|share|pixel`)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// PageScraper は記事ページ本体から画像URL候補を抽出する。
// フィード項目内の戦略がすべて不発だった場合の最終手段として使う。
type PageScraper struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
}

// NewPageScraper はPageScraperの新しいインスタンスを生成する。
func NewPageScraper(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	userAgent string,
) *PageScraper {
	return &PageScraper{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		userAgent:   userAgent,
	}
}

// FetchDocument は記事ページを取得してパース済みドキュメントを返す。
// ページ取得は1記事につき1回で、複数の抽出戦略が同じドキュメントを共有する。
func (s *PageScraper) FetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.ssrfGuard.ValidateURL(pageURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout, s.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス異常: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, s.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("HTMLのパースに失敗: %w", err)
	}

	return doc, nil
}

// pageStrategy はパース済みページから画像URL候補を1つ抽出する戦略。
type pageStrategy struct {
	name    string
	extract func(doc *goquery.Document) string
}

// pageStrategies は記事ページに対する戦略を優先順に並べたもの。
var pageStrategies = []pageStrategy{
	{"og_image", extractOGImage},
	{"twitter_image", extractTwitterImage},
	{"first_substantial_img", extractFirstSubstantialImage},
}

// extractOGImage はog:imageメタタグのcontent属性を抽出する。
// property属性とname属性のどちらで宣言されていても拾う。
func extractOGImage(doc *goquery.Document) string {
	return metaContent(doc, `meta[property="og:image"]`, `meta[name="og:image"]`)
}

// extractTwitterImage はtwitter:imageメタタグのcontent属性を抽出する。
func extractTwitterImage(doc *goquery.Document) string {
	return metaContent(doc, `meta[name="twitter:image"]`, `meta[property="twitter:image"]`)
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// extractFirstSubstantialImage はページ本文中の最初の実体的なimg要素を探す。
// URLに装飾用画像のパターン（アイコン・ロゴ・アバター・SNSボタン・
// トラッキングピクセル等）を含むものは読み飛ばす。
func extractFirstSubstantialImage(doc *goquery.Document) string {
	var found string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			src, ok = sel.Attr("data-src")
		}
		if !ok {
			return true
		}
		src = strings.TrimSpace(src)
		if src == "" || decorativePattern.MatchString(src) {
			return true
		}
		found = src
		return false
	})
	return found
}
