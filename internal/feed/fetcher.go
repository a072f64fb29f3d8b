// Package feed は外部フィードの取得とパースを提供する。
// gofeedの薄いアダプタとして、パイプラインが消費するParsedItemへの変換を行う。
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsmill/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher は1ソース分のフィードのHTTPフェッチとパースを行う。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
	pageSize    int
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// pageSizeは1ソースあたりの取得記事数の上限（フィード先頭からの件数）。
func NewFetcher(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	userAgent string,
	pageSize int,
) *Fetcher {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		userAgent:   userAgent,
		pageSize:    pageSize,
	}
}

// Fetch はソースのフィードを取得し、最新pageSize件のParsedItemを
// フィード記載順（新しい順）で返す。
func (f *Fetcher) Fetch(ctx context.Context, source *model.Source) ([]model.ParsedItem, error) {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(source.URL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス異常: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	items := ConvertItems(parsedFeed.Items, f.pageSize)

	f.logger.Info("フィードフェッチが完了しました",
		slog.String("source_id", source.ID),
		slog.String("source_url", source.URL),
		slog.Int("items_total", len(parsedFeed.Items)),
		slog.Int("items_taken", len(items)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return items, nil
}

// ConvertItems はgofeedの記事をmodel.ParsedItemに変換する。
// limitが正の場合は先頭からlimit件のみを変換する。
func ConvertItems(items []*gofeed.Item, limit int) []model.ParsedItem {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	parsedItems := make([]model.ParsedItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		parsed := model.ParsedItem{
			Permalink:   item.Link,
			Title:       item.Title,
			Description: item.Description,
			ContentHTML: item.Content,
			Categories:  item.Categories,
		}

		// Contentが空の場合はDescriptionを使用
		if parsed.ContentHTML == "" && item.Description != "" {
			parsed.ContentHTML = item.Description
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをパーマリンクとして使用
		if parsed.Permalink == "" && isHTTPURL(item.GUID) {
			parsed.Permalink = item.GUID
		}

		// 著者情報
		if item.Author != nil {
			parsed.Author = item.Author.Name
		}
		if parsed.Author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			parsed.Author = item.Authors[0].Name
		}

		// 公開日時
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			parsed.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			parsed.PublishedAt = &t
		}

		// enclosure要素（最初の1つのみ使用）
		if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
			parsed.EnclosureURL = item.Enclosures[0].URL
			parsed.EnclosureType = item.Enclosures[0].Type
		}

		// media名前空間の拡張
		parsed.MediaContentURL = mediaExtensionURL(item, "content")
		parsed.MediaThumbnailURL = mediaExtensionURL(item, "thumbnail")

		// georss名前空間の拡張（位置情報メタデータ用）
		parsed.GeoPoint = extensionValue(item, "georss", "point")

		parsedItems = append(parsedItems, parsed)
	}

	return parsedItems
}

// mediaExtensionURL はmedia名前空間拡張（media:content / media:thumbnail）の
// url属性を取り出す。存在しない場合は空文字列を返す。
func mediaExtensionURL(item *gofeed.Item, name string) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	exts, ok := media[name]
	if !ok || len(exts) == 0 {
		return ""
	}
	return exts[0].Attrs["url"]
}

// extensionValue は名前空間拡張のテキスト値を取り出す。存在しない場合は空文字列。
func extensionValue(item *gofeed.Item, namespace, name string) string {
	ns, ok := item.Extensions[namespace]
	if !ok {
		return ""
	}
	exts, ok := ns[name]
	if !ok || len(exts) == 0 {
		return ""
	}
	return exts[0].Value
}

// isHTTPURL は文字列がhttp/httpsのURLかを判定する。
func isHTTPURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}
