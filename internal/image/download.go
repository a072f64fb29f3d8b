package image

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Downloader は解決済み画像URLのバイナリ取得を行う。
type Downloader struct {
	ssrfGuard   SSRFValidator
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	userAgent   string
}

// NewDownloader はDownloaderの新しいインスタンスを生成する。
func NewDownloader(
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	userAgent string,
) *Downloader {
	return &Downloader{
		ssrfGuard:   ssrfGuard,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		userAgent:   userAgent,
	}
}

// Download は画像をダウンロードしてバイナリとMIMEタイプを返す。
// Content-Typeがimage/*でないレスポンスは画像として扱わない。
func (d *Downloader) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	if err := d.ssrfGuard.ValidateURL(imageURL); err != nil {
		return nil, "", fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := d.ssrfGuard.NewSafeClient(d.timeout, d.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTPステータス異常: %d", resp.StatusCode)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", fmt.Errorf("画像でないContent-Type: %s", mime)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBodySize))
	if err != nil {
		return nil, "", fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("空のレスポンスボディ")
	}

	d.logger.Debug("画像をダウンロードしました",
		slog.String("url", imageURL),
		slog.String("mime", mime),
		slog.Int("bytes", len(data)),
	)

	return data, mime, nil
}
