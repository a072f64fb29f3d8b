// Package rewrite は外部の文章生成APIによる記事のリライトを提供する。
// OpenAI互換のchat completionsエンドポイントに対して、タイトルと本文を
// 所定のラベル付き形式で書き直させ、レスポンスをパースして返す。
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/newsmill/internal/model"
)

// titlePattern / contentPattern はAPIレスポンスの本文からラベル付き
// セクションを切り出す。CONTENT:以降は末尾まで全体を本文とする。
var (
	titlePattern   = regexp.MustCompile(`(?m)^\s*TITLE:\s*(.+)$`)
	contentPattern = regexp.MustCompile(`(?s)CONTENT:\s*(.+)\z`)
)

// Result はリライト結果。
type Result struct {
	Title string
	Body  string
}

// Rewriter は文章生成APIのクライアント。
type Rewriter struct {
	client    *http.Client
	logger    *slog.Logger
	limiter   *rate.Limiter
	apiURL    string
	apiKey    string
	model     string
	maxTokens int
}

// NewRewriter はRewriterの新しいインスタンスを生成する。
// limiterは連続呼び出しのペース制御に使う。nilの場合は制御なし。
func NewRewriter(
	logger *slog.Logger,
	limiter *rate.Limiter,
	apiURL string,
	apiKey string,
	modelName string,
	maxTokens int,
	timeout time.Duration,
) *Rewriter {
	return &Rewriter{
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		limiter:   limiter,
		apiURL:    strings.TrimRight(apiURL, "/"),
		apiKey:    apiKey,
		model:     modelName,
		maxTokens: maxTokens,
	}
}

// Configured はAPIの接続情報が揃っているかを返す。
// 揃っていない場合、パイプラインは処理開始前にErrRewriteNotConfiguredで停止する。
func (r *Rewriter) Configured() bool {
	return r.apiURL != "" && r.apiKey != ""
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Rewrite はタイトルとタグ除去済み本文をAPIに書き直させる。
// レスポンスがTITLE:とCONTENT:の両ラベルを含まない場合はエラーを返し、
// 呼び出し側は当該記事の処理を断念する（部分的な結果は使わない）。
func (r *Rewriter) Rewrite(ctx context.Context, title, body string) (*Result, error) {
	if !r.Configured() {
		return nil, model.ErrRewriteNotConfigured
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レート制御の待機に失敗: %w", err)
		}
	}

	start := time.Now()

	reqBody, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "user", Content: buildPrompt(title, body)},
		},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストのエンコードに失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.apiURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("リライトAPIへのリクエストに失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("リライトAPIがステータス%dを返しました: %s",
			resp.StatusCode, truncate(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("レスポンスのデコードに失敗: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("リライトAPIのレスポンスに生成結果が含まれていません")
	}

	result, err := parseLabeledResponse(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	r.logger.Info("記事のリライトが完了しました",
		slog.String("model", r.model),
		slog.Int("title_len", len(result.Title)),
		slog.Int("body_len", len(result.Body)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// buildPrompt はリライト指示のプロンプトを組み立てる。
// 出力形式をラベルで固定し、パース失敗を減らす。
func buildPrompt(title, body string) string {
	var b strings.Builder
	b.WriteString("あなたはニュース編集者です。以下の記事のタイトルと本文を、")
	b.WriteString("事実関係を変えずに独自の表現で書き直してください。\n")
	b.WriteString("出力は必ず次の形式に従ってください。他のテキストは含めないでください。\n\n")
	b.WriteString("TITLE: 書き直したタイトル\n")
	b.WriteString("CONTENT: 書き直した本文\n\n")
	b.WriteString("--- 元のタイトル ---\n")
	b.WriteString(title)
	b.WriteString("\n\n--- 元の本文 ---\n")
	b.WriteString(body)
	return b.String()
}

// parseLabeledResponse は生成結果からTITLE:とCONTENT:を切り出す。
// どちらかが欠けている場合はエラー。
func parseLabeledResponse(content string) (*Result, error) {
	titleMatch := titlePattern.FindStringSubmatch(content)
	if titleMatch == nil {
		return nil, fmt.Errorf("生成結果にTITLE:ラベルが見つかりません")
	}

	contentMatch := contentPattern.FindStringSubmatch(content)
	if contentMatch == nil {
		return nil, fmt.Errorf("生成結果にCONTENT:ラベルが見つかりません")
	}

	result := &Result{
		Title: strings.TrimSpace(titleMatch[1]),
		Body:  strings.TrimSpace(contentMatch[1]),
	}
	if result.Title == "" || result.Body == "" {
		return nil, fmt.Errorf("生成結果のタイトルまたは本文が空です")
	}

	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
