package image

import (
	"context"
	"log/slog"

	"github.com/hitoshi/newsmill/internal/model"
)

// Candidate は受理された画像URL候補。Strategyは採用された戦略名。
type Candidate struct {
	URL      string
	Strategy string
}

// Resolver は記事の代表画像URLを解決するカスケード。
// フィード項目内の8戦略を優先順に評価し、すべて不発なら
// 記事ページを1回だけ取得して3つのスクレイプ戦略を試す。
// 各候補は検証（IsValidImageURL）と品質向上（EnhanceURL）を通過して
// はじめて受理され、どちらかで棄却された候補は次の戦略に進む。
type Resolver struct {
	scraper *PageScraper
	logger  *slog.Logger
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(scraper *PageScraper, logger *slog.Logger) *Resolver {
	return &Resolver{
		scraper: scraper,
		logger:  logger,
	}
}

// Resolve は記事の代表画像URLを解決する。
// 画像が見つからない場合は(nil, nil)を返す。画像なしはエラーではない。
func (r *Resolver) Resolve(ctx context.Context, item *model.ParsedItem) (*Candidate, error) {
	// フィード項目内の戦略
	for _, strategy := range feedStrategies {
		if candidate := r.accept(strategy.extract(item), strategy.name); candidate != nil {
			return candidate, nil
		}
	}

	// ページスクレイプ（取得は1回、戦略間でドキュメントを共有）
	if item.Permalink == "" {
		return nil, nil
	}

	doc, err := r.scraper.FetchDocument(ctx, item.Permalink)
	if err != nil {
		// ページが取れなくても記事処理は続行する。画像なし扱い。
		r.logger.Warn("記事ページの取得に失敗しました",
			slog.String("permalink", item.Permalink),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}

	for _, strategy := range pageStrategies {
		if candidate := r.accept(strategy.extract(doc), strategy.name); candidate != nil {
			return candidate, nil
		}
	}

	return nil, nil
}

// accept は抽出結果に検証と品質向上を適用する。棄却ならnil。
func (r *Resolver) accept(raw, strategyName string) *Candidate {
	if raw == "" {
		return nil
	}

	validated, ok := IsValidImageURL(raw)
	if !ok {
		return nil
	}

	enhanced, ok := EnhanceURL(validated)
	if !ok {
		r.logger.Debug("低解像度の署名付き画像URLを棄却しました",
			slog.String("strategy", strategyName),
			slog.String("url", validated),
		)
		return nil
	}

	return &Candidate{URL: enhanced, Strategy: strategyName}
}
