// Package pipeline は取り込み処理全体の調整を提供する。
// ソース選定、フィード取得、重複判定、リライト、画像解決、永続化を
// 逐次に実行する。記事単位の失敗はその記事の断念にとどめ、
// ラン全体は継続する。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsmill/internal/dedup"
	"github.com/hitoshi/newsmill/internal/fingerprint"
	"github.com/hitoshi/newsmill/internal/image"
	"github.com/hitoshi/newsmill/internal/metrics"
	"github.com/hitoshi/newsmill/internal/model"
	"github.com/hitoshi/newsmill/internal/progress"
	"github.com/hitoshi/newsmill/internal/repository"
	"github.com/hitoshi/newsmill/internal/rewrite"
	"github.com/hitoshi/newsmill/internal/schedule"
)

// FeedFetcher はフィード取得のインターフェース。
type FeedFetcher interface {
	Fetch(ctx context.Context, source *model.Source) ([]model.ParsedItem, error)
}

// Rewriter は記事リライトのインターフェース。
type Rewriter interface {
	Configured() bool
	Rewrite(ctx context.Context, title, body string) (*rewrite.Result, error)
}

// ImageResolver は代表画像URL解決のインターフェース。
type ImageResolver interface {
	Resolve(ctx context.Context, item *model.ParsedItem) (*image.Candidate, error)
}

// ImageDownloader は画像バイナリ取得のインターフェース。
type ImageDownloader interface {
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// Sanitizer はHTMLのサニタイズとテキスト抽出のインターフェース。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	StripText(rawHTML string) string
}

// Options は1回のランの実行条件。
type Options struct {
	// Forced が真の場合、スケジュール判定を無視してソースを処理する。
	Forced bool
	// SourceIDs が空でない場合、対象を指定ソースに限定する（強制実行のみ）。
	SourceIDs []string
}

// Coordinator はパイプライン実行の調整役。
type Coordinator struct {
	sources    repository.SourceRepository
	articles   repository.ArticleRepository
	fetcher    FeedFetcher
	rewriter   Rewriter
	resolver   ImageResolver
	downloader ImageDownloader
	sanitizer  Sanitizer
	prints     *fingerprint.Generator
	reporter   *progress.Reporter
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time
}

// NewCoordinator はCoordinatorの新しいインスタンスを生成する。
func NewCoordinator(
	sources repository.SourceRepository,
	articles repository.ArticleRepository,
	fetcher FeedFetcher,
	rewriter Rewriter,
	resolver ImageResolver,
	downloader ImageDownloader,
	sanitizer Sanitizer,
	prints *fingerprint.Generator,
	reporter *progress.Reporter,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		sources:    sources,
		articles:   articles,
		fetcher:    fetcher,
		rewriter:   rewriter,
		resolver:   resolver,
		downloader: downloader,
		sanitizer:  sanitizer,
		prints:     prints,
		reporter:   reporter,
		collector:  collector,
		logger:     logger,
		now:        time.Now,
	}
}

// Run はランを同期実行し、実行IDを返す。
// リライトAPIが未設定の場合は処理開始前にErrRewriteNotConfiguredで中止する。
// すでにランが進行中の場合はErrRunActiveを返す。
func (c *Coordinator) Run(ctx context.Context, opts Options) (string, error) {
	runID, sources, err := c.begin(ctx, opts)
	if err != nil {
		return "", err
	}
	c.execute(ctx, sources, opts.Forced)
	return runID, nil
}

// Start はランを開始し、処理の本体をバックグラウンドで継続する。
// 実行IDは即座に返るため、HTTPハンドラからの手動トリガーに使う。
func (c *Coordinator) Start(ctx context.Context, opts Options) (string, error) {
	runID, sources, err := c.begin(ctx, opts)
	if err != nil {
		return "", err
	}
	go c.execute(context.WithoutCancel(ctx), sources, opts.Forced)
	return runID, nil
}

// begin は実行条件の検証、対象ソースの選定、ランの開始を行う。
func (c *Coordinator) begin(ctx context.Context, opts Options) (string, []*model.Source, error) {
	// 設定不備はランを開始する前に中止する
	if !c.rewriter.Configured() {
		return "", nil, model.ErrRewriteNotConfigured
	}

	sources, err := c.selectSources(ctx, opts)
	if err != nil {
		return "", nil, err
	}

	runID, err := c.reporter.Begin(ctx, opts.Forced)
	if err != nil {
		return "", nil, err
	}

	return runID, sources, nil
}

// selectSources は処理対象のソースを選定する。
// スケジュール実行では有効ソースのうち処理期限が到来したもののみ、
// 強制実行ではスケジュール判定を無視して全有効ソース
// （SourceIDs指定時は該当ソース）を対象とする。
func (c *Coordinator) selectSources(ctx context.Context, opts Options) ([]*model.Source, error) {
	if opts.Forced && len(opts.SourceIDs) > 0 {
		sources, err := c.sources.ListByIDs(ctx, opts.SourceIDs)
		if err != nil {
			return nil, fmt.Errorf("対象ソースの取得に失敗: %w", err)
		}
		return sources, nil
	}

	enabled, err := c.sources.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("有効ソースの取得に失敗: %w", err)
	}

	if opts.Forced {
		return enabled, nil
	}

	now := c.now()
	var due []*model.Source
	for _, source := range enabled {
		if schedule.IsDue(source, now) {
			due = append(due, source)
		}
	}
	return due, nil
}

// sourceItems は取得フェーズの結果。ソースとその記事の組。
type sourceItems struct {
	source *model.Source
	items  []model.ParsedItem
}

// execute はランの本体。完了時に必ず進捗を確定させる。
func (c *Coordinator) execute(ctx context.Context, sources []*model.Source, forced bool) {
	start := c.now()
	c.collector.RecordRun(forced)

	defer func() {
		c.collector.RecordRunDuration(time.Since(start))
		if err := c.reporter.Finalize(ctx); err != nil {
			c.logger.Error("ランの確定に失敗しました", slog.String("error", err.Error()))
		}
	}()

	// 取得フェーズ: 全件数を確定させてから処理に入る
	c.reporter.SetStatus("フィード取得中")
	fetched := make([]sourceItems, 0, len(sources))
	total := 0
	for _, source := range sources {
		items, err := c.fetcher.Fetch(ctx, source)
		if err != nil {
			c.collector.RecordSourceFetchFailure()
			c.reporter.RecordSourceFailure(source.Name)
			c.reporter.Append(fmt.Sprintf("ソース %s の取得に失敗: %v", source.Name, err))
			c.logger.Warn("フィード取得に失敗しました",
				slog.String("source_id", source.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		fetched = append(fetched, sourceItems{source: source, items: items})
		total += len(items)
	}
	c.reporter.SetTotal(total)
	c.reporter.Append(fmt.Sprintf("処理対象 %d ソース %d 記事", len(fetched), total))

	// 処理フェーズ: ソース単位・記事単位で逐次処理する
	for _, sf := range fetched {
		for i := range sf.items {
			item := &sf.items[i]
			c.reporter.Advance(fmt.Sprintf("%s: %s", sf.source.Name, item.Title))
			c.processItem(ctx, sf.source, item)
		}

		if err := c.sources.UpdateLastProcessed(ctx, sf.source.ID, c.now()); err != nil {
			c.logger.Error("最終処理時刻の更新に失敗しました",
				slog.String("source_id", sf.source.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// processItem は1記事分の処理を行う。失敗はこの記事の断念にとどめる。
func (c *Coordinator) processItem(ctx context.Context, source *model.Source, item *model.ParsedItem) {
	if item.Permalink == "" {
		c.recordFailure(item.Title, "パーマリンクがありません")
		return
	}

	existing, err := c.articles.FindByPermalink(ctx, item.Permalink)
	if err != nil {
		c.recordFailure(item.Title, fmt.Sprintf("既存記事の検索に失敗: %v", err))
		return
	}

	fp := c.prints.Compute(item.Title, item.ContentHTML)
	changed := existing == nil || existing.Fingerprint != fp
	hasImage := existing != nil && existing.HasImage

	decision := dedup.Decide(existing != nil, dedup.Policy(source.DedupPolicy), changed, hasImage)

	switch decision {
	case dedup.DecisionSkip:
		c.finishItem(decision, item.Title)

	case dedup.DecisionImageOnly:
		// テキストとフィンガープリントには触れず、不足画像の補完のみを試みる
		c.attachImage(ctx, existing.ID, item)
		c.finishItem(decision, item.Title)

	case dedup.DecisionCreate, dedup.DecisionFullUpdate:
		if ok := c.rewriteAndPersist(ctx, source, item, existing, fp, decision); ok {
			c.finishItem(decision, item.Title)
		}
	}
}

// rewriteAndPersist はリライトと永続化を行う。
// リライト失敗時は部分的な結果を一切保存せず、記事を断念してfalseを返す。
func (c *Coordinator) rewriteAndPersist(
	ctx context.Context,
	source *model.Source,
	item *model.ParsedItem,
	existing *model.Article,
	fp string,
	decision dedup.Decision,
) bool {
	result, err := c.rewriter.Rewrite(ctx, item.Title, c.sanitizer.StripText(item.ContentHTML))
	if err != nil {
		c.collector.RecordRewriteFailure()
		c.recordFailure(item.Title, fmt.Sprintf("リライトに失敗: %v", err))
		return false
	}

	now := c.now()
	article := &model.Article{
		SourcePermalink: item.Permalink,
		SourceName:      source.Name,
		Title:           result.Title,
		OriginalTitle:   item.Title,
		Body:            c.sanitizer.Sanitize(result.Body),
		Fingerprint:     fp,
		PublishedAt:     item.PublishedAt,
		UpdatedAt:       now,
	}

	if decision == dedup.DecisionFullUpdate {
		article.ID = existing.ID
		article.CreatedAt = existing.CreatedAt
		if err := c.articles.Update(ctx, article); err != nil {
			c.recordFailure(item.Title, fmt.Sprintf("記事の更新に失敗: %v", err))
			return false
		}
		// 全更新でも既存画像は保持し、欠けている場合のみ補完する
		if !existing.HasImage {
			c.attachImage(ctx, existing.ID, item)
		}
		return true
	}

	// IDとタイムスタンプは永続化前にパイプライン側で確定させる
	article.ID = uuid.New().String()
	article.CreatedAt = now
	id, err := c.articles.Create(ctx, article)
	if err != nil {
		c.recordFailure(item.Title, fmt.Sprintf("記事の作成に失敗: %v", err))
		return false
	}

	c.applyMetadata(ctx, id, source, item)
	c.attachImage(ctx, id, item)
	return true
}

// attachImage は代表画像の解決・取得・保存を試みる。
// 画像なしと取得失敗はいずれもエラーにせず、記事のテキスト処理から独立させる。
func (c *Coordinator) attachImage(ctx context.Context, articleID string, item *model.ParsedItem) {
	candidate, err := c.resolver.Resolve(ctx, item)
	if err != nil || candidate == nil {
		return
	}

	data, mime, err := c.downloader.Download(ctx, candidate.URL)
	if err != nil {
		c.reporter.Append(fmt.Sprintf("画像の取得に失敗: %s (%v)", candidate.URL, err))
		return
	}

	if err := c.articles.SetImage(ctx, articleID, data, mime, candidate.URL); err != nil {
		c.logger.Error("画像の保存に失敗しました",
			slog.String("article_id", articleID),
			slog.String("error", err.Error()),
		)
		return
	}

	c.collector.RecordImageResolved(candidate.Strategy)
}

// applyMetadata はソース設定のフラグに応じて記事メタデータを設定する。
func (c *Coordinator) applyMetadata(ctx context.Context, articleID string, source *model.Source, item *model.ParsedItem) {
	set := func(key, value string) {
		if value == "" {
			return
		}
		if err := c.articles.SetMeta(ctx, articleID, key, value); err != nil {
			c.logger.Warn("メタデータの設定に失敗しました",
				slog.String("article_id", articleID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	if source.IncludeAuthor {
		set("author", item.Author)
	}
	if source.IncludePubdate && item.PublishedAt != nil {
		set("pubdate", item.PublishedAt.Format(time.RFC3339))
	}
	if source.IncludeTags {
		set("tags", strings.Join(item.Categories, ","))
	}
	if source.IncludeLocations {
		set("location", item.GeoPoint)
	}
}

// finishItem は記事の処理完了を進捗とメトリクスに反映する。
func (c *Coordinator) finishItem(decision dedup.Decision, title string) {
	c.reporter.Record(decision.String())
	c.collector.RecordItemProcessed(decision.String())
	c.reporter.Append(fmt.Sprintf("%s: %s", decision.String(), title))
}

// recordFailure は記事の処理失敗を進捗とログに反映する。
func (c *Coordinator) recordFailure(title, reason string) {
	c.reporter.Record("failed")
	c.collector.RecordItemProcessed("failed")
	c.reporter.Append(fmt.Sprintf("failed: %s (%s)", title, reason))
}
