// Package dedup は記事ごとの重複・変更検知の判定を提供する。
// 判定はストアやネットワークに依存しない純粋関数として実装される。
package dedup

// Policy は既存記事に対する取り扱い方針を表す。
type Policy string

const (
	// PolicySkipDuplicates は既存記事を常にスキップする方針。
	PolicySkipDuplicates Policy = "skip-duplicates"
	// PolicyUpdateDuplicates は変更のある既存記事を更新する方針。
	PolicyUpdateDuplicates Policy = "update-duplicates"
)

// Decision は1記事に対するパイプラインの処理判定を表す。
type Decision int

const (
	// DecisionCreate は新規記事として作成する判定。リライトを伴う。
	DecisionCreate Decision = iota
	// DecisionFullUpdate はタイトル・本文を含む全更新の判定。リライトを伴う。
	DecisionFullUpdate
	// DecisionImageOnly は不足している画像の解決のみを試みる判定。
	// タイトル・本文・フィンガープリントは変更せず、リライトも行わない。
	DecisionImageOnly
	// DecisionSkip は何も行わない判定。
	DecisionSkip
)

// String はDecisionの文字列表現を返す。
func (d Decision) String() string {
	switch d {
	case DecisionCreate:
		return "create"
	case DecisionFullUpdate:
		return "full_update"
	case DecisionImageOnly:
		return "image_only"
	case DecisionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// NeedsRewrite はこの判定がリライトコラボレーターの呼び出しを必要とするかを返す。
// 変更のないコンテンツを再送しないことがコスト面の不変条件となる。
func (d Decision) NeedsRewrite() bool {
	return d == DecisionCreate || d == DecisionFullUpdate
}

// Decide は1記事の処理判定を返す。
// 入力の全組み合わせがいずれか1つの判定に対応する（全域性）:
//
//	既存なし                                        → Create
//	既存あり × skip-duplicates                      → Skip
//	既存あり × update × 変更あり                    → FullUpdate
//	既存あり × update × 変更なし × 画像あり         → Skip
//	既存あり × update × 変更なし × 画像なし         → ImageOnly
//
// 判定はランごとに1回だけ計算され、そのランでは確定となる。
func Decide(exists bool, policy Policy, changed bool, hasImage bool) Decision {
	if !exists {
		return DecisionCreate
	}
	if policy != PolicyUpdateDuplicates {
		return DecisionSkip
	}
	if changed {
		return DecisionFullUpdate
	}
	if hasImage {
		return DecisionSkip
	}
	return DecisionImageOnly
}
