package dedup

import "testing"

// 判定テーブルの全組み合わせを検証（全域性）
func TestDecide_Table(t *testing.T) {
	tests := []struct {
		name     string
		exists   bool
		policy   Policy
		changed  bool
		hasImage bool
		want     Decision
	}{
		{"新規記事", false, PolicySkipDuplicates, false, false, DecisionCreate},
		{"新規記事はポリシーに依存しない", false, PolicyUpdateDuplicates, true, true, DecisionCreate},
		{"既存×skipポリシー", true, PolicySkipDuplicates, true, false, DecisionSkip},
		{"既存×skipポリシー×変更なし", true, PolicySkipDuplicates, false, true, DecisionSkip},
		{"既存×update×変更あり", true, PolicyUpdateDuplicates, true, false, DecisionFullUpdate},
		{"既存×update×変更あり×画像あり", true, PolicyUpdateDuplicates, true, true, DecisionFullUpdate},
		{"既存×update×変更なし×画像あり", true, PolicyUpdateDuplicates, false, true, DecisionSkip},
		{"既存×update×変更なし×画像なし", true, PolicyUpdateDuplicates, false, false, DecisionImageOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.exists, tt.policy, tt.changed, tt.hasImage)
			if got != tt.want {
				t.Errorf("Decide(%v, %s, %v, %v) = %s, want %s",
					tt.exists, tt.policy, tt.changed, tt.hasImage, got, tt.want)
			}
		})
	}
}

// 全組み合わせが必ずいずれかの判定に対応することを検証
func TestDecide_Total(t *testing.T) {
	policies := []Policy{PolicySkipDuplicates, PolicyUpdateDuplicates}
	bools := []bool{false, true}

	for _, exists := range bools {
		for _, policy := range policies {
			for _, changed := range bools {
				for _, hasImage := range bools {
					got := Decide(exists, policy, changed, hasImage)
					switch got {
					case DecisionCreate, DecisionFullUpdate, DecisionImageOnly, DecisionSkip:
						// ok
					default:
						t.Errorf("Decide(%v, %s, %v, %v) が未知の判定 %d を返した",
							exists, policy, changed, hasImage, got)
					}
				}
			}
		}
	}
}

// リライト要否の不変条件を検証:
// Create/FullUpdateのみリライトを必要とし、ImageOnly/Skipは決して必要としない
func TestNeedsRewrite(t *testing.T) {
	if !DecisionCreate.NeedsRewrite() {
		t.Error("Create はリライトを必要とするべき")
	}
	if !DecisionFullUpdate.NeedsRewrite() {
		t.Error("FullUpdate はリライトを必要とするべき")
	}
	if DecisionImageOnly.NeedsRewrite() {
		t.Error("ImageOnly はリライトを必要としないべき")
	}
	if DecisionSkip.NeedsRewrite() {
		t.Error("Skip はリライトを必要としないべき")
	}
}

// 不明なポリシーがskip-duplicatesと同様に扱われることを検証
func TestDecide_UnknownPolicy(t *testing.T) {
	got := Decide(true, Policy("unknown"), true, false)
	if got != DecisionSkip {
		t.Errorf("不明なポリシーでは既存記事をスキップするべき, got %s", got)
	}
}

// Decision文字列表現を検証
func TestDecision_String(t *testing.T) {
	tests := []struct {
		d    Decision
		want string
	}{
		{DecisionCreate, "create"},
		{DecisionFullUpdate, "full_update"},
		{DecisionImageOnly, "image_only"},
		{DecisionSkip, "skip"},
		{Decision(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.d.String(); got != tt.want {
			t.Errorf("Decision(%d).String() = %q, want %q", tt.d, got, tt.want)
		}
	}
}
