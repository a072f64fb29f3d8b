// Package fingerprint はコンテンツ変更検知用のハッシュ計算を提供する。
package fingerprint

import (
	"crypto/md5"
	"fmt"
)

// TextStripper はHTMLからプレーンテキストを抽出するインターフェース。
// security.ContentSanitizerServiceを抽象化してテスタビリティを向上させる。
type TextStripper interface {
	StripText(rawHTML string) string
}

// Generator はタイトルと本文からコンテンツフィンガープリントを計算する。
// フィンガープリントは等価比較にのみ使用され、逆変換されることはない。
type Generator struct {
	stripper TextStripper
}

// NewGenerator はGeneratorの新しいインスタンスを生成する。
func NewGenerator(stripper TextStripper) *Generator {
	return &Generator{stripper: stripper}
}

// Compute はタイトルとタグ除去済み本文を連結した128bitハッシュを16進文字列で返す。
// 本文HTMLはタグ除去と空白正規化を経てから連結されるため、
// マークアップだけの変更はフィンガープリントを変えない。
// 同一の正規化済み入力に対して常に同一の値を返す（決定性）。
func (g *Generator) Compute(title, bodyHTML string) string {
	normalized := g.stripper.StripText(bodyHTML)
	sum := md5.Sum([]byte(title + "\n" + normalized))
	return fmt.Sprintf("%x", sum)
}
