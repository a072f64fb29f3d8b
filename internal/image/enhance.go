package image

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// minAcceptableWidth は低解像度とみなす幅の閾値（px）。
const minAcceptableWidth = 500

// targetWidth は画質向上で要求する幅（px）。
const targetWidth = 1920

// targetQuality は画質向上で要求するJPEG品質。
const targetQuality = 85

// guardianImageHost は幅をクエリパラメータで指定するCDN画像サービスのホスト。
const guardianImageHost = "i.guim.co.uk"

// masterSizePattern はパス末尾のマスター画像サイズ（例: /master/3000.jpg）を抽出する。
var masterSizePattern = regexp.MustCompile(`/(\d{3,5})\.(?:jpg|jpeg|png|webp)$`)

// EnhanceURL は受理済み候補URLに品質向上ルールを適用する。
//
// 幅指定CDN（guardianImageHost）の場合:
//   - 署名パラメータ付きURLは書き換えると署名が無効になるため、
//     要求幅が閾値以上ならそのまま受理し、閾値未満なら候補ごと棄却する。
//     棄却によりカスケードは次の戦略（通常はページスクレイプの
//     og:image、多くの場合より大きい未署名画像）へフォールバックする。
//   - 未署名で幅が閾値未満かつパスにマスターサイズがある場合は、
//     幅をmin(マスターサイズ, 1920)に書き換え、quality=85とformat/fitヒントを付与する。
//   - 未署名でサイズヒントがない場合は無条件にwidth=1920, quality=85を設定する。
//
// その他のプロバイダの場合は、既存のw/width/sizeクエリパラメータが
// あれば値を1920に置き換え、なければURLを変更しない。
//
// 戻り値は向上後のURLと受理可否。falseの場合、呼び出し側は
// この候補を棄却して次の戦略に進む。
func EnhanceURL(raw string) (string, bool) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if strings.EqualFold(parsed.Host, guardianImageHost) {
		return enhanceGuardianURL(parsed)
	}

	return enhanceGenericURL(parsed), true
}

// enhanceGuardianURL は幅指定CDNのURLに品質向上ルールを適用する。
func enhanceGuardianURL(parsed *url.URL) (string, bool) {
	q := parsed.Query()
	width := parseWidth(q.Get("width"))

	// 署名付きURLは書き換え不可。十分な幅ならそのまま使い、
	// 低解像度なら棄却してフォールバックさせる。
	if q.Get("s") != "" {
		if width >= minAcceptableWidth {
			return parsed.String(), true
		}
		return "", false
	}

	if width >= minAcceptableWidth {
		return parsed.String(), true
	}

	// パスのマスターサイズから上限を決める
	if m := masterSizePattern.FindStringSubmatch(parsed.Path); m != nil {
		master, _ := strconv.Atoi(m[1])
		requested := master
		if requested > targetWidth {
			requested = targetWidth
		}
		q.Set("width", strconv.Itoa(requested))
		q.Set("quality", strconv.Itoa(targetQuality))
		q.Set("auto", "format")
		q.Set("fit", "max")
		parsed.RawQuery = q.Encode()
		return parsed.String(), true
	}

	// サイズヒントなし: 無条件に最大幅を要求する
	q.Set("width", strconv.Itoa(targetWidth))
	q.Set("quality", strconv.Itoa(targetQuality))
	parsed.RawQuery = q.Encode()
	return parsed.String(), true
}

// enhanceGenericURL は汎用プロバイダのURLの幅パラメータを引き上げる。
func enhanceGenericURL(parsed *url.URL) string {
	q := parsed.Query()
	for _, param := range []string{"w", "width", "size"} {
		if q.Get(param) != "" {
			q.Set(param, strconv.Itoa(targetWidth))
			parsed.RawQuery = q.Encode()
			return parsed.String()
		}
	}
	return parsed.String()
}

// parseWidth は幅パラメータ値を整数に変換する。不正な値は0になる。
func parseWidth(s string) int {
	if s == "" {
		return 0
	}
	w, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return w
}
