package image

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/newsmill/internal/model"
)

// feedStrategy はフィード項目から画像URL候補を1つ抽出する戦略。
// 候補がない場合は空文字列を返す。
type feedStrategy struct {
	name    string
	extract func(item *model.ParsedItem) string
}

// feedStrategies はフィード項目に対する戦略を優先順に並べたもの。
// カスケードはこの順に評価し、最初に受理された候補で打ち切る。
var feedStrategies = []feedStrategy{
	{"media_content", func(item *model.ParsedItem) string {
		return item.MediaContentURL
	}},
	{"media_thumbnail", func(item *model.ParsedItem) string {
		return item.MediaThumbnailURL
	}},
	{"enclosure_thumbnail", func(item *model.ParsedItem) string {
		if strings.HasPrefix(item.EnclosureType, "image/") {
			return item.EnclosureURL
		}
		return ""
	}},
	{"enclosure_link", func(item *model.ParsedItem) string {
		return item.EnclosureURL
	}},
	{"content_img_src", func(item *model.ParsedItem) string {
		return firstImgAttr(item.ContentHTML, "src")
	}},
	{"content_data_src", func(item *model.ParsedItem) string {
		return firstImgAttr(item.ContentHTML, "data-src")
	}},
	{"content_srcset", func(item *model.ParsedItem) string {
		return firstSrcsetURL(item.ContentHTML)
	}},
	{"description_img_src", func(item *model.ParsedItem) string {
		return firstImgAttr(item.Description, "src")
	}},
}

// firstImgAttr はHTML断片から最初のimg要素の指定属性値を抽出する。
// フィード内の壊れたHTMLにも耐えるようトークナイザを使う。
func firstImgAttr(fragment, attrName string) string {
	if fragment == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return ""
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		if token.Data != "img" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key == attrName && strings.TrimSpace(attr.Val) != "" {
				return strings.TrimSpace(attr.Val)
			}
		}
	}
}

// firstSrcsetURL はHTML断片内の最初のsrcset属性から先頭のURLを取り出す。
// srcsetは「URL 記述子, URL 記述子, ...」形式のため、最初のカンマ区切り
// 要素の空白区切り先頭トークンがURLになる。
func firstSrcsetURL(fragment string) string {
	if fragment == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return ""
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		if token.Data != "img" && token.Data != "source" {
			continue
		}
		for _, attr := range token.Attr {
			if attr.Key != "srcset" {
				continue
			}
			first := attr.Val
			if i := strings.Index(first, ","); i >= 0 {
				first = first[:i]
			}
			fields := strings.Fields(first)
			if len(fields) > 0 {
				return fields[0]
			}
		}
	}
}
