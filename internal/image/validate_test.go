package image

import "testing"

// 画像URL検証の受理・棄却パターンを検証
func TestIsValidImageURL(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"jpg拡張子", "https://example.com/photo.jpg", "https://example.com/photo.jpg", true},
		{"png拡張子", "https://example.com/a/b/pic.png", "https://example.com/a/b/pic.png", true},
		{"webp拡張子", "https://example.com/pic.webp", "https://example.com/pic.webp", true},
		{"大文字拡張子", "https://example.com/PHOTO.JPG", "https://example.com/PHOTO.JPG", true},
		{"クエリ付き拡張子", "https://example.com/photo.jpg?w=300", "https://example.com/photo.jpg?w=300", true},
		{"プロトコル相対", "//cdn.example.com/photo.jpg", "https://cdn.example.com/photo.jpg", true},
		{"uploadsマーカー", "https://example.com/uploads/abc123", "https://example.com/uploads/abc123", true},
		{"wp-contentマーカー", "https://example.com/wp-content/abc", "https://example.com/wp-content/abc", true},
		{"imgマーカー", "https://example.com/img/abc", "https://example.com/img/abc", true},
		{"cdnマーカー", "https://example.com/cdn/v2/abc", "https://example.com/cdn/v2/abc", true},
		{"空文字列", "", "", false},
		{"空白のみ", "   ", "", false},
		{"相対パス", "/images/photo.jpg", "", false},
		{"拡張子もマーカーもなし", "https://example.com/article/123", "", false},
		{"非httpスキーム", "ftp://example.com/photo.jpg", "", false},
		{"マーカーの部分一致は不可", "https://example.com/imagine/abc", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, valid := IsValidImageURL(tt.raw)
			if valid != tt.valid {
				t.Fatalf("IsValidImageURL(%q) valid = %v, want %v", tt.raw, valid, tt.valid)
			}
			if got != tt.want {
				t.Errorf("IsValidImageURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
