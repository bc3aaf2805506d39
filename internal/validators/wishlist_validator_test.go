package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeWishlistURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "canonical wishlist",
			in:   "https://www.amazon.co.jp/hz/wishlist/ls/ABC123",
			want: "https://www.amazon.co.jp/hz/wishlist/ls/ABC123",
		},
		{
			name: "query and fragment stripped",
			in:   "https://www.amazon.co.jp/hz/wishlist/ls/ABC123?ref=cm_sw&tag=x#item",
			want: "https://www.amazon.co.jp/hz/wishlist/ls/ABC123",
		},
		{
			name: "trailing slash trimmed",
			in:   "https://amazon.co.jp/hz/wishlist/ls/ABC123/",
			want: "https://amazon.co.jp/hz/wishlist/ls/ABC123",
		},
		{
			name: "uppercase host folded",
			in:   "https://WWW.AMAZON.CO.JP/hz/wishlist/ls/ABC123",
			want: "https://www.amazon.co.jp/hz/wishlist/ls/ABC123",
		},
		{
			name: "registry page",
			in:   "https://www.amazon.com/gp/registry/wishlist/XYZ",
			want: "https://www.amazon.com/gp/registry/wishlist/XYZ",
		},
		{
			name: "surrounding whitespace",
			in:   "  https://www.amazon.co.jp/hz/wishlist/ls/ABC123  ",
			want: "https://www.amazon.co.jp/hz/wishlist/ls/ABC123",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeWishlistURL(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeWishlistURLRejects(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"plain http", "http://www.amazon.co.jp/hz/wishlist/ls/ABC123"},
		{"foreign host", "https://example.com/hz/wishlist/ls/ABC123"},
		{"lookalike host", "https://amazon.co.jp.evil.example/hz/wishlist/ls/ABC123"},
		{"no wishlist marker", "https://www.amazon.co.jp/dp/B000000000"},
		{"not a url", "://broken"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NormalizeWishlistURL(tc.in)
			assert.ErrorIs(t, err, ErrInvalidWishlistURL)
		})
	}
}
