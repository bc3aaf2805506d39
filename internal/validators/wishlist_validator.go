package validators

import (
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidWishlistURL = errors.New("not a recognizable public wishlist URL")

// allowedWishlistHosts are the storefront hosts a wishlist may live on.
var allowedWishlistHosts = map[string]bool{
	"amazon.co.jp":     true,
	"www.amazon.co.jp": true,
	"amazon.jp":        true,
	"www.amazon.jp":    true,
	"amazon.com":       true,
	"www.amazon.com":   true,
}

// wishlistPathMarkers are path fragments that identify a wishlist or
// registry page.
var wishlistPathMarkers = []string{
	"/hz/wishlist",
	"/gp/registry",
	"/wishlist",
	"/registry",
}

// NormalizeWishlistURL validates a wishlist link and strips query noise and
// fragments so stored URLs compare cleanly.
func NormalizeWishlistURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidWishlistURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidWishlistURL
	}
	if parsed.Scheme != "https" {
		return "", ErrInvalidWishlistURL
	}

	host := strings.ToLower(parsed.Hostname())
	if !allowedWishlistHosts[host] {
		return "", ErrInvalidWishlistURL
	}

	path := strings.ToLower(parsed.Path)
	marker := false
	for _, m := range wishlistPathMarkers {
		if strings.Contains(path, m) {
			marker = true
			break
		}
	}
	if !marker {
		return "", ErrInvalidWishlistURL
	}

	normalized := url.URL{
		Scheme: "https",
		Host:   host,
		Path:   strings.TrimSuffix(parsed.Path, "/"),
	}
	return normalized.String(), nil
}
