package wishlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ringokai/internal/models"
)

var ErrNotConfigured = errors.New("no wishlist inspector configured")

// HTTPInspector asks an external inspector service what is on a wishlist
// page. The scraping itself lives in that service.
type HTTPInspector struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPInspector(endpoint, apiKey string, timeout time.Duration) *HTTPInspector {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPInspector{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (i *HTTPInspector) Inspect(ctx context.Context, wishlistURL string) (*models.WishlistSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		i.endpoint+"?url="+url.QueryEscape(wishlistURL), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build inspector request: %w", err)
	}
	if i.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+i.apiKey)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inspector request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inspector response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inspector API error (%d): %s", resp.StatusCode, string(body))
	}

	var snapshot models.WishlistSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode inspector response: %w", err)
	}
	return &snapshot, nil
}

// StubInspector rejects every inspection. Used when no inspector service is
// configured, so registration fails loudly instead of storing junk.
type StubInspector struct{}

func NewStubInspector() *StubInspector {
	return &StubInspector{}
}

func (i *StubInspector) Inspect(ctx context.Context, wishlistURL string) (*models.WishlistSnapshot, error) {
	return nil, ErrNotConfigured
}
