package platform

import (
	"context"
	"time"

	"github.com/reviewpulse/backend/internal/models"
)

const fetchTimeout = 30 * time.Second

// GoogleClient fetches reviews from the Google Business Profile API
type GoogleClient struct {
	*httpClient
}

// NewGoogleClient creates a Google review fetch client
func NewGoogleClient(baseURL, apiKey string) *GoogleClient {
	return &GoogleClient{newHTTPClient(models.PlatformGoogle, baseURL, apiKey, fetchTimeout)}
}

func (c *GoogleClient) Platform() models.Platform { return models.PlatformGoogle }

func (c *GoogleClient) Fetch(ctx context.Context, profileID string, since *time.Time) ([]RawReview, error) {
	return c.fetch(ctx, "/v1/locations/%s/reviews", profileID, since)
}

// FacebookClient fetches reviews (recommendations) from the Facebook Graph API
type FacebookClient struct {
	*httpClient
}

// NewFacebookClient creates a Facebook review fetch client
func NewFacebookClient(baseURL, apiKey string) *FacebookClient {
	return &FacebookClient{newHTTPClient(models.PlatformFacebook, baseURL, apiKey, fetchTimeout)}
}

func (c *FacebookClient) Platform() models.Platform { return models.PlatformFacebook }

func (c *FacebookClient) Fetch(ctx context.Context, profileID string, since *time.Time) ([]RawReview, error) {
	return c.fetch(ctx, "/v18.0/%s/ratings", profileID, since)
}

// TrustpilotClient fetches reviews from the Trustpilot Business API
type TrustpilotClient struct {
	*httpClient
}

// NewTrustpilotClient creates a Trustpilot review fetch client
func NewTrustpilotClient(baseURL, apiKey string) *TrustpilotClient {
	return &TrustpilotClient{newHTTPClient(models.PlatformTrustpilot, baseURL, apiKey, fetchTimeout)}
}

func (c *TrustpilotClient) Platform() models.Platform { return models.PlatformTrustpilot }

func (c *TrustpilotClient) Fetch(ctx context.Context, profileID string, since *time.Time) ([]RawReview, error) {
	return c.fetch(ctx, "/v1/business-units/%s/reviews", profileID, since)
}
