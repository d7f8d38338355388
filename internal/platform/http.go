package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/reviewpulse/backend/internal/models"
	"github.com/reviewpulse/backend/internal/monitoring"
)

// httpClient is the shared fetch implementation behind the per-platform
// clients. Each platform gets its own circuit breaker so one failing
// provider trips fast without affecting the others.
type httpClient struct {
	platform models.Platform
	baseURL  string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func newHTTPClient(platform models.Platform, baseURL, apiKey string, timeout time.Duration) *httpClient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        string(platform),
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("platform", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Platform circuit breaker state changed")
		},
	})

	return &httpClient{
		platform: platform,
		baseURL:  baseURL,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		breaker:  cb,
	}
}

// wireReview is the JSON shape shared by the platform review endpoints
type wireReview struct {
	ID          string    `json:"id"`
	Rating      int       `json:"rating"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	PublishedAt time.Time `json:"published_at"`
}

type wirePage struct {
	Reviews       []wireReview `json:"reviews"`
	NextPageToken string       `json:"next_page_token"`
}

// fetch pulls all review pages for a profile, newest first
func (c *httpClient) fetch(ctx context.Context, path, profileID string, since *time.Time) ([]RawReview, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchAllPages(ctx, path, profileID, since)
	})

	kind := ""
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			err = NewError(c.platform, ErrKindTransient, "circuit breaker open", err)
		}
		kind = string(KindOf(err))
	}
	monitoring.RecordPlatformFetch(string(c.platform), time.Since(start), kind)

	if err != nil {
		return nil, err
	}
	return result.([]RawReview), nil
}

func (c *httpClient) fetchAllPages(ctx context.Context, path, profileID string, since *time.Time) ([]RawReview, error) {
	var all []RawReview
	pageToken := ""

	for {
		page, err := c.fetchPage(ctx, path, profileID, since, pageToken)
		if err != nil {
			return nil, err
		}

		for _, w := range page.Reviews {
			all = append(all, RawReview{
				ExternalID:  w.ID,
				Rating:      w.Rating,
				Content:     w.Text,
				Author:      w.Author,
				PublishedAt: w.PublishedAt,
			})
		}

		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *httpClient) fetchPage(ctx context.Context, path, profileID string, since *time.Time, pageToken string) (*wirePage, error) {
	endpoint := fmt.Sprintf("%s%s", c.baseURL, fmt.Sprintf(path, url.PathEscape(profileID)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewError(c.platform, ErrKindTransient, "failed to build request", err)
	}

	q := req.URL.Query()
	if since != nil {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewError(c.platform, ErrKindTransient, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, NewError(c.platform, ErrKindAuth, fmt.Sprintf("authentication rejected (%d)", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewError(c.platform, ErrKindRateLimit, "platform rate limit exceeded", nil)
	case resp.StatusCode == http.StatusNotFound:
		return nil, NewError(c.platform, ErrKindNotFound, "profile not found", nil)
	case resp.StatusCode >= 500:
		return nil, NewError(c.platform, ErrKindTransient, fmt.Sprintf("upstream error (%d)", resp.StatusCode), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, NewError(c.platform, ErrKindTransient, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, NewError(c.platform, ErrKindTransient, "failed to read response", err)
	}

	var page wirePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, NewError(c.platform, ErrKindTransient, "failed to decode response", err)
	}

	return &page, nil
}
