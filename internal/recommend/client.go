// Package recommend calls the external triage service that maps free-text
// symptoms to a consultant. The service is opaque to the engine; only the
// returned consultant id and explanation are used.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keanulaw/NeoCare-App/internal/metrics"
)

// Recommendation is the usable part of the service response.
type Recommendation struct {
	ConsultantID string `json:"doctorId"`
	Explanation  string `json:"explanation"`
}

type recommendRequest struct {
	Symptoms string `json:"symptoms"`
}

type recommendResponse struct {
	DoctorID    string `json:"doctorId"`
	Explanation string `json:"explanation"`
	Error       string `json:"error,omitempty"`
}

// Client is an HTTP client for the recommendation service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client for the given service URL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching of responses, keyed by
// the normalized symptom text.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Recommend posts the symptoms and returns the recommended consultant.
// A non-2xx status or an error field in the body is returned as an error.
func (c *Client) Recommend(ctx context.Context, symptoms string) (*Recommendation, error) {
	cacheKey := "recommendation:" + normalizeSymptoms(symptoms)

	var cached Recommendation
	if c.readCache(ctx, cacheKey, &cached) {
		metrics.IncRecommendation("cache_hit")
		return &cached, nil
	}

	data, err := json.Marshal(recommendRequest{Symptoms: symptoms})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.IncRecommendation("unreachable")
		return nil, fmt.Errorf("recommendation service: %w", err)
	}
	defer resp.Body.Close()

	var body recommendResponse
	if resp.StatusCode >= 300 {
		metrics.IncRecommendation("error")
		// Best effort: the service reports failures in the body too.
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Error != "" {
			return nil, fmt.Errorf("recommendation service: %s", body.Error)
		}
		return nil, fmt.Errorf("recommendation service: http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.IncRecommendation("error")
		return nil, fmt.Errorf("recommendation service: decode: %w", err)
	}
	if body.Error != "" {
		metrics.IncRecommendation("error")
		return nil, fmt.Errorf("recommendation service: %s", body.Error)
	}
	if body.DoctorID == "" {
		metrics.IncRecommendation("error")
		return nil, fmt.Errorf("recommendation service: empty doctorId")
	}

	rec := Recommendation{ConsultantID: body.DoctorID, Explanation: body.Explanation}
	c.writeCache(ctx, cacheKey, rec)
	metrics.IncRecommendation("ok")
	return &rec, nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func normalizeSymptoms(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
