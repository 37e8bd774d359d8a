// Package feed pulls supplier price feeds from the marketplace API and
// keeps the local catalog mirror current.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"buildmart/internal"
	"buildmart/internal/config"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *rateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Products []map[string]any `json:"products"`
	ScrollID *string          `json:"scrollId"`
	Total    *int             `json:"total"`
}

// Record is one feed entry: a product plus the supplier it belongs to.
type Record struct {
	Product  internal.Product
	Supplier internal.Supplier
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FeedTimeoutMs) * time.Millisecond},
		limiter:    newRateLimiter(cfg.FeedRateLimitRPS),
	}
}

// FetchAll walks the full product feed via scroll pagination.
func (c *Client) FetchAll(ctx context.Context) ([]Record, error) {
	return c.fetchScroll(ctx, map[string]string{})
}

// FetchUpdatedSince fetches products changed within the last N hours.
func (c *Client) FetchUpdatedSince(ctx context.Context, hours int) ([]Record, error) {
	if hours <= 0 {
		hours = 24
	}
	return c.fetchScroll(ctx, map[string]string{"updatedHours": strconv.Itoa(hours)})
}

func (c *Client) fetchScroll(ctx context.Context, params map[string]string) ([]Record, error) {
	all := make([]Record, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "product/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Products {
			record, err := toRecord(raw)
			if err != nil {
				continue
			}
			all = append(all, record)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Products) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.FeedAPIToken) == "" {
		return nil, errors.New("missing FEED_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.FeedBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.waitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.FeedAPIToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("feed status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("feed api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			return nil, fmt.Errorf("feed api unsuccessful: %s", string(apiResp.Errors))
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("feed request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toRecord(raw map[string]any) (Record, error) {
	name, _ := raw["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return Record{}, errors.New("empty name")
	}

	id, ok := toInt64(raw["id"])
	if !ok {
		return Record{}, errors.New("missing id")
	}
	supplierID, ok := toInt64(raw["supplierId"])
	if !ok {
		return Record{}, errors.New("missing supplierId")
	}

	record := Record{
		Product: internal.Product{
			ID:          id,
			SupplierID:  supplierID,
			Name:        name,
			Description: toString(raw["description"]),
			Category:    firstNonEmpty(toString(raw["category"]), "other"),
			Price:       toFloat(raw["price"]),
			Unit:        toString(raw["unit"]),
			Stock:       toFloat(raw["stock"]),
			Rating:      toFloat(raw["rating"]),
			IsActive:    toBool(raw["isActive"], true),
		},
		Supplier: internal.Supplier{ID: supplierID},
	}

	if supplier, ok := raw["supplier"].(map[string]any); ok {
		record.Supplier.Name = toString(supplier["name"])
		record.Supplier.Company = toString(supplier["company"])
		record.Supplier.Email = toString(supplier["email"])
		record.Supplier.Phone = toString(supplier["phone"])
		record.Supplier.Address = toString(supplier["address"])
	}
	if record.Supplier.Name == "" {
		record.Supplier.Name = fmt.Sprintf("Supplier %d", supplierID)
	}

	return record, nil
}

func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
	}
	return 0
}

func toString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func toBool(v any, fallback bool) bool {
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
