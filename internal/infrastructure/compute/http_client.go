package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"geostack_service/internal/domain/model"
)

// HTTPBackend talks JSON to a remote compute service. The session token is
// held by the handle, never in package state.
type HTTPBackend struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewHTTPBackend(endpoint, token string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type existsRequest struct {
	ID string `json:"id"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

func (c *HTTPBackend) Exists(ctx context.Context, id string) (bool, error) {
	var resp existsResponse
	if err := c.post(ctx, "/v1/assets/exists", existsRequest{ID: id}, &resp); err != nil {
		return false, fmt.Errorf("failed to check asset %s: %w", id, err)
	}
	return resp.Exists, nil
}

func (c *HTTPBackend) Describe(ctx context.Context, q model.CollectionQuery) (model.CollectionInfo, error) {
	var info model.CollectionInfo
	if err := c.post(ctx, "/v1/collections/describe", q, &info); err != nil {
		return model.CollectionInfo{}, fmt.Errorf("failed to describe collection %s: %w", q.Collection, err)
	}
	return info, nil
}

func (c *HTTPBackend) Features(ctx context.Context, q model.FeatureQuery) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	if err := c.post(ctx, "/v1/features", q, fc); err != nil {
		return nil, fmt.Errorf("failed to query features of %s: %w", q.Dataset, err)
	}
	return fc, nil
}

func (c *HTTPBackend) Execute(ctx context.Context, plan model.Plan) (model.PlanResult, error) {
	var result model.PlanResult
	if err := c.post(ctx, "/v1/plans", plan, &result); err != nil {
		return model.PlanResult{}, fmt.Errorf("failed to execute plan: %w", err)
	}
	return result, nil
}

func (c *HTTPBackend) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("compute service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("compute service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
