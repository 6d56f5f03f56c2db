// API service for making raw HTTP requests to a service proxy
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tiagowl/ImgMigrator/internal/shared"
)

const defaultProxyURL = "http://localhost:8080"

// APIService makes HTTP requests to a proxy, authenticating with a bearer token.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewAPIService creates a new API service instance for the proxy at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = defaultProxyURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// SetToken sets the bearer token sent with every request.
func (a *APIService) SetToken(token string) {
	a.token = token
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err converts a non-2xx response into an error. 401 maps to [shared.ErrTokenExpired], 404 to [shared.ErrItemNotFound].
func (r *APIResponse) Err() error {
	if r.OK() {
		return nil
	}

	detail := ""
	if obj, ok := r.JSONData.(map[string]any); ok {
		if d, ok := obj["detail"].(string); ok {
			detail = d
		} else if d, ok := obj["error"].(string); ok {
			detail = d
		}
	}

	switch r.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d %s", shared.ErrTokenExpired, r.StatusCode, detail)
	case http.StatusNotFound:
		return fmt.Errorf("%w: status %d %s", shared.ErrItemNotFound, r.StatusCode, detail)
	default:
		return fmt.Errorf("%w: status %d %s", shared.ErrAPIRequest, r.StatusCode, detail)
	}
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path)
}

// GetJSON performs a GET request and decodes a 2xx JSON body into result.
func (a *APIService) GetJSON(ctx context.Context, path string, result any) error {
	resp, err := a.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (a *APIService) do(ctx context.Context, method, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}

	var jsonData any
	if err := json.Unmarshal(respBody, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}
