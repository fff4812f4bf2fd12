package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/merchtools/collectioner/internal/models"
)

const apiVersion = "2024-01"

// Client talks to the Shopify Admin REST API for a single store.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

// New creates a client for the given store. The shop URL may carry a
// scheme and trailing slashes; both are stripped.
func New(shopURL, accessToken string) *Client {
	return &Client{
		BaseURL:     "https://" + NormalizeShopURL(shopURL),
		AccessToken: accessToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NormalizeShopURL strips the scheme and trailing slashes from a
// user-supplied shop URL.
func NormalizeShopURL(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "https://")
	raw = strings.TrimPrefix(raw, "http://")
	return strings.TrimRight(raw, "/")
}

// ProductRecord is a product as returned by the products listing.
// Shopify reports tags as a single comma-separated string.
type ProductRecord struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Tags  string `json:"tags"`
}

// HasTag reports whether the product carries the given tag,
// case-insensitively.
func (p ProductRecord) HasTag(tag string) bool {
	want := strings.ToLower(strings.TrimSpace(tag))
	for _, t := range strings.Split(p.Tags, ",") {
		if strings.ToLower(strings.TrimSpace(t)) == want {
			return true
		}
	}
	return false
}

// ListProducts fetches one page of products. An empty pageURL requests
// the first page with the given limit; subsequent pages use the URL
// from the previous response's Link header. The returned next URL is
// empty when no further page exists.
func (c *Client) ListProducts(ctx context.Context, pageURL string, limit int) ([]ProductRecord, string, error) {
	if pageURL == "" {
		pageURL = fmt.Sprintf("%s/admin/api/%s/products.json?limit=%d", c.BaseURL, apiVersion, limit)
	}

	body, header, err := c.get(ctx, "list products", pageURL)
	if err != nil {
		return nil, "", err
	}

	var response struct {
		Products []ProductRecord `json:"products"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, "", fmt.Errorf("failed to decode products response: %w", err)
	}

	return response.Products, parseNextLink(header.Get("Link")), nil
}

// ListCollections returns all custom collections in the store.
func (c *Client) ListCollections(ctx context.Context) ([]models.RemoteCollection, error) {
	url := fmt.Sprintf("%s/admin/api/%s/custom_collections.json", c.BaseURL, apiVersion)

	body, _, err := c.get(ctx, "list collections", url)
	if err != nil {
		return nil, err
	}

	var response struct {
		CustomCollections []models.RemoteCollection `json:"custom_collections"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode collections response: %w", err)
	}
	return response.CustomCollections, nil
}

// CreateCollection creates a published custom collection. A response
// shaped as a collection listing rather than a single created entity
// is reported as a PermissionError: Shopify answers the create this
// way when the token is missing write_products scope.
func (c *Client) CreateCollection(ctx context.Context, title string) (models.RemoteCollection, error) {
	url := fmt.Sprintf("%s/admin/api/%s/custom_collections.json", c.BaseURL, apiVersion)

	payload := map[string]any{
		"custom_collection": map[string]any{
			"title":     title,
			"published": true,
		},
	}
	body, err := c.post(ctx, "create collection", url, payload)
	if err != nil {
		return models.RemoteCollection{}, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.RemoteCollection{}, fmt.Errorf("failed to decode create response: %w", err)
	}

	if _, isList := raw["custom_collections"]; isList {
		return models.RemoteCollection{}, &PermissionError{
			Op:           "create collection",
			Detail:       fmt.Sprintf("creating %q", title),
			ListResponse: true,
		}
	}

	var response struct {
		CustomCollection models.RemoteCollection `json:"custom_collection"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return models.RemoteCollection{}, fmt.Errorf("failed to decode create response: %w", err)
	}
	if response.CustomCollection.ID == 0 {
		return models.RemoteCollection{}, &APIError{Op: "create collection", Status: http.StatusOK, Body: "response missing collection id"}
	}
	return response.CustomCollection, nil
}

// DeleteCollection removes a custom collection. Used by the permission
// probe to clean up after itself.
func (c *Client) DeleteCollection(ctx context.Context, id int64) error {
	url := fmt.Sprintf("%s/admin/api/%s/custom_collections/%d.json", c.BaseURL, apiVersion, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus("delete collection", resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// AddProduct adds a product to a collection via a collect. A 422
// response means the product is already in the collection and is
// reported as ErrAlreadyMember.
func (c *Client) AddProduct(ctx context.Context, collectionID, productID int64) error {
	url := fmt.Sprintf("%s/admin/api/%s/collects.json", c.BaseURL, apiVersion)

	payload := map[string]any{
		"collect": map[string]any{
			"product_id":    productID,
			"collection_id": collectionID,
		},
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal collect: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to add product to collection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		io.Copy(io.Discard, resp.Body)
		return ErrAlreadyMember
	}
	if err := c.checkStatus("add product", resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) get(ctx context.Context, op, url string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, resp); err != nil {
		return nil, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	return body, resp.Header, nil
}

func (c *Client) post(ctx context.Context, op, url string, payload any) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(op, resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("X-Shopify-Access-Token", c.AccessToken)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) checkStatus(op string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(resp.Body)
		return &PermissionError{Op: op, Detail: strings.TrimSpace(string(body))}
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		body, _ := io.ReadAll(resp.Body)
		return &APIError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	// Shopify sends fractional seconds, e.g. "2.0".
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// parseNextLink extracts the rel="next" URL from a Link header, or
// returns an empty string when no next page exists.
func parseNextLink(header string) string {
	if header == "" {
		return ""
	}
	for _, link := range strings.Split(header, ",") {
		if !strings.Contains(link, `rel="next"`) {
			continue
		}
		part := strings.SplitN(link, ";", 2)[0]
		return strings.Trim(strings.TrimSpace(part), "<>")
	}
	return ""
}
