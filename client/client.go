// Package client talks to the ZMS REST backend. Every account resource
// (assets, expenses, revenue, liabilities, capital-account) and the
// generic resources (party, vendor, transporter, ...) share one JSON
// contract: a paginated list, create, update and delete.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/zms-erp/ledgertree/config"
	"github.com/zms-erp/ledgertree/models"
)

// OpeningBalanceResource is the backend resource for opening entries
const OpeningBalanceResource = "account-opening-balance"

// maxPages bounds ListAll in case the backend keeps reporting more pages
const maxPages = 10000

// statusConcurrency bounds the parallel requests of a bulk status update
const statusConcurrency = 8

var (
	// ErrNotFound is matched by an APIError with status 404
	ErrNotFound = errors.New("resource not found")
)

// APIError is returned for any non-2xx backend response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a 404
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Pagination is the misc block of a list response
type Pagination struct {
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
	PageIndex  int `json:"pageIndex"`
	PageSize   int `json:"pageSize"`
}

// ListResponse is one page of accounts
type ListResponse struct {
	Data []models.Account `json:"data"`
	Misc Pagination       `json:"misc"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// WirePage translates a zero-based UI page index into the page number sent
// to the backend. The legacy policy maps 0 to 1 and leaves every other index
// alone, so UI pages 0 and 1 request the same backend page. The offset
// policy adds one.
func WirePage(uiIndex int, policy string) int {
	if policy == config.PagePolicyOffset {
		return uiIndex + 1
	}
	if uiIndex == 0 {
		return 1
	}
	return uiIndex
}

// Client is a backend REST client
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	pagePolicy string
	httpClient *http.Client
	logger     *logrus.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.httpClient = h
	}
}

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client from backend configuration
func New(cfg *config.BackendConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		pageSize:   cfg.PageSize,
		pagePolicy: cfg.PagePolicy,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches one page. pageIndex is the zero-based UI index.
func (c *Client) List(ctx context.Context, resource string, pageIndex, pageSize int) (*ListResponse, error) {
	return c.listWire(ctx, resource, WirePage(pageIndex, c.pagePolicy), pageSize)
}

// ListAll fetches every page of a resource using the configured page size
func (c *Client) ListAll(ctx context.Context, resource string) ([]models.Account, error) {
	var all []models.Account
	for page := 1; page <= maxPages; page++ {
		resp, err := c.listWire(ctx, resource, page, c.pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
		if len(resp.Data) == 0 || page >= resp.Misc.TotalPages {
			break
		}
	}
	return all, nil
}

func (c *Client) listWire(ctx context.Context, resource string, wirePage, pageSize int) (*ListResponse, error) {
	query := url.Values{}
	query.Set("pageIndex", strconv.Itoa(wirePage))
	query.Set("pageSize", strconv.Itoa(pageSize))

	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(resource)+"?"+query.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("listing %s page %d: %w", resource, wirePage, err)
	}
	resp.Data = models.NormalizeAccounts(resp.Data)
	return &resp, nil
}

type accountPayload struct {
	ListID          string  `json:"listid,omitempty"`
	Description     string  `json:"description"`
	ParentAccountID *string `json:"parentAccountId"`
}

// Create posts a new account. The backend assigns id and listid.
func (c *Client) Create(ctx context.Context, resource string, account models.Account) (models.Account, error) {
	account = account.Normalized()
	body := accountPayload{
		Description:     account.Description,
		ParentAccountID: account.ParentAccountID,
	}
	var resp envelope[models.Account]
	if err := c.do(ctx, http.MethodPost, c.endpoint(resource), body, &resp); err != nil {
		return models.Account{}, fmt.Errorf("creating %s: %w", resource, err)
	}
	return resp.Data.Normalized(), nil
}

// Update replaces an account. Callers pass the stored listid and parent along
// with the new description.
func (c *Client) Update(ctx context.Context, resource string, account models.Account) (models.Account, error) {
	account = account.Normalized()
	body := accountPayload{
		ListID:          account.ListID,
		Description:     account.Description,
		ParentAccountID: account.ParentAccountID,
	}
	var resp envelope[models.Account]
	if err := c.do(ctx, http.MethodPut, c.endpoint(resource, account.ID), body, &resp); err != nil {
		return models.Account{}, fmt.Errorf("updating %s %s: %w", resource, account.ID, err)
	}
	return resp.Data.Normalized(), nil
}

// Delete removes an account by id
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	if err := c.do(ctx, http.MethodDelete, c.endpoint(resource, id), nil, nil); err != nil {
		return fmt.Errorf("deleting %s %s: %w", resource, id, err)
	}
	return nil
}

// UpdateStatus patches the status of many records in parallel. Every id gets
// its own outcome; one failure does not hide the others.
func (c *Client) UpdateStatus(ctx context.Context, resource string, ids []string, status string) []models.StatusOutcome {
	outcomes := make([]models.StatusOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(statusConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			outcomes[i] = models.StatusOutcome{ID: id, OK: true}
			body := map[string]string{"status": status}
			if err := c.do(ctx, http.MethodPatch, c.endpoint(resource, id), body, nil); err != nil {
				outcomes[i] = models.StatusOutcome{ID: id, Error: err.Error()}
			}
			return nil
		})
	}
	// failures are recorded in outcomes, so the group itself never fails
	g.Wait()
	return outcomes
}

// CreateOpeningBalance posts an opening entry for a ledger account
func (c *Client) CreateOpeningBalance(ctx context.Context, balance models.OpeningBalance) error {
	if err := c.do(ctx, http.MethodPost, c.endpoint(OpeningBalanceResource), balance, nil); err != nil {
		return fmt.Errorf("creating opening balance for %s: %w", balance.AccountID, err)
	}
	return nil
}

func (c *Client) endpoint(parts ...string) string {
	path := c.baseURL
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	return path
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	requestID := RequestIDFromContext(ctx)
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"method":     method,
		"url":        target,
		"status":     resp.StatusCode,
		"request_id": requestID,
	}).Debug("backend call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
