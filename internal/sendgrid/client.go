// Package sendgrid is a client for the parts of the SendGrid v3 API used by
// the contacts sink: contact upserts, import-job status, global
// suppressions and marketing lists.
package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hotgluexyz/target-sendgrid/internal/config"
	"github.com/hotgluexyz/target-sendgrid/internal/pkg/httpretry"
	"golang.org/x/oauth2"
)

const (
	contactsPath     = "/v3/marketing/contacts"
	importsPath      = "/v3/marketing/contacts/imports/"
	suppressionsPath = "/v3/asm/suppressions/global"
	listsPath        = "/v3/marketing/lists"

	listsPageSize = 1000
)

// ErrMissingAuthToken is returned by NewClient without a token.
var ErrMissingAuthToken = errors.New("sendgrid auth token not configured")

// Client is a SendGrid v3 API client
type Client struct {
	baseURL    string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a SendGrid client. The bearer token is attached by an
// oauth2 transport so every call, including retries, is authenticated.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.AuthToken == "" {
		return nil, ErrMissingAuthToken
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	authed := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AuthToken, TokenType: "Bearer"}),
			Base:   http.DefaultTransport,
		},
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: httpretry.NewRetryClient(authed, cfg.MaxRetries,
			httpretry.WithRateLimit(cfg.RequestsPerSecond, 0)),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// doRequest performs a JSON request against the API and returns the body of
// a 2xx response.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		for _, e := range env.Errors {
			msg := e.Message
			if e.Field != "" {
				msg = e.Field + ": " + msg
			}
			apiErr.Messages = append(apiErr.Messages, msg)
		}
	}
	return apiErr
}

// UpsertContacts submits contacts for asynchronous import.
func (c *Client) UpsertContacts(ctx context.Context, req UpsertRequest) (*UpsertResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPut, contactsPath, req)
	if err != nil {
		return nil, fmt.Errorf("upserting contacts: %w", err)
	}

	var out UpsertResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing upsert response: %w", err)
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("upsert response carried no job_id")
	}
	return &out, nil
}

// GetImportStatus fetches the current state of an import job.
func (c *Client) GetImportStatus(ctx context.Context, jobID string) (*ImportStatus, error) {
	body, err := c.doRequest(ctx, http.MethodGet, importsPath+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching import %s: %w", jobID, err)
	}

	var out ImportStatus
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing import status: %w", err)
	}
	return &out, nil
}

// SuppressGlobal adds emails to the global unsubscribe group.
func (c *Client) SuppressGlobal(ctx context.Context, emails []string) (*SuppressionResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, suppressionsPath, SuppressionRequest{RecipientEmails: emails})
	if err != nil {
		return nil, fmt.Errorf("suppressing emails: %w", err)
	}

	var out SuppressionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parsing suppression response: %w", err)
	}
	return &out, nil
}

// GetLists returns every marketing list, following page tokens.
func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	var all []List
	pageToken := ""
	for page := 0; ; page++ {
		params := url.Values{}
		params.Set("page_size", fmt.Sprintf("%d", listsPageSize))
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		body, err := c.doRequest(ctx, http.MethodGet, listsPath+"?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("fetching lists page %d: %w", page, err)
		}

		var resp ListsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parsing lists response: %w", err)
		}
		all = append(all, resp.Result...)

		next := nextPageToken(resp.Metadata.Next)
		if next == "" || next == pageToken {
			return all, nil
		}
		pageToken = next
	}
}

// nextPageToken extracts page_token from a _metadata.next URL.
func nextPageToken(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("page_token")
}
