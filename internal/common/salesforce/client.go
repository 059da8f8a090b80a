package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ErrNotFound matches an APIError for a missing record.
var ErrNotFound = errors.New("record not found")

// compositeDeleteLimit is the maximum ids per composite/sobjects DELETE.
const compositeDeleteLimit = 200

// APIError is a non-2xx answer from the REST API or a create that reported success:false.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("salesforce api error (status %d): %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && (e.StatusCode == http.StatusNotFound || e.Code == "NOT_FOUND")
}

// ErrorDetail is one entry of the REST error array.
type ErrorDetail struct {
	StatusCode string   `json:"statusCode,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

func (d ErrorDetail) code() string {
	if d.ErrorCode != "" {
		return d.ErrorCode
	}
	return d.StatusCode
}

// SaveResult is the body of a create.
type SaveResult struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Errors  []ErrorDetail `json:"errors"`
}

// DeleteResult is one entry of a composite delete.
type DeleteResult struct {
	ID      string        `json:"id"`
	Success bool          `json:"success"`
	Errors  []ErrorDetail `json:"errors"`
}

// Err returns nil on success or the first reported error.
func (r DeleteResult) Err() error {
	if r.Success {
		return nil
	}
	apiErr := &APIError{StatusCode: http.StatusOK, Code: "DELETE_FAILED", Message: "delete reported success=false"}
	if len(r.Errors) > 0 {
		apiErr.Code = r.Errors[0].code()
		apiErr.Message = r.Errors[0].Message
	}
	return apiErr
}

type queryResponse struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl"`
	Records        []json.RawMessage `json:"records"`
}

// Client performs REST calls with the shared session.
type Client struct {
	session    *Session
	httpClient *http.Client
	apiVersion string
}

func NewClient(session *Session, httpClient *http.Client, apiVersion string) *Client {
	if httpClient == nil {
		httpClient = session.httpClient
	}
	return &Client{session: session, httpClient: httpClient, apiVersion: apiVersion}
}

func (c *Client) dataPath(parts ...string) string {
	return "/services/data/" + c.apiVersion + "/" + strings.Join(parts, "/")
}

// Create inserts one record and returns its id.
func (c *Client) Create(ctx context.Context, sobject string, fields interface{}) (string, error) {
	var res SaveResult
	if err := c.do(ctx, http.MethodPost, c.dataPath("sobjects", sobject)+"/", fields, &res); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", sobject, err)
	}
	if !res.Success || res.ID == "" {
		apiErr := &APIError{StatusCode: http.StatusCreated, Code: "CREATE_FAILED", Message: "create reported success=false"}
		if len(res.Errors) > 0 {
			apiErr.Code = res.Errors[0].code()
			apiErr.Message = res.Errors[0].Message
		}
		return "", fmt.Errorf("failed to create %s: %w", sobject, apiErr)
	}
	return res.ID, nil
}

// Retrieve reads the listed fields of one record into out.
func (c *Client) Retrieve(ctx context.Context, sobject, id string, fields []string, out interface{}) error {
	path := c.dataPath("sobjects", sobject, url.PathEscape(id))
	if len(fields) > 0 {
		path += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}
	if err := c.do(ctx, http.MethodGet, path, nil, out); err != nil {
		return fmt.Errorf("failed to retrieve %s %s: %w", sobject, id, err)
	}
	return nil
}

// Update patches the given fields of one record.
func (c *Client) Update(ctx context.Context, sobject, id string, fields interface{}) error {
	if err := c.do(ctx, http.MethodPatch, c.dataPath("sobjects", sobject, url.PathEscape(id)), fields, nil); err != nil {
		return fmt.Errorf("failed to update %s %s: %w", sobject, id, err)
	}
	return nil
}

// Destroy deletes records of sobject with allOrNone=false and returns one result per id in
// input order. The error is non-nil only when a whole request failed; per-record failures are in
// the results.
func (c *Client) Destroy(ctx context.Context, sobject string, ids ...string) ([]DeleteResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	results := make([]DeleteResult, 0, len(ids))
	for start := 0; start < len(ids); start += compositeDeleteLimit {
		end := start + compositeDeleteLimit
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		q := url.Values{}
		q.Set("ids", strings.Join(chunk, ","))
		q.Set("allOrNone", "false")

		var page []DeleteResult
		if err := c.do(ctx, http.MethodDelete, c.dataPath("composite", "sobjects")+"?"+q.Encode(), nil, &page); err != nil {
			for _, id := range chunk {
				results = append(results, DeleteResult{ID: id, Errors: []ErrorDetail{{Message: err.Error()}}})
			}
			return results, fmt.Errorf("failed to delete %s: %w", sobject, err)
		}
		results = append(results, alignResults(chunk, page)...)
	}
	return results, nil
}

// alignResults orders page by chunk. A failed delete may come back without an id, in which case
// position is the only correlation available.
func alignResults(chunk []string, page []DeleteResult) []DeleteResult {
	byID := make(map[string]DeleteResult, len(page))
	for _, r := range page {
		if r.ID != "" {
			byID[r.ID] = r
		}
	}
	out := make([]DeleteResult, len(chunk))
	for i, id := range chunk {
		if r, ok := byID[id]; ok {
			out[i] = r
			continue
		}
		if i < len(page) && page[i].ID == "" {
			r := page[i]
			r.ID = id
			out[i] = r
			continue
		}
		out[i] = DeleteResult{ID: id, Errors: []ErrorDetail{{Message: "no result returned for id"}}}
	}
	return out
}

// Query runs soql, follows nextRecordsUrl, and decodes every record into out (a slice pointer).
func (c *Client) Query(ctx context.Context, soql string, out interface{}) error {
	var records []json.RawMessage
	path := c.dataPath("query") + "?q=" + url.QueryEscape(soql)
	for path != "" {
		var page queryResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return fmt.Errorf("failed to query: %w", err)
		}
		records = append(records, page.Records...)
		if page.Done {
			break
		}
		path = page.NextRecordsURL
	}

	if records == nil {
		records = []json.RawMessage{}
	}
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to collect query records: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode query records: %w", err)
	}
	return nil
}

// do sends one request, re-logging in once if the token was rejected.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, instanceURL, err := c.session.Token(ctx)
		if err != nil {
			return err
		}

		status, body, err := c.send(ctx, method, instanceURL+path, token, payload)
		if err != nil {
			return err
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			c.session.Invalidate(token)
			continue
		}
		if status < 200 || status > 299 {
			return parseAPIError(status, body)
		}
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	}
}

func (c *Client) send(ctx context.Context, method, fullURL, token string, payload []byte) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Code: http.StatusText(status), Message: strings.TrimSpace(string(body))}
	var details []ErrorDetail
	if err := json.Unmarshal(body, &details); err == nil && len(details) > 0 {
		apiErr.Code = details[0].code()
		apiErr.Message = details[0].Message
	}
	return apiErr
}

// IsTransient reports whether err is worth retrying at an outer layer.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return apiErr.Code == "UNABLE_TO_LOCK_ROW" || apiErr.Code == "REQUEST_LIMIT_EXCEEDED"
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.StatusCode >= 500
	}
	// transport errors
	return err != nil
}

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9]{15}([a-zA-Z0-9]{3})?$`)

// ValidID reports whether id has the shape of a 15 or 18 character record id.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// QuoteString escapes s for use inside a single-quoted SOQL literal.
func QuoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return "'" + r.Replace(s) + "'"
}
