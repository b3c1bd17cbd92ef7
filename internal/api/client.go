package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"eduops/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "EDUOPS_HTTP_TIMEOUT"
	apiTokenEnvKey     = "EDUOPS_API_TOKEN"
)

// Client is a simple HTTP client for the eduops API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client. The bearer token defaults to
// EDUOPS_API_TOKEN.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// SetToken overrides the bearer token. An empty token keeps the current one.
func (c *Client) SetToken(token string) {
	if token = strings.TrimSpace(token); token != "" {
		c.authToken = token
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

func (c *Client) CreateProgram(ctx context.Context, req ProgramCreateRequest) (models.Program, error) {
	var resp models.Program
	err := c.do(ctx, http.MethodPost, "/v1/programs", nil, req, &resp)
	return resp, err
}

func (c *Client) ListPrograms(ctx context.Context) ([]models.Program, error) {
	var resp []models.Program
	err := c.do(ctx, http.MethodGet, "/v1/programs", nil, nil, &resp)
	return resp, err
}

func (c *Client) GetProgram(ctx context.Context, id string) (models.Program, error) {
	var resp models.Program
	err := c.do(ctx, http.MethodGet, "/v1/programs/"+url.PathEscape(id), nil, nil, &resp)
	return resp, err
}

func (c *Client) UpdateProgram(ctx context.Context, id string, req ProgramUpdateRequest) (models.Program, error) {
	var resp models.Program
	err := c.do(ctx, http.MethodPatch, "/v1/programs/"+url.PathEscape(id), nil, req, &resp)
	return resp, err
}

func (c *Client) ArchiveProgram(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/programs/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateActivity(ctx context.Context, programID string, req ActivityCreateRequest) (models.Activity, error) {
	var resp models.Activity
	err := c.do(ctx, http.MethodPost, "/v1/programs/"+url.PathEscape(programID)+"/activities", nil, req, &resp)
	return resp, err
}

func (c *Client) ListActivities(ctx context.Context, programID string) ([]models.Activity, error) {
	var resp []models.Activity
	err := c.do(ctx, http.MethodGet, "/v1/programs/"+url.PathEscape(programID)+"/activities", nil, nil, &resp)
	return resp, err
}

func (c *Client) UpdateActivity(ctx context.Context, id string, req ActivityUpdateRequest) (models.Activity, error) {
	var resp models.Activity
	err := c.do(ctx, http.MethodPatch, "/v1/activities/"+url.PathEscape(id), nil, req, &resp)
	return resp, err
}

func (c *Client) ArchiveActivity(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/activities/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateDocumentation(ctx context.Context, activityID string, req DocumentationCreateRequest) (models.DocumentationEntry, error) {
	var resp models.DocumentationEntry
	err := c.do(ctx, http.MethodPost, "/v1/activities/"+url.PathEscape(activityID)+"/documentation", nil, req, &resp)
	return resp, err
}

func (c *Client) ListDocumentation(ctx context.Context, activityID string) ([]models.DocumentationEntry, error) {
	var resp []models.DocumentationEntry
	err := c.do(ctx, http.MethodGet, "/v1/activities/"+url.PathEscape(activityID)+"/documentation", nil, nil, &resp)
	return resp, err
}

func (c *Client) ArchiveDocumentation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/documentation/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) CreateScheduleEvent(ctx context.Context, programID string, req ScheduleEventCreateRequest) (models.ScheduleEvent, error) {
	var resp models.ScheduleEvent
	err := c.do(ctx, http.MethodPost, "/v1/programs/"+url.PathEscape(programID)+"/schedule", nil, req, &resp)
	return resp, err
}

func (c *Client) ArchiveScheduleEvent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/schedule/"+url.PathEscape(id), nil, nil, nil)
}

// Timeline returns a program's events. A positive limit keeps the most recent.
func (c *Client) Timeline(ctx context.Context, programID string, limit int) ([]TimelineEventResponse, error) {
	var resp []TimelineEventResponse
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	err := c.do(ctx, http.MethodGet, "/v1/programs/"+url.PathEscape(programID)+"/timeline", query, nil, &resp)
	return resp, err
}

// Upcoming lists schedule events in window, or the server default when empty.
func (c *Client) Upcoming(ctx context.Context, window string) (UpcomingResponse, error) {
	var resp UpcomingResponse
	query := url.Values{}
	if window = strings.TrimSpace(window); window != "" {
		query.Set("window", window)
	}
	err := c.do(ctx, http.MethodGet, "/v1/schedule/upcoming", query, nil, &resp)
	return resp, err
}

// ListAttachments lists live attachments of a parent. images filters by the
// image flag when non-nil.
func (c *Client) ListAttachments(ctx context.Context, kind models.AttachmentKind, parentID string, images *bool) ([]models.Attachment, error) {
	var resp []models.Attachment
	query := url.Values{}
	if images != nil {
		query.Set("images", strconv.FormatBool(*images))
	}
	err := c.do(ctx, http.MethodGet, parentPath(kind, parentID)+"/attachments", query, nil, &resp)
	return resp, err
}

func (c *Client) GetAttachment(ctx context.Context, kind models.AttachmentKind, id string) (models.Attachment, error) {
	var resp models.Attachment
	err := c.do(ctx, http.MethodGet, attachmentPath(kind, id), nil, nil, &resp)
	return resp, err
}

// DownloadAttachment streams attachment bytes to w and returns the count.
func (c *Client) DownloadAttachment(ctx context.Context, kind models.AttachmentKind, id string, w io.Writer) (int64, error) {
	resp, err := c.roundTrip(ctx, http.MethodGet, attachmentPath(kind, id)+"/content", nil, nil, "", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}

func (c *Client) ArchiveAttachment(ctx context.Context, kind models.AttachmentKind, id string) (ArchiveResponse, error) {
	var resp ArchiveResponse
	err := c.do(ctx, http.MethodDelete, attachmentPath(kind, id), nil, nil, &resp)
	return resp, err
}

// GCBlobs runs an orphan sweep. Non-dry runs need confirm.
func (c *Client) GCBlobs(ctx context.Context, req BlobGCRequest, confirm bool) (BlobGCResponse, error) {
	var resp BlobGCResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	header := http.Header{}
	if confirm {
		header.Set("X-Confirm", "true")
	}
	httpResp, err := c.roundTrip(ctx, http.MethodPost, "/v1/admin/gc-blobs", nil, bytes.NewReader(payload), "application/json", header)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, query, reader, contentType, out)
}

// send performs a request and decodes a JSON reply into out when non-nil.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	resp, err := c.roundTrip(ctx, method, path, query, body, contentType, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// roundTrip returns the response of a successful call. Status codes of 400
// and above come back as *APIError with the body already consumed.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, header http.Header) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		req.Header[key] = values
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func parentPath(kind models.AttachmentKind, parentID string) string {
	segment := "programs"
	switch kind {
	case models.AttachmentKindActivity:
		segment = "activities"
	case models.AttachmentKindDocumentation:
		segment = "documentation"
	}
	return "/v1/" + segment + "/" + url.PathEscape(parentID)
}

func attachmentPath(kind models.AttachmentKind, id string) string {
	return "/v1/attachments/" + url.PathEscape(string(kind)) + "/" + url.PathEscape(id)
}

// httpTimeoutFromEnv reads EDUOPS_HTTP_TIMEOUT as a duration or whole
// seconds. Anything unusable keeps the default.
func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	timeout, err := time.ParseDuration(value)
	if err != nil {
		seconds, convErr := strconv.Atoi(value)
		timeout, err = time.Duration(seconds)*time.Second, convErr
	}
	if err != nil || timeout <= 0 {
		return defaultHTTPTimeout
	}
	return timeout
}
