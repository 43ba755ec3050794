package brostar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nens/brostar-sync/internal/logger"
	"github.com/nens/brostar-sync/internal/types"
)

var tracer = otel.Tracer("github.com/nens/brostar-sync/internal/brostar")

const (
	StagingURL    = "https://staging.brostar.nl/api"
	ProductionURL = "https://www.brostar.nl/api"

	// The registry authenticates with HTTP basic, a fixed username and the
	// API key as password.
	basicAuthUser = "__key__"

	DefaultPollInterval = 3 * time.Second
	DefaultPollCeiling  = 45 * time.Second
)

type Endpoint string

const (
	EndpointUsers           Endpoint = "users"
	EndpointOrganisations   Endpoint = "organisations"
	EndpointImportTasks     Endpoint = "importtasks"
	EndpointUploadTasks     Endpoint = "uploadtasks"
	EndpointBulkUploads     Endpoint = "bulkuploads"
	EndpointGMNs            Endpoint = "gmn/gmns"
	EndpointMeasuringPoints Endpoint = "gmn/measuringpoints"
	EndpointGMWs            Endpoint = "gmw/gmws"
	EndpointMonitoringTubes Endpoint = "gmw/monitoringtubes"
	EndpointGMWEvents       Endpoint = "gmw/events"
	EndpointGARs            Endpoint = "gar/gars"
	EndpointGLDs            Endpoint = "gld/glds"
	EndpointObservations    Endpoint = "gld/observations"
	EndpointFRDs            Endpoint = "frd/frds"
)

// StatusError is any non-2xx response. The client never swallows one.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("brostar: unexpected status %d for %s: %s", e.Code, e.URL, e.Body)
}

type ListResponse struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

type Client struct {
	http         *http.Client
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	pollCeiling  time.Duration
}

type Option func(*Client)

func WithBaseURL(rawURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(rawURL, "/")
	}
}

func WithPollTiming(interval, ceiling time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.pollCeiling = ceiling
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.http = httpClient
	}
}

// retry connection-level failures only; application errors (4xx/5xx) are
// surfaced to the caller immediately.
func retryTransportOnly(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return err != nil, nil
}

func newRetryingClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 6
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.CheckRetry = retryTransportOnly
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 60 * time.Second
	return retryClient.StandardClient()
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("brostar: api key must be a non-empty string")
	}

	c := &Client{
		http:         newRetryingClient(),
		baseURL:      StagingURL,
		apiKey:       apiKey,
		pollInterval: DefaultPollInterval,
		pollCeiling:  DefaultPollCeiling,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UseProduction switches between the production and staging base URL.
func (c *Client) UseProduction(production bool) {
	if production {
		c.baseURL = ProductionURL
		logger.Logger.Info("brostar production set")
	} else {
		c.baseURL = StagingURL
		logger.Logger.Info("brostar staging set")
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpointURL(endpoint Endpoint) string {
	return fmt.Sprintf("%s/%s/", c.baseURL, endpoint)
}

func (c *Client) do(
	ctx context.Context,
	method, rawURL string,
	params url.Values,
	body io.Reader,
	contentType string,
) ([]byte, error) {
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL = rawURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("brostar: construct %s %s: %w", method, rawURL, err)
	}
	req.SetBasicAuth(basicAuthUser, c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brostar: %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("brostar: read response of %s %s: %w", method, rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL, Body: snippet(payload)}
	}
	return payload, nil
}

func snippet(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// Get fetches one page of a list endpoint.
func (c *Client) Get(ctx context.Context, endpoint Endpoint, params url.Values) (*ListResponse, error) {
	ctx, span := tracer.Start(ctx, "Client.Get", trace.WithAttributes(
		attribute.String("endpoint", string(endpoint)),
	))
	defer span.End()

	body, err := c.do(ctx, http.MethodGet, c.endpointURL(endpoint), params, nil, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get list page")
		return nil, err
	}

	var page ListResponse
	if err := json.Unmarshal(body, &page); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode list page")
		return nil, fmt.Errorf("brostar: decode %s list: %w", endpoint, err)
	}

	span.SetStatus(codes.Ok, "got list page")
	return &page, nil
}

// GetAll fetches every page of a list endpoint by following the next links.
func (c *Client) GetAll(ctx context.Context, endpoint Endpoint, params url.Values) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Client.GetAll", trace.WithAttributes(
		attribute.String("endpoint", string(endpoint)),
	))
	defer span.End()

	page, err := c.Get(ctx, endpoint, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get first page")
		return nil, err
	}

	results := page.Results
	for page.Next != nil && *page.Next != "" {
		body, err := c.do(ctx, http.MethodGet, *page.Next, nil, nil, "")
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to follow next link")
			return nil, err
		}

		page = &ListResponse{}
		if err := json.Unmarshal(body, page); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode next page")
			return nil, fmt.Errorf("brostar: decode %s list: %w", endpoint, err)
		}
		results = append(results, page.Results...)
	}

	span.SetStatus(codes.Ok, "got all pages")
	return results, nil
}

func (c *Client) GetDetail(ctx context.Context, endpoint Endpoint, id string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Client.GetDetail", trace.WithAttributes(
		attribute.String("endpoint", string(endpoint)),
		attribute.String("id", id),
	))
	defer span.End()

	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/%s/%s/", c.baseURL, endpoint, id), nil, nil, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get detail")
		return nil, err
	}

	span.SetStatus(codes.Ok, "got detail")
	return body, nil
}

// PostUpload creates an upload task. With asJSON false the payload must be
// url.Values and is form-encoded instead.
func (c *Client) PostUpload(ctx context.Context, payload any, asJSON bool) (*types.UploadTask, error) {
	ctx, span := tracer.Start(ctx, "Client.PostUpload")
	defer span.End()

	var body io.Reader
	contentType := "application/json"
	if asJSON {
		encoded, err := json.Marshal(payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to encode payload")
			return nil, fmt.Errorf("brostar: encode upload payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		values, ok := payload.(url.Values)
		if !ok {
			err := errors.New("brostar: form upload payload must be url.Values")
			span.RecordError(err)
			span.SetStatus(codes.Error, "bad form payload")
			return nil, err
		}
		body = strings.NewReader(values.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	respBody, err := c.do(ctx, http.MethodPost, c.endpointURL(EndpointUploadTasks), nil, body, contentType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create upload task")
		return nil, err
	}

	var task types.UploadTask
	if err := json.Unmarshal(respBody, &task); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode created task")
		return nil, fmt.Errorf("brostar: decode created upload task: %w", err)
	}

	span.SetAttributes(attribute.String("uploadtask.uuid", task.UUID))
	span.SetStatus(codes.Ok, "created upload task")
	return &task, nil
}

func (c *Client) postBulk(
	ctx context.Context,
	fields map[string]string,
	files map[string]io.Reader,
) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("brostar: write bulk field %s: %w", name, err)
		}
	}
	for name, file := range files {
		part, err := writer.CreateFormFile(name, name+".csv")
		if err != nil {
			return nil, fmt.Errorf("brostar: create bulk file part %s: %w", name, err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return nil, fmt.Errorf("brostar: copy bulk file %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("brostar: finish bulk body: %w", err)
	}

	return c.do(ctx, http.MethodPost, c.endpointURL(EndpointBulkUploads), nil, buf, writer.FormDataContentType())
}

// PostBulkGAR submits a groundwater-quality bulk delivery with its fieldwork
// and lab CSV files.
func (c *Client) PostBulkGAR(
	ctx context.Context,
	fields map[string]string,
	fieldworkFile, labFile io.Reader,
) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Client.PostBulkGAR")
	defer span.End()

	body, err := c.postBulk(ctx, fields, map[string]io.Reader{
		"fieldwork_file": fieldworkFile,
		"lab_file":       labFile,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post gar bulk")
		return nil, err
	}
	span.SetStatus(codes.Ok, "posted gar bulk")
	return body, nil
}

// PostBulkGMN submits a monitoring-network bulk delivery.
func (c *Client) PostBulkGMN(
	ctx context.Context,
	fields map[string]string,
	measuringPointFile io.Reader,
) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Client.PostBulkGMN")
	defer span.End()

	body, err := c.postBulk(ctx, fields, map[string]io.Reader{
		"measurement_tvp_file": measuringPointFile,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post gmn bulk")
		return nil, err
	}
	span.SetStatus(codes.Ok, "posted gmn bulk")
	return body, nil
}

// PostBulkGLD submits a groundwater-level bulk delivery.
func (c *Client) PostBulkGLD(
	ctx context.Context,
	fields map[string]string,
	timeseriesFile io.Reader,
) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "Client.PostBulkGLD")
	defer span.End()

	body, err := c.postBulk(ctx, fields, map[string]io.Reader{
		"measurement_tvp_file": timeseriesFile,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post gld bulk")
		return nil, err
	}
	span.SetStatus(codes.Ok, "posted gld bulk")
	return body, nil
}

func (c *Client) UploadTaskDetail(ctx context.Context, id string) (*types.UploadTask, error) {
	body, err := c.GetDetail(ctx, EndpointUploadTasks, id)
	if err != nil {
		return nil, err
	}

	var task types.UploadTask
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("brostar: decode upload task %s: %w", id, err)
	}
	return &task, nil
}

func (c *Client) ListUploadTasks(ctx context.Context, params url.Values) ([]types.UploadTask, error) {
	raw, err := c.GetAll(ctx, EndpointUploadTasks, params)
	if err != nil {
		return nil, err
	}

	tasks := make([]types.UploadTask, 0, len(raw))
	for _, message := range raw {
		var task types.UploadTask
		if err := json.Unmarshal(message, &task); err != nil {
			return nil, fmt.Errorf("brostar: decode upload task in list: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (c *Client) PatchUploadTask(ctx context.Context, id string, patch any) error {
	ctx, span := tracer.Start(ctx, "Client.PatchUploadTask", trace.WithAttributes(
		attribute.String("uploadtask.uuid", id),
	))
	defer span.End()

	encoded, err := json.Marshal(patch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode patch")
		return fmt.Errorf("brostar: encode upload task patch: %w", err)
	}

	_, err = c.do(
		ctx,
		http.MethodPatch,
		fmt.Sprintf("%s/uploadtasks/%s/", c.baseURL, id),
		nil,
		bytes.NewReader(encoded),
		"application/json",
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to patch upload task")
		return err
	}

	span.SetStatus(codes.Ok, "patched upload task")
	return nil
}

func (c *Client) DeleteUploadTask(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Client.DeleteUploadTask", trace.WithAttributes(
		attribute.String("uploadtask.uuid", id),
	))
	defer span.End()

	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/uploadtasks/%s", c.baseURL, id), nil, nil, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete upload task")
		return err
	}

	span.SetStatus(codes.Ok, "deleted upload task")
	return nil
}

// CheckStatus asks the registry to re-evaluate a stuck task before the next
// poll.
func (c *Client) CheckStatus(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Client.CheckStatus", trace.WithAttributes(
		attribute.String("uploadtask.uuid", id),
	))
	defer span.End()

	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/uploadtasks/%s/check_status/", c.baseURL, id), nil, nil, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to trigger status check")
		return err
	}

	span.SetStatus(codes.Ok, "triggered status check")
	return nil
}
