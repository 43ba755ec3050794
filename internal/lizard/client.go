package lizard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/nens/brostar-sync/internal/lizard")

const basicAuthUser = "__key__"

// StatusError is any non-2xx response from the asset platform.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lizard: unexpected status %d for %s", e.Code, e.URL)
}

type Location struct {
	URL           string         `json:"url"`
	UUID          string         `json:"uuid"`
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	ExtraMetadata map[string]any `json:"extra_metadata"`
}

type Timeseries struct {
	URL           string         `json:"url"`
	UUID          string         `json:"uuid"`
	Code          string         `json:"code"`
	ExtraMetadata map[string]any `json:"extra_metadata"`
}

// Event is one observation row of a timeseries.
type Event struct {
	Time           string   `json:"time"`
	Value          *float64 `json:"value"`
	Flag           *int     `json:"flag"`
	ValidationCode string   `json:"validation_code,omitempty"`
	DetectionLimit string   `json:"detection_limit,omitempty"`
	Comment        string   `json:"comment,omitempty"`
	LastModified   string   `json:"last_modified,omitempty"`
}

type listPage struct {
	Next    *string           `json:"next"`
	Results []json.RawMessage `json:"results"`
}

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func NewClient(apiKey, baseURL string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("lizard: api key must be a non-empty string")
	}
	if baseURL == "" {
		return nil, errors.New("lizard: base url is required")
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 6
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.CheckRetry = func(ctx context.Context, _ *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return err != nil, nil
	}
	retryClient.Logger = nil
	retryClient.HTTPClient.Timeout = 30 * time.Second

	return &Client{
		http:    retryClient.StandardClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}, nil
}

func (c *Client) do(
	ctx context.Context,
	method, rawURL string,
	params url.Values,
	body any,
) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("lizard: encode %s body: %w", method, err)
		}
		reader = bytes.NewReader(encoded)
	}

	if len(params) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL = rawURL + sep + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("lizard: construct %s %s: %w", method, rawURL, err)
	}
	req.SetBasicAuth(basicAuthUser, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lizard: %s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("lizard: read response of %s %s: %w", method, rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return payload, nil
}

func (c *Client) getAll(ctx context.Context, rawURL string, params url.Values) ([]json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, rawURL, params, nil)
	if err != nil {
		return nil, err
	}

	var page listPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("lizard: decode list page: %w", err)
	}

	results := page.Results
	for page.Next != nil && *page.Next != "" {
		body, err := c.do(ctx, http.MethodGet, *page.Next, nil, nil)
		if err != nil {
			return nil, err
		}
		page = listPage{}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("lizard: decode list page: %w", err)
		}
		results = append(results, page.Results...)
	}
	return results, nil
}

// Locations lists locations, filterable by code or code prefix.
func (c *Client) Locations(ctx context.Context, params url.Values) ([]Location, error) {
	ctx, span := tracer.Start(ctx, "Client.Locations")
	defer span.End()

	raw, err := c.getAll(ctx, c.baseURL+"/locations/", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list locations")
		return nil, err
	}

	locations := make([]Location, 0, len(raw))
	for _, message := range raw {
		var location Location
		if err := json.Unmarshal(message, &location); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode location")
			return nil, fmt.Errorf("lizard: decode location: %w", err)
		}
		locations = append(locations, location)
	}

	span.SetAttributes(attribute.Int("locations.count", len(locations)))
	span.SetStatus(codes.Ok, "listed locations")
	return locations, nil
}

// Timeseries lists timeseries, filterable by location code and observation
// type.
func (c *Client) Timeseries(ctx context.Context, params url.Values) ([]Timeseries, error) {
	ctx, span := tracer.Start(ctx, "Client.Timeseries")
	defer span.End()

	raw, err := c.getAll(ctx, c.baseURL+"/timeseries/", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list timeseries")
		return nil, err
	}

	series := make([]Timeseries, 0, len(raw))
	for _, message := range raw {
		var ts Timeseries
		if err := json.Unmarshal(message, &ts); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode timeseries")
			return nil, fmt.Errorf("lizard: decode timeseries: %w", err)
		}
		series = append(series, ts)
	}

	span.SetAttributes(attribute.Int("timeseries.count", len(series)))
	span.SetStatus(codes.Ok, "listed timeseries")
	return series, nil
}

// Events pages through the event list of one timeseries, preserving order.
func (c *Client) Events(ctx context.Context, timeseriesURL string, params url.Values) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "Client.Events", trace.WithAttributes(
		attribute.String("timeseries.url", timeseriesURL),
	))
	defer span.End()

	raw, err := c.getAll(ctx, eventsURL(timeseriesURL), params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list events")
		return nil, err
	}

	events := make([]Event, 0, len(raw))
	for _, message := range raw {
		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to decode event")
			return nil, fmt.Errorf("lizard: decode event: %w", err)
		}
		events = append(events, event)
	}

	span.SetAttributes(attribute.Int("events.count", len(events)))
	span.SetStatus(codes.Ok, "listed events")
	return events, nil
}

// PostEvents bulk-writes events back onto a timeseries.
func (c *Client) PostEvents(ctx context.Context, timeseriesURL string, events []Event) error {
	ctx, span := tracer.Start(ctx, "Client.PostEvents", trace.WithAttributes(
		attribute.String("timeseries.url", timeseriesURL),
		attribute.Int("events.count", len(events)),
	))
	defer span.End()

	if _, err := c.do(ctx, http.MethodPost, eventsURL(timeseriesURL), nil, events); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to post events")
		return err
	}

	span.SetStatus(codes.Ok, "posted events")
	return nil
}

// PatchLocation writes a partial update to one location, typically its
// extra_metadata with newly assigned registry identifiers.
func (c *Client) PatchLocation(ctx context.Context, locationURL string, patch any) error {
	ctx, span := tracer.Start(ctx, "Client.PatchLocation", trace.WithAttributes(
		attribute.String("location.url", locationURL),
	))
	defer span.End()

	if _, err := c.do(ctx, http.MethodPatch, locationURL, nil, patch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to patch location")
		return err
	}

	span.SetStatus(codes.Ok, "patched location")
	return nil
}

func eventsURL(timeseriesURL string) string {
	if !strings.HasSuffix(timeseriesURL, "/") {
		timeseriesURL += "/"
	}
	return timeseriesURL + "events/"
}
