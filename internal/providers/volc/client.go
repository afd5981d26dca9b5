// Package volc is a client for the Volcengine visual CVProcess API.
package volc

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

	"github.com/volcengine/volc-sdk-golang/base"

	"aigc/internal/infra"
)

// ErrMissingCredentials indicates that the client was configured without an
// access key pair. Callers treat it as an operational condition, not a
// per-request failure.
var ErrMissingCredentials = errors.New("volc: access key and secret key are required")

// SuccessCode is the business code of a successful CVProcess call.
const SuccessCode = 10000

const (
	defaultBaseURL = "https://visual.volcengineapi.com"
	defaultRegion  = "cn-north-1"
	apiVersion     = "2022-08-31"
	serviceName    = "cv"
)

// Options configures the Volcengine client.
type Options struct {
	AccessKey      string
	SecretKey      string
	Region         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
	Now            func() time.Time
}

// Client performs signed HTTP calls to the visual API.
type Client struct {
	accessKey  string
	secretKey  string
	region     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	now        func() time.Time
}

// Result is the normalized data section of a successful CVProcess call.
type Result struct {
	BinaryDataBase64 []string
	ImageURLs        []string
	RequestID        string
}

// APIError carries a non-success business code or a gateway error.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "unknown error"
	}
	if e.Code != "" {
		return fmt.Sprintf("volc: %s (code %s)", msg, e.Code)
	}
	return fmt.Sprintf("volc: %s (status %d)", msg, e.Status)
}

type cvResponse struct {
	Code      json.Number `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
	Data      *struct {
		BinaryDataBase64 []string `json:"binary_data_base64"`
		ImageURLs        []string `json:"image_urls"`
	} `json:"data"`
	ResponseMetadata *struct {
		RequestID string `json:"RequestId"`
		Error     *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"ResponseMetadata"`
}

// NewClient constructs a client with defaults for every unset option.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("volc: invalid base url: %w", err)
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = defaultRegion
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.NopLogger()
		logger = &l
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		accessKey:  strings.TrimSpace(opts.AccessKey),
		secretKey:  strings.TrimSpace(opts.SecretKey),
		region:     region,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.accessKey != "" && c.secretKey != ""
}

// CVProcess submits one synchronous visual job. images are raw base64
// payloads; params are merged into the request body next to req_key.
func (c *Client) CVProcess(ctx context.Context, reqKey string, images []string, params map[string]any) (*Result, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	if strings.TrimSpace(reqKey) == "" {
		return nil, errors.New("volc: req_key is required")
	}
	form := make(map[string]any, len(params)+2)
	for k, v := range params {
		form[k] = v
	}
	form["req_key"] = reqKey
	if len(images) > 0 {
		form["binary_data_base64"] = images
	}
	body, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("volc: encode request: %w", err)
	}

	query := url.Values{}
	query.Set("Action", "CVProcess")
	query.Set("Version", apiVersion)
	endpoint := c.baseURL + "/?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("volc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req = c.sign(req)

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("volc: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("volc: read response: %w", err)
	}

	var decoded cvResponse
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return nil, fmt.Errorf("volc: decode response: %w", err)
	}
	if meta := decoded.ResponseMetadata; meta != nil && meta.Error != nil && meta.Error.Code != "" {
		return nil, &APIError{Status: resp.StatusCode, Code: meta.Error.Code, Message: meta.Error.Message, RequestID: meta.RequestID}
	}
	if decoded.Code.String() != fmt.Sprint(SuccessCode) {
		return nil, &APIError{Status: resp.StatusCode, Code: decoded.Code.String(), Message: decoded.Message, RequestID: decoded.RequestID}
	}
	if decoded.Data == nil {
		return nil, &APIError{Status: resp.StatusCode, Code: decoded.Code.String(), Message: "response carries no data", RequestID: decoded.RequestID}
	}

	c.logger.Debug().
		Str("req_key", reqKey).
		Str("request_id", decoded.RequestID).
		Dur("elapsed", c.now().Sub(started)).
		Msg("volc: cv process succeeded")
	return &Result{
		BinaryDataBase64: decoded.Data.BinaryDataBase64,
		ImageURLs:        decoded.Data.ImageURLs,
		RequestID:        decoded.RequestID,
	}, nil
}

// Download fetches a result image referenced by URL.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("volc: invalid image url: %s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("volc: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("volc: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("volc: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("volc: read image: %w", err)
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = "image/png"
	}
	return data, format, nil
}

// sign applies the Volcengine V4 HMAC-SHA256 signature to req using the
// SDK signer, which also stamps X-Date and X-Content-Sha256.
func (c *Client) sign(req *http.Request) *http.Request {
	return base.Credentials{
		AccessKeyID:     c.accessKey,
		SecretAccessKey: c.secretKey,
		Service:         serviceName,
		Region:          c.region,
	}.Sign(req)
}
