package volc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
}

func newTestClient(t *testing.T, transport *captureTransport) *Client {
	t.Helper()
	client, err := NewClient(Options{
		AccessKey:  "AK",
		SecretKey:  "SK",
		BaseURL:    "https://visual.example.com",
		HTTPClient: &http.Client{Transport: transport},
		Now:        fixedNow,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCVProcessPayloadAndSignature(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/", map[string]any{
		"code":       10000,
		"message":    "Success",
		"request_id": "req-1",
		"data":       map[string]any{"binary_data_base64": []string{"aGVsbG8="}},
	})
	client := newTestClient(t, transport)

	res, err := client.CVProcess(context.Background(), "all_age_generation", []string{"c3Jj"}, map[string]any{"target_age": 70})
	if err != nil {
		t.Fatalf("cv process: %v", err)
	}
	if len(res.BinaryDataBase64) != 1 || res.BinaryDataBase64[0] != "aGVsbG8=" {
		t.Fatalf("binary data = %v", res.BinaryDataBase64)
	}
	if res.RequestID != "req-1" {
		t.Fatalf("request id = %q", res.RequestID)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["req_key"] != "all_age_generation" {
		t.Fatalf("req_key = %v", payload["req_key"])
	}
	if payload["target_age"] != float64(70) {
		t.Fatalf("target_age = %v", payload["target_age"])
	}
	images := payload["binary_data_base64"].([]any)
	if len(images) != 1 || images[0] != "c3Jj" {
		t.Fatalf("binary_data_base64 = %v", images)
	}

	req := transport.lastRequest
	if got := req.URL.Query().Get("Action"); got != "CVProcess" {
		t.Fatalf("Action = %q", got)
	}
	if got := req.URL.Query().Get("Version"); got != apiVersion {
		t.Fatalf("Version = %q", got)
	}
	xDate := req.Header.Get("X-Date")
	if !regexp.MustCompile(`^\d{8}T\d{6}Z$`).MatchString(xDate) {
		t.Fatalf("X-Date = %q", xDate)
	}
	auth := req.Header.Get("Authorization")
	scope := "AK/" + xDate[:8] + "/cn-north-1/cv/request"
	if !strings.HasPrefix(auth, "HMAC-SHA256 Credential="+scope) || !strings.Contains(auth, "Signature=") {
		t.Fatalf("Authorization = %q", auth)
	}
	sum := sha256.Sum256(transport.lastBody)
	if req.Header.Get("X-Content-Sha256") != hex.EncodeToString(sum[:]) {
		t.Fatalf("payload hash header mismatch")
	}
	if got := req.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
}

func TestCVProcessUsesConfiguredRegion(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/", map[string]any{"code": 10000, "data": map[string]any{}})
	client, err := NewClient(Options{
		AccessKey:  "AK",
		SecretKey:  "SK",
		Region:     "cn-beijing",
		BaseURL:    "https://visual.example.com",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.CVProcess(context.Background(), "hair_style_generation", nil, map[string]any{"hair_style": "101"}); err != nil {
		t.Fatalf("cv process: %v", err)
	}
	if auth := transport.lastRequest.Header.Get("Authorization"); !strings.Contains(auth, "/cn-beijing/cv/request") {
		t.Fatalf("Authorization = %q", auth)
	}
}

func TestCVProcessBusinessError(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/", map[string]any{
		"code":       50411,
		"message":    "Pre Img Risk Not Pass",
		"request_id": "req-2",
	})
	client := newTestClient(t, transport)

	_, err := client.CVProcess(context.Background(), "all_age_generation", []string{"x"}, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != "50411" || apiErr.RequestID != "req-2" {
		t.Fatalf("api error = %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "Pre Img Risk Not Pass") {
		t.Fatalf("message not surfaced: %v", err)
	}
}

func TestCVProcessGatewayError(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.responses["/"] = responseStub{
		status: http.StatusUnauthorized,
		body:   []byte(`{"ResponseMetadata":{"RequestId":"r3","Error":{"Code":"SignatureDoesNotMatch","Message":"bad signature"}}}`),
	}
	client := newTestClient(t, transport)

	_, err := client.CVProcess(context.Background(), "all_age_generation", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "SignatureDoesNotMatch" {
		t.Fatalf("error = %v", err)
	}
}

func TestCVProcessWithoutCredentials(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.HasCredentials() {
		t.Fatalf("HasCredentials should be false")
	}
	if _, err := client.CVProcess(context.Background(), "all_age_generation", nil, nil); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("error = %v, want ErrMissingCredentials", err)
	}
}

func TestDownload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setBinaryResponse("https://cdn.example.com/out.png", []byte{0x89, 'P', 'N', 'G'})
	client := newTestClient(t, transport)

	data, format, err := client.Download(context.Background(), "https://cdn.example.com/out.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if format != "image/png" || len(data) != 4 {
		t.Fatalf("download = %d bytes, %q", len(data), format)
	}
	if _, _, err := client.Download(context.Background(), "not a url"); err == nil {
		t.Fatalf("expected invalid url error")
	}
}

type captureTransport struct {
	responses   map[string]responseStub
	lastBody    []byte
	lastRequest *http.Request
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
		c.lastRequest = req
		path := req.URL.Path
		if path == "" {
			path = "/"
		}
		if stub, ok := c.responses[path]; ok {
			return stub.toResponse(), nil
		}
	}
	if req.Method == http.MethodGet {
		if stub, ok := c.responses[req.URL.String()]; ok {
			return stub.toResponse(), nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (c *captureTransport) setBinaryResponse(url string, data []byte) {
	c.responses[url] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{"image/png"}},
		body:   data,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		header[k] = append([]string(nil), values...)
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
