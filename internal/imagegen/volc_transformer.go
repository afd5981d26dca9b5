package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"aigc/internal/domain"
	"aigc/internal/providers/volc"
)

// CVProcessor is the subset of the volc client the transformer calls.
type CVProcessor interface {
	CVProcess(ctx context.Context, reqKey string, images []string, params map[string]any) (*volc.Result, error)
	Download(ctx context.Context, imageURL string) ([]byte, string, error)
}

// VolcTransformer runs job inputs through the Volcengine visual API.
type VolcTransformer struct {
	client CVProcessor
}

func NewVolcTransformer(client CVProcessor) *VolcTransformer {
	return &VolcTransformer{client: client}
}

// Transform submits source with the parameters of in and decodes the first
// returned image. Missing credentials surface as ErrCredentialsNotConfigured.
func (t *VolcTransformer) Transform(ctx context.Context, in domain.JobInput, source SourceImage) (*Result, error) {
	if t == nil || t.client == nil {
		return nil, ErrCredentialsNotConfigured
	}
	reqKey, params, err := BuildRequest(in)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.CVProcess(ctx, reqKey, []string{source.Base64}, params)
	if err != nil {
		if errors.Is(err, volc.ErrMissingCredentials) {
			return nil, ErrCredentialsNotConfigured
		}
		return nil, err
	}

	for _, encoded := range resp.BinaryDataBase64 {
		if strings.TrimSpace(encoded) == "" {
			continue
		}
		res, err := DecodeBase64Image(encoded)
		if err != nil {
			return nil, err
		}
		res.RequestID = resp.RequestID
		return res, nil
	}
	for _, url := range resp.ImageURLs {
		if strings.TrimSpace(url) == "" {
			continue
		}
		data, _, err := t.client.Download(ctx, url)
		if err != nil {
			return nil, err
		}
		res, err := normalizePNG(data)
		if err != nil {
			return nil, err
		}
		res.Base64 = base64.StdEncoding.EncodeToString(res.PNG)
		res.RequestID = resp.RequestID
		return res, nil
	}
	return nil, ErrEmptyResult
}
