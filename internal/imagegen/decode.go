package imagegen

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// ErrEmptyResult is returned when the provider reported success without an
// image.
var ErrEmptyResult = errors.New("imagegen: provider returned no image")

// DecodeBase64Image decodes a provider image string. A leading data URL or
// "base64," prefix is stripped. The payload must decode as an image; it is
// returned re-encoded as PNG unless it already is one.
func DecodeBase64Image(encoded string) (*Result, error) {
	payload := strings.TrimSpace(encoded)
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	if payload == "" {
		return nil, ErrEmptyResult
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("imagegen: decode result base64: %w", err)
		}
	}
	res, err := normalizePNG(data)
	if err != nil {
		return nil, err
	}
	res.Base64 = payload
	return res, nil
}

// normalizePNG checks that data is an image and converts it to PNG.
func normalizePNG(data []byte) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imagegen: result is not an image: %w", err)
	}
	bounds := img.Bounds()
	res := &Result{Width: bounds.Dx(), Height: bounds.Dy()}
	if format == "png" {
		res.PNG = data
		return res, nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imagegen: encode result png: %w", err)
	}
	res.PNG = buf.Bytes()
	return res, nil
}
