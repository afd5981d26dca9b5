package imagegen

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension bounds both sides of a prepared source image.
const MaxDimension = 1024

// MaxSourcePixels bounds width*height of an accepted source. Decoding
// allocates the full raster, so the compressed upload size is no guide.
const MaxSourcePixels = 64_000_000

var (
	ErrUnsupportedFormat = errors.New("imagegen: unsupported image format")
	ErrImageTooLarge     = errors.New("imagegen: image dimensions too large")
)

// SupportedFormats are the decodable source formats, keyed by the name
// image.DecodeConfig reports.
var SupportedFormats = map[string]string{
	"jpeg": ".jpg",
	"png":  ".png",
	"gif":  ".gif",
	"webp": ".webp",
}

// Inspect reads only the image header and reports its format and size. It
// rejects formats outside SupportedFormats and images above MaxSourcePixels.
func Inspect(data []byte) (image.Config, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if _, ok := SupportedFormats[format]; !ok {
		return image.Config{}, "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return image.Config{}, "", fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}
	return cfg, format, nil
}

// Prepare downscales data so neither side exceeds MaxDimension and encodes it
// as standard base64. The original bytes are sent untouched when no resize is
// needed.
func Prepare(data []byte) (SourceImage, error) {
	if len(data) == 0 {
		return SourceImage{}, fmt.Errorf("imagegen: empty source image")
	}
	cfg, format, err := Inspect(data)
	if err != nil {
		return SourceImage{}, err
	}
	w, h := fitWithin(cfg.Width, cfg.Height, MaxDimension)
	if w == cfg.Width && h == cfg.Height {
		return SourceImage{
			Data:     data,
			Base64:   base64.StdEncoding.EncodeToString(data),
			MIMEType: mimeFor(format),
			Width:    cfg.Width,
			Height:   cfg.Height,
		}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return SourceImage{}, fmt.Errorf("imagegen: decode source image: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	outFormat := format
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		outFormat = "png"
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return SourceImage{}, fmt.Errorf("imagegen: encode resized image: %w", err)
	}
	out := buf.Bytes()
	return SourceImage{
		Data:       out,
		Base64:     base64.StdEncoding.EncodeToString(out),
		MIMEType:   mimeFor(outFormat),
		Width:      w,
		Height:     h,
		Downscaled: true,
	}, nil
}

// fitWithin scales (w, h) down so the longer side equals limit, keeping the
// aspect ratio. Dimensions already inside the bound are returned unchanged.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}

func mimeFor(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
