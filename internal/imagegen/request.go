package imagegen

import (
	"fmt"

	"aigc/internal/domain"
)

// Provider operation keys.
const (
	ReqKeyAgeTransform = "all_age_generation"
	ReqKeyHairStyle    = "hair_style_generation"
)

// BuildRequest maps a job input to the provider operation key and its
// parameters.
func BuildRequest(in domain.JobInput) (string, map[string]any, error) {
	if err := in.Validate(); err != nil {
		return "", nil, err
	}
	switch in.Kind {
	case domain.JobKindAgeTransform:
		return ReqKeyAgeTransform, map[string]any{
			"target_age": in.AgeTransform.TargetAge,
		}, nil
	case domain.JobKindHairStyle:
		return ReqKeyHairStyle, map[string]any{
			"hair_style":    in.HairStyle.HairStyle,
			"add_watermark": in.HairStyle.AddWatermark,
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown job kind %q", domain.ErrInvalidInput, in.Kind)
	}
}
