package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition can leave the status.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseJobStatus validates a status string received from a client.
func ParseJobStatus(raw string) (JobStatus, error) {
	switch s := JobStatus(strings.ToLower(strings.TrimSpace(raw))); s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown job status %q", ErrInvalidInput, raw)
	}
}

// JobKind tags the variant carried by a JobInput.
type JobKind string

const (
	JobKindAgeTransform JobKind = "age_transform"
	JobKindHairStyle    JobKind = "hair_style"
)

// Catalog names the submission endpoints resolve services by.
const (
	ServiceNameAgeTransform = "Image Age Transform"
	ServiceNameHairStyle    = "Hairstyle Edit"
)

var (
	AllowedTargetAges  = []int{5, 70}
	AllowedHairStyles  = []string{"101", "201", "301", "401", "501"}
	allowedTargetAgeOK = map[int]bool{5: true, 70: true}
	allowedHairStyleOK = map[string]bool{"101": true, "201": true, "301": true, "401": true, "501": true}
)

// AgeTransformParams are the parameters of the age transform service.
type AgeTransformParams struct {
	TargetAge int `json:"target_age"`
}

// HairStyleParams are the parameters of the hairstyle edit service.
type HairStyleParams struct {
	HairStyle    string `json:"hair_style"`
	AddWatermark bool   `json:"add_watermark"`
}

// JobInput is the persisted input payload. Exactly one variant is set and it
// matches Kind.
type JobInput struct {
	Kind             JobKind             `json:"kind"`
	SourceImage      string              `json:"source_image"`
	OriginalFilename string              `json:"original_filename,omitempty"`
	AgeTransform     *AgeTransformParams `json:"age_transform,omitempty"`
	HairStyle        *HairStyleParams    `json:"hair_style,omitempty"`
}

// Validate checks the variant invariant and the allowed parameter sets.
func (in JobInput) Validate() error {
	if strings.TrimSpace(in.SourceImage) == "" {
		return fmt.Errorf("%w: source image is required", ErrInvalidInput)
	}
	switch in.Kind {
	case JobKindAgeTransform:
		if in.AgeTransform == nil || in.HairStyle != nil {
			return fmt.Errorf("%w: age transform payload mismatch", ErrInvalidInput)
		}
		if !allowedTargetAgeOK[in.AgeTransform.TargetAge] {
			return fmt.Errorf("%w: target age %d not supported", ErrInvalidInput, in.AgeTransform.TargetAge)
		}
	case JobKindHairStyle:
		if in.HairStyle == nil || in.AgeTransform != nil {
			return fmt.Errorf("%w: hair style payload mismatch", ErrInvalidInput)
		}
		if !allowedHairStyleOK[in.HairStyle.HairStyle] {
			return fmt.Errorf("%w: hair style %q not supported", ErrInvalidInput, in.HairStyle.HairStyle)
		}
	default:
		return fmt.Errorf("%w: unknown job kind %q", ErrInvalidInput, in.Kind)
	}
	return nil
}

// DecodeJobInput parses and validates a stored input payload.
func DecodeJobInput(raw []byte) (JobInput, error) {
	var in JobInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return JobInput{}, fmt.Errorf("%w: decode job input: %v", ErrInvalidInput, err)
	}
	if err := in.Validate(); err != nil {
		return JobInput{}, err
	}
	return in, nil
}

// DecodeInput returns the validated input of j. When the store supplied the
// stored bytes they are decoded and replace Input.
func (j *Job) DecodeInput() (JobInput, error) {
	if len(j.RawInput) == 0 {
		if err := j.Input.Validate(); err != nil {
			return JobInput{}, err
		}
		return j.Input, nil
	}
	in, err := DecodeJobInput(j.RawInput)
	if err != nil {
		return JobInput{}, err
	}
	j.Input = in
	return in, nil
}

// JobOutput is the persisted output payload of a completed job.
type JobOutput struct {
	ResultImagePath   string    `json:"result_image_path,omitempty"`
	ResultImageBase64 string    `json:"result_image_base64,omitempty"`
	ResultImageURL    string    `json:"result_image_url,omitempty"`
	OriginalImagePath string    `json:"original_image_path"`
	TargetAge         *int      `json:"target_age,omitempty"`
	HairStyle         string    `json:"hair_style,omitempty"`
	AddWatermark      *bool     `json:"add_watermark,omitempty"`
	Simulated         bool      `json:"simulated,omitempty"`
	Note              string    `json:"note,omitempty"`
	ProcessedAt       time.Time `json:"processed_at"`
}

// EchoParams copies the input parameters into the output payload.
func (out *JobOutput) EchoParams(in JobInput) {
	out.OriginalImagePath = in.SourceImage
	if in.AgeTransform != nil {
		age := in.AgeTransform.TargetAge
		out.TargetAge = &age
	}
	if in.HairStyle != nil {
		out.HairStyle = in.HairStyle.HairStyle
		watermark := in.HairStyle.AddWatermark
		out.AddWatermark = &watermark
	}
}

// Job is one paid, asynchronously processed unit of work.
type Job struct {
	ID           string
	UserID       string
	ServiceID    string
	ServiceName  string
	Status       JobStatus
	Input        JobInput
	RawInput     []byte
	Output       *JobOutput
	ErrorMessage string
	CreditsUsed  int64
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

const (
	DefaultJobListLimit = 20
	MaxJobListLimit     = 100
)

// JobFilter narrows an owner's job listing.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}

// Normalize applies paging defaults and bounds.
func (f JobFilter) Normalize() JobFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultJobListLimit
	}
	if f.Limit > MaxJobListLimit {
		f.Limit = MaxJobListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
