package domain

import "strings"

// Flow enumerates the three supported visualization workflows. The values are
// the selector strings the automation webhook expects in the Filter field.
type Flow string

const (
	// FlowDesignToGarment turns a flat design image into a garment mockup.
	FlowDesignToGarment Flow = "1"
	// FlowGarmentRender renders a garment photo on a generated model.
	FlowGarmentRender Flow = "2"
	// FlowGarmentOnModel renders a garment photo on a specific model photo.
	FlowGarmentOnModel Flow = "3"
)

// OutputFormat enumerates the render sides the webhook supports.
const (
	OutputFormatFront     = "Front"
	OutputFormatFrontBack = "Front and Back"
)

// Attachment is an uploaded image held in memory until submission.
type Attachment struct {
	Filename string
	Data     []byte
}

func (a *Attachment) empty() bool {
	return a == nil || len(a.Data) == 0
}

// Request carries everything a single submission needs besides the session
// credentials. Which attachments are required depends on the flow.
type Request struct {
	Flow         Flow
	Email        string
	OutputFormat string
	GarmentType  string
	DesignImage  *Attachment
	GarmentImage *Attachment
	ModelImage   *Attachment
}

// Validate checks the variant-specific required fields. It must pass before
// any network call is attempted.
func (r Request) Validate() error {
	switch r.Flow {
	case FlowDesignToGarment:
		if strings.TrimSpace(r.GarmentType) == "" {
			return ErrMissingGarmentType
		}
		if r.DesignImage.empty() {
			return ErrMissingAttachment
		}
	case FlowGarmentRender:
		if r.GarmentImage.empty() {
			return ErrMissingAttachment
		}
	case FlowGarmentOnModel:
		if r.GarmentImage.empty() || r.ModelImage.empty() {
			return ErrMissingAttachment
		}
	default:
		return ErrUnknownFlow
	}
	switch r.OutputFormat {
	case "", OutputFormatFront, OutputFormatFrontBack:
	default:
		return ErrUnknownOutputFormat
	}
	return nil
}

// NormalizeFlow maps free-form input (CLI flags, form values) onto a Flow.
func NormalizeFlow(v string) (Flow, bool) {
	switch strings.TrimSpace(v) {
	case "1", "design":
		return FlowDesignToGarment, true
	case "2", "garment":
		return FlowGarmentRender, true
	case "3", "model":
		return FlowGarmentOnModel, true
	}
	return "", false
}
