package domain

type BackendKind string

const (
	BackendModelUpscale    BackendKind = "model-upscale"
	BackendExternalEncoder BackendKind = "external-encoder"
	BackendRawResize       BackendKind = "raw-resize"
)

// Capabilities are the runtime facts used to pick a backend.
type Capabilities struct {
	Accelerator       bool   `json:"accelerator"`
	AcceleratorDetail string `json:"accelerator_detail,omitempty"`
	Encoder           bool   `json:"encoder"`
	EncoderDetail     string `json:"encoder_detail,omitempty"`
}

type backendRule struct {
	kind      BackendKind
	available func(Capabilities) bool
}

// backendPreference is ordered highest first. The last entry must always be
// available.
var backendPreference = []backendRule{
	{BackendModelUpscale, func(c Capabilities) bool { return c.Accelerator }},
	{BackendExternalEncoder, func(c Capabilities) bool { return c.Encoder }},
	{BackendRawResize, func(Capabilities) bool { return true }},
}

// SelectBackend returns the most preferred backend the capabilities allow.
func SelectBackend(caps Capabilities) BackendKind {
	for _, rule := range backendPreference {
		if rule.available(caps) {
			return rule.kind
		}
	}
	return BackendRawResize
}

// BackendPreference lists all backend kinds, highest preference first.
func BackendPreference() []BackendKind {
	kinds := make([]BackendKind, 0, len(backendPreference))
	for _, rule := range backendPreference {
		kinds = append(kinds, rule.kind)
	}
	return kinds
}
