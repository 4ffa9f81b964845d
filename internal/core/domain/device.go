package domain

type CodecFamily string

const (
	CodecH264 CodecFamily = "h264"
	CodecH265 CodecFamily = "h265"
)

// Resolution is one capture mode supported by a camera.
type Resolution struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	FPS    []float64 `json:"fps,omitempty"`
}

// CameraDevice is an immutable snapshot entry from a discovery probe.
// Indexes are only meaningful against the snapshot they came from.
type CameraDevice struct {
	Index       int          `json:"index"`
	Name        string       `json:"name"`
	Resolutions []Resolution `json:"resolutions"`
}

type Encoder struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	IsHardware  bool        `json:"is_hardware"`
	Codec       CodecFamily `json:"codec"`
}

// EncoderGroup summarizes the encoders of one codec family.
// Preferred is empty when the family has no available encoder.
type EncoderGroup struct {
	Available int       `json:"available"`
	Encoders  []Encoder `json:"encoders"`
	Preferred string    `json:"preferred,omitempty"`
}

type EncoderCatalog struct {
	H264 EncoderGroup `json:"h264"`
	H265 EncoderGroup `json:"h265"`
}

// PreferredEncoder picks the group's preferred encoder: hardware first,
// then the first software encoder, or empty when none are available.
func PreferredEncoder(encoders []Encoder) string {
	for _, e := range encoders {
		if e.IsHardware {
			return e.Name
		}
	}
	if len(encoders) > 0 {
		return encoders[0].Name
	}
	return ""
}
