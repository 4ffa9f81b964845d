package domain

import "time"

type AudioSource string

const (
	SourceMicrophone AudioSource = "microphone"
	SourceSystem     AudioSource = "system"
)

// MonitorType selects which sources an audio start/stop call addresses.
type MonitorType string

const (
	MonitorMicrophone MonitorType = "microphone"
	MonitorSystem     MonitorType = "system"
	MonitorBoth       MonitorType = "both"
	MonitorAll        MonitorType = "all"
)

// SilenceDB stands in for negative infinity. Digital silence bottoms out
// around -100 dBFS and the value survives JSON encoding, which -Inf does not.
const SilenceDB = -100.0

// AudioLevel is one telemetry sample. Transient: produced, routed, consumed.
type AudioLevel struct {
	Source    AudioSource `json:"source"`
	RMS       float64     `json:"rms"`
	DB        float64     `json:"db"`
	Peak      float64     `json:"peak"`
	Timestamp time.Time   `json:"timestamp"`
}

// SilentLevel is the defined quiet value a source's slot resets to.
func SilentLevel(source AudioSource) AudioLevel {
	return AudioLevel{Source: source, RMS: 0, DB: SilenceDB, Peak: 0}
}

// StartSources expands a start monitor type into concrete sources.
// Unknown types expand to nothing.
func (t MonitorType) StartSources() []AudioSource {
	switch t {
	case MonitorMicrophone:
		return []AudioSource{SourceMicrophone}
	case MonitorSystem:
		return []AudioSource{SourceSystem}
	case MonitorBoth:
		return []AudioSource{SourceMicrophone, SourceSystem}
	default:
		return nil
	}
}

// StopSources expands a stop monitor type into concrete sources.
func (t MonitorType) StopSources() []AudioSource {
	switch t {
	case MonitorMicrophone:
		return []AudioSource{SourceMicrophone}
	case MonitorSystem:
		return []AudioSource{SourceSystem}
	case MonitorAll:
		return []AudioSource{SourceMicrophone, SourceSystem}
	default:
		return nil
	}
}
