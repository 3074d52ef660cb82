package control

import "context"

// LoadedModel describes a model instance currently resident in the backend.
type LoadedModel struct {
	Path       string `json:"path"`
	Identifier string `json:"identifier"`
}

// DownloadedModel describes a model available on disk but not necessarily
// loaded.
type DownloadedModel struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Type      string `json:"type"`
}

// GPUConfig is the sparse GPU-offload portion of a LoadConfig.
type GPUConfig struct {
	Ratio  *float64 `json:"ratio,omitempty"`
	Layers *int     `json:"layers,omitempty"`
}

// LoadConfig is a sparse record of backend load-time parameters. Fields
// left nil are omitted from the wire request and the backend applies its
// own default.
type LoadConfig struct {
	ContextLength      *int       `json:"context_length,omitempty"`
	GPU                *GPUConfig `json:"gpu,omitempty"`
	CPUThreads         *int       `json:"cpu_threads,omitempty"`
	RopeFrequencyBase  *float64   `json:"rope_frequency_base,omitempty"`
	RopeFrequencyScale *float64   `json:"rope_frequency_scale,omitempty"`
}

// NotFoundError is returned by UnloadModel when no loaded model matches the
// requested key or instance ID.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// UnavailableError is returned when the control channel could not be
// reached after the connect-retry budget was exhausted.
type UnavailableError struct {
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string { return e.Message }
func (e *UnavailableError) Unwrap() error { return e.Cause }

// Session is the capability set the gateway needs from the backend's
// control channel. Any connector satisfying these primitives is acceptable;
// Client is the websocket-based binding used by default.
type Session interface {
	// ListModels returns the backend's loaded and downloaded model sets.
	ListModels(ctx context.Context) (loaded []LoadedModel, downloaded []DownloadedModel, err error)

	// LoadModel instructs the backend to load a model. cfg may be nil.
	LoadModel(ctx context.Context, modelKey, instanceID string, cfg *LoadConfig) error

	// UnloadModel instructs the backend to unload a loaded model, resolved
	// by instanceID when present, otherwise by modelKey. Returns
	// *NotFoundError when no loaded model matches.
	UnloadModel(ctx context.Context, modelKey, instanceID string) error

	// Health performs a cheap liveness probe.
	Health(ctx context.Context) bool
}
