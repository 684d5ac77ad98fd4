package types

// GenerateRequest is the body of POST /generate on the gateway.
type GenerateRequest struct {
	// Name of the configured model to route to.
	// example: small
	Model string `json:"model" example:"small"`
	// Prompt text forwarded to the worker unchanged.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	Overrides
}

// Overrides are optional per-call generation parameters. A nil field means
// "use the worker's process-wide default".
type Overrides struct {
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens *int `json:"max_tokens,omitempty" example:"128"`
	// Repeat penalty applied by llama.cpp.
	// example: 1.1
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" example:"1.1"`
}

// InvokeRequest is the body of POST /invoke on a worker.
type InvokeRequest struct {
	Prompt string `json:"prompt"`
	Overrides
}

// GenerateResponse is returned by both the gateway and the workers.
// Exactly one of Response or Error is set.
type GenerateResponse struct {
	// Generated text.
	Response string `json:"response,omitempty"`
	// Error message when generation failed or could not be routed.
	// example: Unknown model: ghost
	Error string `json:"error,omitempty" example:"Unknown model: ghost"`
}

// WorkerHealth is returned by GET /health on a worker.
type WorkerHealth struct {
	ModelLoaded bool `json:"model_loaded"`
}

// HealthReport maps "<model>_loaded" to whether that model can serve.
type HealthReport map[string]bool

// HealthKey returns the HealthReport key for a model name.
func HealthKey(model string) string { return model + "_loaded" }

// ErrorResponse is the payload for transport-level failures (bad JSON, wrong content type).
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// ModelsResponse wraps the list of configured models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// WorkerStatus summarizes one supervised worker for GET /status.
type WorkerStatus struct {
	// Model name.
	// example: small
	Model string `json:"model" example:"small"`
	// Startup phase: idle, launching, probing, ready, failed, skipped.
	// example: ready
	Phase string `json:"phase" example:"ready"`
	// Loopback port of the worker.
	// example: 9001
	Port int `json:"port" example:"9001"`
	// Process ID of the worker (0 when never launched).
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Identifier of this launch, also passed to the worker.
	LaunchID string `json:"launch_id,omitempty"`
	// Seconds from launch until the worker reported ready.
	// example: 12.5
	ReadySeconds float64 `json:"ready_seconds,omitempty" example:"12.5"`
	// Last error observed while launching or probing.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// True once the startup sequence has finished (successfully or not).
	Started bool `json:"started"`
	// Workers in configuration order.
	Workers []WorkerStatus `json:"workers"`
	// Uptime of the gateway in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}
