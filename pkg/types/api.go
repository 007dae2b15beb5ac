package types

// GenerateRequest is the payload for POST /generate and /generate/stream.
type GenerateRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: qwen2.5-3b-q4
	Model string `json:"model,omitempty" example:"qwen2.5-3b-q4"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature in [0,2]. 0 selects greedy decoding.
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty" example:"[\"\\n\\n\",\"END\"]"`
	// Random seed for reproducibility; 0 or omitted lets the backend choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Generated completion text.
	Content string `json:"content"`
	// Backend that produced the completion.
	// example: llamacpp
	Backend string `json:"backend" example:"llamacpp"`
	// Why generation stopped: "stop" (EOS or stop sequence) or "length".
	// example: stop
	FinishReason string `json:"finish_reason" example:"stop"`
	// Number of tokens produced.
	// example: 42
	Tokens int `json:"tokens" example:"42"`
}

// ScanRequest selects a directory tree for a bulk file operation.
type ScanRequest struct {
	// Root directory to walk.
	// example: /data/projects
	Root string `json:"root" example:"/data/projects"`
	// Minimum file size in bytes for duplicate digesting (0 = all files).
	// example: 1024
	MinSize int64 `json:"min_size,omitempty" example:"1024"`
	// Worker count override (0 = number of CPUs).
	// example: 8
	Workers int `json:"workers,omitempty" example:"8"`
}

// ScanStats is the fixed aggregate record returned by every scan.
// It is a plain value with no lifecycle; safe to copy.
type ScanStats struct {
	// Total entries visited during traversal.
	Scanned uint32 `json:"scanned"`
	// Files matched by the predicate (and deleted, for destructive scans).
	Matched uint32 `json:"matched_or_deleted"`
	// Per-file errors encountered; the walk continues past them.
	Errors uint32 `json:"errors"`
}

// DuplicateGroup is one set of files sharing a content digest.
type DuplicateGroup struct {
	// SHA-256 of the file contents, hex-encoded.
	Hash string `json:"hash"`
	// Size of each file in bytes.
	Size int64 `json:"size"`
	// All paths with this digest, at least two.
	Paths []string `json:"paths"`
}

// DuplicateReport is returned by POST /scan/duplicates.
type DuplicateReport struct {
	Stats ScanStats `json:"stats"`
	// Number of duplicate groups found.
	DuplicateGroups int `json:"duplicate_groups"`
	// Total duplicate files beyond the first copy in each group.
	DuplicateFiles int `json:"duplicate_files"`
	// Bytes occupied by the redundant copies.
	WastedBytes int64 `json:"wasted_bytes"`
	// Wall-clock duration of the scan in milliseconds.
	ElapsedMS int64            `json:"elapsed_ms"`
	Groups    []DuplicateGroup `json:"groups"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Name of the active backend; empty when uninitialized.
	// example: llamacpp
	Backend string `json:"backend,omitempty" example:"llamacpp"`
	// True once a backend has been initialized.
	Initialized bool `json:"initialized"`
	// True while a model is attached to the session.
	ModelLoaded bool `json:"model_loaded"`
	// Path of the loaded model, if any.
	ModelPath string `json:"model_path,omitempty"`
	// Session identifier assigned at startup.
	// example: 6d1f6bb2-6a4e-4b8e-9f0a-0c2f4c9b7e31
	SessionID string `json:"session_id,omitempty"`
	// Last error observed by the session (if any).
	LastError string `json:"last_error,omitempty"`
	// Numeric status code of the last error (0 when clear).
	LastErrorCode int `json:"last_error_code,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
