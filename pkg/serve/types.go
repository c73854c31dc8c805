package serve

import (
	"encoding/json"

	"github.com/praetorian-inc/hsmatch/pkg/types"
)

// Request represents an incoming NDJSON request.
type Request struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"` // echoed back unchanged
	Payload json.RawMessage `json:"payload"`
}

// Response represents an outgoing NDJSON response.
type Response struct {
	Success bool            `json:"success"`
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorData      `json:"error,omitempty"`
}

// ErrorData classifies a failed request.
type ErrorData struct {
	// Kind is "usage", "compile", "engine", "released" or "request".
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Field names the offending payload field for usage errors.
	Field string `json:"field,omitempty"`
	// Code is the engine status name (HS_*) for compile and engine errors.
	Code string `json:"code,omitempty"`
	// Expression is the pattern index for compile errors, -1 when not
	// attributable.
	Expression *int `json:"expression,omitempty"`
}

// ReadyData is the data field for "ready" responses.
type ReadyData struct {
	Version string `json:"version"`
	Engine  string `json:"engine"`
	Backend string `json:"backend"`
}

// PatternPayload is one entry of a multi-pattern compile. Flags is a number
// or an array of numbers.
type PatternPayload struct {
	Expression string          `json:"expression"`
	ID         *uint32         `json:"id,omitempty"`
	Flags      json.RawMessage `json:"flags,omitempty"`
	MinOffset  *uint64         `json:"min_offset,omitempty"`
	MaxOffset  *uint64         `json:"max_offset,omitempty"`
	MinLength  *uint64         `json:"min_length,omitempty"`
}

// PlatformPayload fields are each a number or an array of numbers.
type PlatformPayload struct {
	Tune        json.RawMessage `json:"tune,omitempty"`
	CPUFeatures json.RawMessage `json:"cpu_features,omitempty"`
	Reserved1   json.RawMessage `json:"reserved1,omitempty"`
	Reserved2   json.RawMessage `json:"reserved2,omitempty"`
}

// CompilePayload is the payload for "compile" requests. Mode is a number or
// a mode name.
type CompilePayload struct {
	Expression  *string          `json:"expression,omitempty"`
	Flags       json.RawMessage  `json:"flags,omitempty"`
	Expressions []PatternPayload `json:"expressions,omitempty"`
	Mode        json.RawMessage  `json:"mode"`
	Platform    *PlatformPayload `json:"platform,omitempty"`
}

// ExpressionInfoPayload is the payload for "expression_info" requests.
type ExpressionInfoPayload struct {
	Expression string          `json:"expression"`
	Flags      json.RawMessage `json:"flags,omitempty"`
}

// DeserializePayload carries a blob from "serialize".
type DeserializePayload struct {
	Blob []byte `json:"blob"`
}

// HandlePayload names a database and/or scratch handle.
type HandlePayload struct {
	Database *uint64 `json:"database,omitempty"`
	Scratch  *uint64 `json:"scratch,omitempty"`
}

// ScanPayload is the payload for "scan" requests. Content is used when Data
// is empty.
type ScanPayload struct {
	HandlePayload
	Data    []byte `json:"data,omitempty"`
	Content string `json:"content,omitempty"`
}

// ScanVectoredPayload is the payload for "scan_vectored" requests.
type ScanVectoredPayload struct {
	HandlePayload
	Blocks [][]byte `json:"blocks"`
}

// CatalogPayload is the payload for catalog requests.
type CatalogPayload struct {
	Name     string  `json:"name"`
	Database *uint64 `json:"database,omitempty"`
}

// DatabaseData returns a new database handle.
type DatabaseData struct {
	Database uint64 `json:"database"`
	Mode     string `json:"mode"`
}

// ScratchData returns a new scratch handle.
type ScratchData struct {
	Scratch uint64 `json:"scratch"`
}

// ScanData carries the matches of a scan.
type ScanData struct {
	Matches []types.MatchRecord `json:"matches"`
}
