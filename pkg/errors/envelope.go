// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gns3-labs/gns3-mcp/pkg/versions"
)

// Envelope is the canonical error record returned to agents. Every failed
// tool call and resource read serializes to exactly this shape.
type Envelope struct {
	Error           string         `json:"error"`
	ErrorCode       string         `json:"error_code"`
	Details         string         `json:"details,omitempty"`
	SuggestedAction string         `json:"suggested_action,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	ServerVersion   string         `json:"server_version"`
	Timestamp       string         `json:"timestamp"`
}

// NewEnvelope builds the envelope for err. Untagged errors are reported as
// INTERNAL_ERROR so a raw Go error never crosses the transport.
func NewEnvelope(err error) Envelope {
	env := Envelope{
		Error:         err.Error(),
		ErrorCode:     CodeInternalError,
		ServerVersion: versions.GetVersionInfo().Version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}

	var e *Error
	if errors.As(err, &e) {
		env.Error = e.Message
		env.ErrorCode = e.Code
		env.Details = e.Details
		env.SuggestedAction = e.SuggestedAction
		env.Context = e.Context
		if e.Details == "" && e.Cause != nil {
			env.Details = e.Cause.Error()
		}
	}

	return env
}

// JSON serializes the envelope. Marshalling an Envelope cannot fail; the
// fallback exists so callers never receive an empty body.
func (e Envelope) JSON() string {
	out, err := json.Marshal(e)
	if err != nil {
		return `{"error":"failed to serialize error envelope","error_code":"INTERNAL_ERROR"}`
	}
	return string(out)
}
