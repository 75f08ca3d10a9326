// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the closed error-code taxonomy of the mediator and
// the canonical error envelope surfaced to agents.
package errors

import (
	"errors"
	"fmt"
)

// Error codes. The set is closed: tool handlers translate every failure into
// one of these before it crosses the MCP boundary.
const (
	// Not found (404-style)

	// CodeProjectNotFound is returned when a project does not exist.
	CodeProjectNotFound = "PROJECT_NOT_FOUND"
	// CodeNodeNotFound is returned when a node does not exist in the current project.
	CodeNodeNotFound = "NODE_NOT_FOUND"
	// CodeLinkNotFound is returned when a link id is not present in the topology.
	CodeLinkNotFound = "LINK_NOT_FOUND"
	// CodeTemplateNotFound is returned when a template does not exist.
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	// CodeDrawingNotFound is returned when a drawing does not exist.
	CodeDrawingNotFound = "DRAWING_NOT_FOUND"
	// CodeSnapshotNotFound is returned when a snapshot does not exist.
	CodeSnapshotNotFound = "SNAPSHOT_NOT_FOUND"

	// Validation (400-style)

	// CodeInvalidParameter is returned when a parameter fails validation.
	CodeInvalidParameter = "INVALID_PARAMETER"
	// CodeMissingParameter is returned when a required parameter is absent.
	CodeMissingParameter = "MISSING_PARAMETER"
	// CodePortInUse is returned when a connect references an occupied port.
	CodePortInUse = "PORT_IN_USE"
	// CodeNodeRunning is returned when an operation requires a stopped node.
	CodeNodeRunning = "NODE_RUNNING"
	// CodeNodeStopped is returned when an operation requires a running node.
	CodeNodeStopped = "NODE_STOPPED"
	// CodeInvalidNodeState is returned when a node is in a state the operation rejects.
	CodeInvalidNodeState = "INVALID_NODE_STATE"
	// CodeInvalidAdapter is returned when an adapter specifier cannot be resolved.
	CodeInvalidAdapter = "INVALID_ADAPTER"
	// CodeInvalidPort is returned when a port number is not present on the adapter.
	CodeInvalidPort = "INVALID_PORT"

	// Connection (503-style)

	// CodeGNS3Unreachable is returned when the emulator cannot be reached at all.
	CodeGNS3Unreachable = "GNS3_UNREACHABLE"
	// CodeGNS3APIError is returned when the emulator answers with a non-2xx status.
	CodeGNS3APIError = "GNS3_API_ERROR"
	// CodeConsoleDisconnected is returned when a console session has gone away.
	CodeConsoleDisconnected = "CONSOLE_DISCONNECTED"
	// CodeConsoleConnectionFailed is returned when a console cannot be opened.
	CodeConsoleConnectionFailed = "CONSOLE_CONNECTION_FAILED"
	// CodeSSHConnectionFailed is returned when the SSH proxy cannot reach a node.
	CodeSSHConnectionFailed = "SSH_CONNECTION_FAILED"
	// CodeSSHDisconnected is returned when an SSH session has gone away.
	CodeSSHDisconnected = "SSH_DISCONNECTED"

	// Auth (401-style)

	// CodeAuthFailed is returned when the credential exchange fails.
	CodeAuthFailed = "AUTH_FAILED"
	// CodeTokenExpired is returned when the bearer token is no longer accepted.
	CodeTokenExpired = "TOKEN_EXPIRED"
	// CodeInvalidCredentials is returned when the emulator rejects the credentials.
	CodeInvalidCredentials = "INVALID_CREDENTIALS"

	// Internal (500-style)

	// CodeInternalError is returned for unexpected mediator failures.
	CodeInternalError = "INTERNAL_ERROR"
	// CodeTimeout is returned when an operation exceeds its deadline.
	CodeTimeout = "TIMEOUT"
	// CodeOperationFailed is returned when the emulator accepted but could not
	// complete an operation.
	CodeOperationFailed = "OPERATION_FAILED"
)

// Error is a tagged failure raised by the mediator's components. Tool handlers
// convert it into an [Envelope] before it reaches the agent; it is never
// surfaced as a bare string.
type Error struct {
	// Code is one of the Code* constants.
	Code string

	// Message is the short human-readable description.
	Message string

	// Details carries the long-form explanation, when one helps.
	Details string

	// SuggestedAction tells the agent what to try next.
	SuggestedAction string

	// Context holds free-form debug fields (node names, port numbers, URIs).
	Context map[string]any

	// Cause is the underlying error.
	Cause error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetails attaches long-form detail text and returns the error.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithSuggestion attaches a suggested action and returns the error.
func (e *Error) WithSuggestion(action string) *Error {
	e.SuggestedAction = action
	return e
}

// WithContext attaches a debug field and returns the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates a new tagged error.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Newf creates a new tagged error with a formatted message and no cause.
func Newf(code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewProjectNotFound creates a project-not-found error.
func NewProjectNotFound(message string) *Error {
	return New(CodeProjectNotFound, message, nil).
		WithSuggestion("call list_projects() for the available project names")
}

// NewNodeNotFound creates a node-not-found error.
func NewNodeNotFound(message string) *Error {
	return New(CodeNodeNotFound, message, nil).
		WithSuggestion("call list_nodes() for case-sensitive node names")
}

// NewLinkNotFound creates a link-not-found error.
func NewLinkNotFound(message string) *Error {
	return New(CodeLinkNotFound, message, nil).
		WithSuggestion("call get_links() for the current link ids")
}

// NewInvalidParameter creates a validation error for a bad parameter.
func NewInvalidParameter(message string, cause error) *Error {
	return New(CodeInvalidParameter, message, cause)
}

// NewMissingParameter creates a validation error for an absent parameter.
func NewMissingParameter(name string) *Error {
	return Newf(CodeMissingParameter, "required parameter %q is missing", name)
}

// NewPortInUse creates a port-in-use validation error.
func NewPortInUse(message string) *Error {
	return New(CodePortInUse, message, nil).
		WithSuggestion("call get_links() to see which ports are occupied, or disconnect the existing link first")
}

// NewInvalidAdapter creates an adapter-resolution error.
func NewInvalidAdapter(message string) *Error {
	return New(CodeInvalidAdapter, message, nil).
		WithSuggestion("call get_node_details() for the node's port names; names are case-sensitive")
}

// NewUnreachable creates an emulator-unreachable error.
func NewUnreachable(message string, cause error) *Error {
	return New(CodeGNS3Unreachable, message, cause).
		WithSuggestion("check that the GNS3 server is running and reachable; the mediator retries authentication in the background")
}

// NewAPIError creates an error for a non-2xx emulator response.
func NewAPIError(message string, cause error) *Error {
	return New(CodeGNS3APIError, message, cause)
}

// NewConsoleConnectionFailed creates an error for a console that cannot be opened.
func NewConsoleConnectionFailed(message string, cause error) *Error {
	return New(CodeConsoleConnectionFailed, message, cause).
		WithSuggestion("check that the node is started; consoles only accept connections while the node runs")
}

// NewConsoleDisconnected creates an error for a console session that has gone away.
func NewConsoleDisconnected(message string) *Error {
	return New(CodeConsoleDisconnected, message, nil).
		WithSuggestion("call send_console() or read_console() to open a fresh session")
}

// NewInvalidCredentials creates an error for rejected credentials.
func NewInvalidCredentials(message string) *Error {
	return New(CodeInvalidCredentials, message, nil).
		WithSuggestion("check the GNS3_PASSWORD environment variable and the --username flag")
}

// NewTimeout creates a timeout error.
func NewTimeout(message string, cause error) *Error {
	return New(CodeTimeout, message, cause)
}

// NewInternal creates an internal error.
func NewInternal(message string, cause error) *Error {
	return New(CodeInternalError, message, cause)
}

// CodeOf returns the taxonomy code carried by err, or CodeInternalError when
// err is not a tagged error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsNotFound reports whether err is one of the 404-style codes.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case CodeProjectNotFound, CodeNodeNotFound, CodeLinkNotFound,
		CodeTemplateNotFound, CodeDrawingNotFound, CodeSnapshotNotFound:
		return true
	}
	return false
}

// IsUnreachable reports whether err indicates the emulator cannot be reached.
func IsUnreachable(err error) bool {
	return IsCode(err, CodeGNS3Unreachable)
}
