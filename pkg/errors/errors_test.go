// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := New(CodeGNS3Unreachable, "cannot reach GNS3 server", cause)

	assert.Equal(t, "GNS3_UNREACHABLE: cannot reach GNS3 server: connection refused", err.Error())
	assert.Equal(t, cause, err.Unwrap())

	noCause := Newf(CodeNodeNotFound, "node %q not found", "R1")
	assert.Equal(t, `NODE_NOT_FOUND: node "R1" not found`, noCause.Error())
}

func TestCodeOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodePortInUse, CodeOf(NewPortInUse("port 0/0 busy")))
	assert.Equal(t, CodeInternalError, CodeOf(fmt.Errorf("plain error")))

	// Wrapped tagged errors keep their code.
	wrapped := fmt.Errorf("while validating: %w", NewInvalidAdapter("no such port"))
	assert.Equal(t, CodeInvalidAdapter, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeInvalidAdapter))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(NewProjectNotFound("no project")))
	assert.True(t, IsNotFound(NewNodeNotFound("no node")))
	assert.True(t, IsNotFound(NewLinkNotFound("no link")))
	assert.False(t, IsNotFound(NewPortInUse("busy")))
	assert.False(t, IsNotFound(fmt.Errorf("other")))
}

func TestBuilders(t *testing.T) {
	t.Parallel()

	err := NewInvalidAdapter(`unknown adapter "ETH0"`).
		WithDetails("port names are case-sensitive").
		WithContext("node", "R1").
		WithContext("available", []string{"eth0", "eth1"})

	assert.Equal(t, "port names are case-sensitive", err.Details)
	assert.Equal(t, "R1", err.Context["node"])
	assert.NotEmpty(t, err.SuggestedAction)
}

func TestEnvelopeFromTaggedError(t *testing.T) {
	t.Parallel()

	err := NewNodeNotFound(`node "R9" not found`).WithContext("node", "R9")
	env := NewEnvelope(err)

	assert.Equal(t, `node "R9" not found`, env.Error)
	assert.Equal(t, CodeNodeNotFound, env.ErrorCode)
	assert.Equal(t, "R9", env.Context["node"])
	assert.NotEmpty(t, env.ServerVersion)

	ts, parseErr := time.Parse(time.RFC3339, env.Timestamp)
	require.NoError(t, parseErr)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)
}

func TestEnvelopeFromPlainError(t *testing.T) {
	t.Parallel()

	env := NewEnvelope(fmt.Errorf("something broke"))
	assert.Equal(t, CodeInternalError, env.ErrorCode)
	assert.Equal(t, "something broke", env.Error)
}

func TestEnvelopeJSONShape(t *testing.T) {
	t.Parallel()

	env := NewEnvelope(NewPortInUse("port 0/0 on R1 is already connected"))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.JSON()), &decoded))

	assert.Equal(t, "PORT_IN_USE", decoded["error_code"])
	assert.Contains(t, decoded, "timestamp")
	assert.Contains(t, decoded, "server_version")
	assert.Contains(t, decoded, "suggested_action")
}

func TestCauseFillsDetails(t *testing.T) {
	t.Parallel()

	env := NewEnvelope(NewUnreachable("cannot reach GNS3 server", fmt.Errorf("dial tcp: refused")))
	assert.Equal(t, "dial tcp: refused", env.Details)
}
