// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"net"
	"sync"
	"time"
)

const (
	// readChunkSize is how much the ingestion goroutine reads per call.
	readChunkSize = 4096

	// maxBufferSize caps a session's ring buffer. When the buffer grows past
	// the cap it is trimmed to half by discarding the oldest bytes.
	maxBufferSize = 10 * 1024 * 1024

	trimTarget = maxBufferSize / 2
)

// Session is one live telnet connection to a node console. The ingestion
// goroutine is the only writer of buffer contents; readers advance the
// cursor. Both sides hold mu for their critical sections.
type Session struct {
	id       string
	nodeName string
	host     string
	port     int

	conn net.Conn
	stop chan struct{}
	done chan struct{}

	mu           sync.Mutex
	buffer       []byte
	cursor       int
	accessed     bool
	closed       bool
	createdAt    time.Time
	lastActivity time.Time
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// NodeName returns the node this session is attached to.
func (s *Session) NodeName() string {
	return s.nodeName
}

// append adds bytes from the ingestion goroutine and trims past the cap.
func (s *Session) append(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, data...)
	if len(s.buffer) > maxBufferSize {
		s.trimLocked()
	}
	s.lastActivity = time.Now()
}

// trimLocked discards the oldest half of the buffer. The cursor is reset to
// zero; the only cost is an agent re-reading some already-seen bytes once per
// 10 MiB of traffic.
func (s *Session) trimLocked() {
	trimmed := make([]byte, trimTarget)
	copy(trimmed, s.buffer[len(s.buffer)-trimTarget:])
	s.buffer = trimmed
	s.cursor = 0
}

// Output returns the entire buffer ANSI-stripped. The cursor does not move.
func (s *Session) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessed = true
	s.lastActivity = time.Now()
	return StripANSI(string(s.buffer))
}

// Diff returns everything past the cursor ANSI-stripped and advances the
// cursor to the end of the buffer.
func (s *Session) Diff() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := StripANSI(string(s.buffer[s.cursor:]))
	s.cursor = len(s.buffer)
	s.accessed = true
	s.lastActivity = time.Now()
	return out
}

// Accessed reports whether Output or Diff has ever been called.
func (s *Session) Accessed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessed
}

// LastActivity returns the time of the last read, write or received byte.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the underlying stream has reached EOF or was shut.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Info is a point-in-time status snapshot of a session, shaped for the
// sessions://console resource and get_console_status tool.
type Info struct {
	SessionID    string    `json:"session_id"`
	NodeName     string    `json:"node_name"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	BufferSize   int       `json:"buffer_size"`
	UnreadBytes  int       `json:"unread_bytes"`
	Accessed     bool      `json:"accessed"`
	Connected    bool      `json:"connected"`
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		SessionID:    s.id,
		NodeName:     s.nodeName,
		Host:         s.host,
		Port:         s.port,
		CreatedAt:    s.createdAt,
		LastActivity: s.lastActivity,
		BufferSize:   len(s.buffer),
		UnreadBytes:  len(s.buffer) - s.cursor,
		Accessed:     s.accessed,
		Connected:    !s.closed,
	}
}
