// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

// Package console maintains interactive telnet sessions to node consoles so
// agents can issue commands and read output across many tool calls.
//
// The telnet protocol is used as an opaque byte stream: every received byte
// is treated as console output and no option negotiation is performed. Each
// session owns a growing buffer fed by a dedicated ingestion goroutine and a
// read cursor so agents can ask "what happened since I last looked".
package console

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

const (
	// SessionTTL is how long an idle session lives before the sweeper
	// disconnects it. Reads and writes both refresh activity.
	SessionTTL = 30 * time.Minute

	// CleanupInterval is how often the sweeper looks for expired sessions.
	CleanupInterval = 5 * time.Minute

	dialTimeout = 10 * time.Second
)

// Manager is the console session multiplexer. It owns every live Session and
// the node-name index. The session map is authoritative: an entry in the name
// index always refers to a live session.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session // session id -> session
	byNode   map[string]string   // node name -> session id

	// dial is replaceable in tests.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewManager creates an empty multiplexer.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		byNode:   make(map[string]string),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

// Connect returns the session id for the node, opening a new telnet
// connection when none exists. Two racing callers for the same node name
// converge on one session: the loser closes its own connection and adopts
// the winner's id, so exactly one ingestion goroutine exists per node.
func (m *Manager) Connect(ctx context.Context, host string, port int, nodeName string) (string, error) {
	m.mu.RLock()
	if id, ok := m.byNode[nodeName]; ok {
		m.mu.RUnlock()
		return id, nil
	}
	m.mu.RUnlock()

	// Dialing happens outside the lock; it can take seconds.
	conn, err := m.dial(ctx, net.JoinHostPort(host, fmt.Sprintf("%d", port)))
	if err != nil {
		return "", mcperr.NewConsoleConnectionFailed(
			fmt.Sprintf("cannot open console to %s (%s:%d)", nodeName, host, port), err).
			WithContext("node", nodeName).
			WithContext("host", host).
			WithContext("port", port)
	}

	m.mu.Lock()
	if id, ok := m.byNode[nodeName]; ok {
		// Lost the race: another caller installed a session while we dialed.
		m.mu.Unlock()
		_ = conn.Close()
		return id, nil
	}

	now := time.Now()
	s := &Session{
		id:           uuid.NewString(),
		nodeName:     nodeName,
		host:         host,
		port:         port,
		conn:         conn,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		createdAt:    now,
		lastActivity: now,
	}
	m.sessions[s.id] = s
	m.byNode[nodeName] = s.id
	m.mu.Unlock()

	go m.ingest(s)

	logger.Debugf("Console session %s connected to %s (%s:%d)", s.id, nodeName, host, port)
	return s.id, nil
}

// ingest is the per-session background reader. It appends received bytes to
// the session buffer until EOF or until Disconnect closes the connection.
func (m *Manager) ingest(s *Session) {
	defer close(s.done)

	chunk := make([]byte, readChunkSize)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			s.append(chunk[:n])
		}
		if err != nil {
			s.markClosed()
			select {
			case <-s.stop:
				// Deliberate disconnect; nothing to report.
			default:
				logger.Debugf("Console session %s (%s) stream ended: %v", s.id, s.nodeName, err)
			}
			return
		}
	}
}

func (m *Manager) get(sessionID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, mcperr.NewConsoleDisconnected(
			fmt.Sprintf("console session %q does not exist", sessionID))
	}
	return s, nil
}

func (m *Manager) getByNode(nodeName string) (*Session, error) {
	m.mu.RLock()
	id, ok := m.byNode[nodeName]
	s := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s == nil {
		return nil, mcperr.NewConsoleDisconnected(
			fmt.Sprintf("no console session for node %q", nodeName)).
			WithContext("node", nodeName)
	}
	return s, nil
}

// SessionIDByNode returns the live session id for the node, if any.
func (m *Manager) SessionIDByNode(nodeName string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byNode[nodeName]
	return id, ok
}

// Send writes raw bytes to the console and refreshes activity. The
// multiplexer does not transform outbound data; line-ending normalization is
// the tool handler's job and happens exactly once, there.
func (m *Manager) Send(sessionID string, data []byte) error {
	s, err := m.get(sessionID)
	if err != nil {
		return err
	}
	if s.Closed() {
		return mcperr.NewConsoleDisconnected(
			fmt.Sprintf("console session for node %q is no longer connected", s.nodeName))
	}
	if _, err := s.conn.Write(data); err != nil {
		s.markClosed()
		return mcperr.NewConsoleDisconnected(
			fmt.Sprintf("write to console of node %q failed", s.nodeName)).
			WithDetails(err.Error())
	}
	s.touch()
	return nil
}

// SendByNode is Send keyed by node name.
func (m *Manager) SendByNode(nodeName string, data []byte) error {
	s, err := m.getByNode(nodeName)
	if err != nil {
		return err
	}
	return m.Send(s.id, data)
}

// GetOutput returns the entire buffer ANSI-stripped without advancing the
// cursor.
func (m *Manager) GetOutput(sessionID string) (string, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return "", err
	}
	return s.Output(), nil
}

// GetOutputByNode is GetOutput keyed by node name.
func (m *Manager) GetOutputByNode(nodeName string) (string, error) {
	s, err := m.getByNode(nodeName)
	if err != nil {
		return "", err
	}
	return s.Output(), nil
}

// GetDiff returns buffer content past the cursor ANSI-stripped, then moves
// the cursor to the end. This is the primary read mode for agents.
func (m *Manager) GetDiff(sessionID string) (string, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return "", err
	}
	return s.Diff(), nil
}

// GetDiffByNode is GetDiff keyed by node name.
func (m *Manager) GetDiffByNode(nodeName string) (string, error) {
	s, err := m.getByNode(nodeName)
	if err != nil {
		return "", err
	}
	return s.Diff(), nil
}

// HasAccessedTerminal reports whether the session's output has ever been read.
func (m *Manager) HasAccessedTerminal(sessionID string) (bool, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return false, err
	}
	return s.Accessed(), nil
}

// HasAccessedTerminalByNode is HasAccessedTerminal keyed by node name.
func (m *Manager) HasAccessedTerminalByNode(nodeName string) (bool, error) {
	s, err := m.getByNode(nodeName)
	if err != nil {
		return false, err
	}
	return s.Accessed(), nil
}

// Get returns a status snapshot for one session.
func (m *Manager) Get(sessionID string) (Info, error) {
	s, err := m.get(sessionID)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// GetByNode returns a status snapshot for the node's session.
func (m *Manager) GetByNode(nodeName string) (Info, error) {
	s, err := m.getByNode(nodeName)
	if err != nil {
		return Info{}, err
	}
	return s.info(), nil
}

// List returns status snapshots for all live sessions, ordered by node name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].NodeName < infos[j].NodeName })
	return infos
}

// Disconnect closes the session and removes it from both indexes.
func (m *Manager) Disconnect(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return mcperr.NewConsoleDisconnected(
			fmt.Sprintf("console session %q does not exist", sessionID))
	}
	delete(m.sessions, sessionID)
	if m.byNode[s.nodeName] == sessionID {
		delete(m.byNode, s.nodeName)
	}
	m.mu.Unlock()

	m.teardown(s)
	logger.Debugf("Console session %s (%s) disconnected", s.id, s.nodeName)
	return nil
}

// DisconnectByNode is Disconnect keyed by node name.
func (m *Manager) DisconnectByNode(nodeName string) error {
	m.mu.RLock()
	id, ok := m.byNode[nodeName]
	m.mu.RUnlock()
	if !ok {
		return mcperr.NewConsoleDisconnected(
			fmt.Sprintf("no console session for node %q", nodeName))
	}
	return m.Disconnect(id)
}

// teardown signals the ingestion goroutine, closes the stream and waits for
// the goroutine to exit.
func (m *Manager) teardown(s *Session) {
	close(s.stop)
	_ = s.conn.Close()
	<-s.done
}

// CleanupExpired disconnects sessions idle longer than SessionTTL and
// returns how many were removed.
func (m *Manager) CleanupExpired() int {
	cutoff := time.Now().Add(-SessionTTL)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			delete(m.sessions, id)
			if m.byNode[s.nodeName] == id {
				delete(m.byNode, s.nodeName)
			}
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.teardown(s)
		logger.Infof("Console session %s (%s) expired after %v idle", s.id, s.nodeName, SessionTTL)
	}
	return len(expired)
}

// RunSweeper periodically removes expired sessions until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Console sweeper stopping")
			return
		case <-ticker.C:
			if n := m.CleanupExpired(); n > 0 {
				logger.Debugf("Console sweeper removed %d expired session(s)", n)
			}
		}
	}
}

// CloseAll tears down every session. Errors from individual sessions are
// aggregated; one bad stream must not mask the rest.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.byNode = make(map[string]string)
	m.mu.Unlock()

	var (
		g      errgroup.Group
		errsMu sync.Mutex
		errs   *multierror.Error
	)
	for _, s := range sessions {
		g.Go(func() error {
			close(s.stop)
			if err := s.conn.Close(); err != nil {
				errsMu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("session %s (%s): %w", s.id, s.nodeName, err))
				errsMu.Unlock()
			}
			<-s.done
			return nil
		})
	}
	_ = g.Wait()

	logger.Debugf("Closed %d console session(s)", len(sessions))
	return errs.ErrorOrNil()
}
