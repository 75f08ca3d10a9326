// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package gns3

import (
	"context"
	"time"

	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

// authBackoff is the fixed ladder of delays between failed authentication
// attempts. The index advances on failure and is capped at the last entry.
var authBackoff = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	30 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

const (
	// keepAliveInterval is how long the monitor sleeps after a successful
	// authentication before refreshing the token again.
	keepAliveInterval = 300 * time.Second

	// attemptTimeout bounds a single authentication attempt so the monitor
	// never blocks on a hung controller.
	attemptTimeout = 3 * time.Second
)

// ProjectAdopter is the narrow view of the app state the monitor needs: when
// exactly one project is open on the controller and no current project is
// set, the monitor adopts it.
type ProjectAdopter interface {
	CurrentProjectID() string
	SetCurrentProjectID(id string)
}

// Monitor is the background authentication loop. It lets the tool server
// accept calls immediately at startup: handlers that need the controller
// either succeed (authentication has completed) or return a structured
// unreachable error.
type Monitor struct {
	client  *Client
	adopter ProjectAdopter

	// sleep is replaceable in tests; the production value waits on a timer
	// or the context, whichever fires first.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMonitor creates a monitor for the client. adopter may be nil when no
// auto-detection is wanted.
func NewMonitor(client *Client, adopter ProjectAdopter) *Monitor {
	return &Monitor{
		client:  client,
		adopter: adopter,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run drives the loop until ctx is cancelled. Failure advances the backoff
// index; success resets it and switches to the keep-alive interval.
func (m *Monitor) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			logger.Debug("Authentication monitor stopping")
			return
		}

		if err := m.authenticateOnce(ctx); err != nil {
			delay := authBackoff[min(attempt, len(authBackoff)-1)]
			attempt++
			logger.Debugf("Authentication attempt failed, next try in %v: %v", delay, err)
			if m.sleep(ctx, delay) != nil {
				return
			}
			continue
		}

		attempt = 0
		m.adoptOpenProject(ctx)
		if m.sleep(ctx, keepAliveInterval) != nil {
			return
		}
	}
}

func (m *Monitor) authenticateOnce(ctx context.Context) error {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()
	return m.client.Authenticate(attemptCtx, AuthOptions{})
}

// adoptOpenProject sets the current project when the controller reports
// exactly one opened project and none is set yet.
func (m *Monitor) adoptOpenProject(ctx context.Context) {
	if m.adopter == nil || m.adopter.CurrentProjectID() != "" {
		return
	}

	projects, err := m.client.ListProjects(ctx)
	if err != nil {
		logger.Debugf("Cannot list projects for auto-detection: %v", err)
		return
	}

	var opened []Project
	for _, p := range projects {
		if p.Status == "opened" {
			opened = append(opened, p)
		}
	}
	if len(opened) == 1 {
		m.adopter.SetCurrentProjectID(opened[0].ProjectID)
		logger.Infof("Auto-detected open project %q (%s)", opened[0].Name, opened[0].ProjectID)
	}
}
