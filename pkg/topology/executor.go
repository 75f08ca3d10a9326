// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"context"
	"time"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/logger"
)

// LinkService is the slice of the emulator client the executor needs.
type LinkService interface {
	CreateLink(ctx context.Context, projectID string, endpoints []gns3.LinkEndpoint, timeout time.Duration) (gns3.Link, error)
	DeleteLink(ctx context.Context, projectID, linkID string, timeout time.Duration) error
}

// CompletedOperation records one successfully executed batch entry.
type CompletedOperation struct {
	Index  int    `json:"index"`
	Action string `json:"action"`
	LinkID string `json:"link_id"`

	NodeA     string `json:"node_a,omitempty"`
	AdapterA  int    `json:"adapter_a,omitempty"`
	PortA     int    `json:"port_a,omitempty"`
	PortNameA string `json:"port_name_a,omitempty"`
	NodeB     string `json:"node_b,omitempty"`
	AdapterB  int    `json:"adapter_b,omitempty"`
	PortB     int    `json:"port_b,omitempty"`
	PortNameB string `json:"port_name_b,omitempty"`
}

// FailedOperation records the single entry that stopped execution.
type FailedOperation struct {
	Index     int       `json:"index"`
	Action    string    `json:"action"`
	Operation Operation `json:"operation"`
	Reason    string    `json:"reason"`
	ErrorCode string    `json:"error_code"`
}

// Result is the outcome of a batch: the prefix of operations the emulator
// observed, plus the first failure if any. Completed operations are never
// rolled back.
type Result struct {
	Completed []CompletedOperation `json:"completed"`
	Failed    *FailedOperation     `json:"failed"`
}

// ExecuteBatch applies a validated plan in submission order and stops at the
// first failure. The caller gets a transparent "completed prefix + first
// failure" report instead of a rollback attempt, which could itself fail.
func ExecuteBatch(ctx context.Context, svc LinkService, projectID string, plan *Plan) Result {
	result := Result{Completed: make([]CompletedOperation, 0, plan.Len())}

	for _, p := range plan.ops {
		switch p.Op.Action {
		case ActionConnect:
			endpoints := []gns3.LinkEndpoint{
				{NodeID: p.A.NodeID, AdapterNumber: p.A.Adapter, PortNumber: p.A.Port},
				{NodeID: p.B.NodeID, AdapterNumber: p.B.Adapter, PortNumber: p.B.Port},
			}
			link, err := svc.CreateLink(ctx, projectID, endpoints, 0)
			if err != nil {
				result.Failed = newFailure(p, err)
				logger.Warnf("Link batch stopped at operation %d (connect %s<->%s): %v",
					p.Index, p.A.NodeName, p.B.NodeName, err)
				return result
			}
			result.Completed = append(result.Completed, CompletedOperation{
				Index:     p.Index,
				Action:    ActionConnect,
				LinkID:    link.LinkID,
				NodeA:     p.A.NodeName,
				AdapterA:  p.A.Adapter,
				PortA:     p.A.Port,
				PortNameA: p.A.PortName,
				NodeB:     p.B.NodeName,
				AdapterB:  p.B.Adapter,
				PortB:     p.B.Port,
				PortNameB: p.B.PortName,
			})

		case ActionDisconnect:
			if err := svc.DeleteLink(ctx, projectID, p.Op.LinkID, 0); err != nil {
				result.Failed = newFailure(p, err)
				logger.Warnf("Link batch stopped at operation %d (disconnect %s): %v",
					p.Index, p.Op.LinkID, err)
				return result
			}
			result.Completed = append(result.Completed, CompletedOperation{
				Index:  p.Index,
				Action: ActionDisconnect,
				LinkID: p.Op.LinkID,
			})
		}
	}
	return result
}

func newFailure(p plannedOp, err error) *FailedOperation {
	return &FailedOperation{
		Index:     p.Index,
		Action:    p.Op.Action,
		Operation: p.Op,
		Reason:    err.Error(),
		ErrorCode: mcperr.CodeOf(err),
	}
}
