// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package topology

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
)

func twoRouterSnapshot(links ...gns3.Link) *Snapshot {
	nodes := []gns3.Node{
		{
			NodeID: "n-r1", Name: "R1", NodeType: "qemu", Status: "started",
			Ports: []gns3.Port{
				{AdapterNumber: 0, PortNumber: 0, Name: "eth0"},
				{AdapterNumber: 0, PortNumber: 1, Name: "eth1"},
				{AdapterNumber: 1, PortNumber: 0, Name: "GigabitEthernet0/0"},
			},
		},
		{
			NodeID: "n-r2", Name: "R2", NodeType: "qemu", Status: "started",
			Ports: []gns3.Port{
				{AdapterNumber: 0, PortNumber: 0, Name: "eth0"},
				{AdapterNumber: 0, PortNumber: 1, Name: "eth1"},
			},
		},
		// A cloud-style node without a published port list.
		{NodeID: "n-sw", Name: "SW1", NodeType: "ethernet_switch", Status: "started"},
	}
	return BuildSnapshot(nodes, links)
}

func linkR1R2() gns3.Link {
	return gns3.Link{
		LinkID: "L1",
		Nodes: []gns3.LinkEndpoint{
			{NodeID: "n-r1", AdapterNumber: 0, PortNumber: 0},
			{NodeID: "n-r2", AdapterNumber: 0, PortNumber: 0},
		},
	}
}

func TestPortUsageMirrorsLinks(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot(linkR1R2())

	assert.True(t, s.used("n-r1", 0, 0))
	assert.True(t, s.used("n-r2", 0, 0))
	assert.False(t, s.used("n-r1", 0, 1))
	assert.False(t, s.used("n-r2", 0, 1))
}

func TestResolveAdapterByName(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()

	adapter, port, name, err := s.ResolveAdapter("R1", "eth1", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, adapter)
	assert.Equal(t, 1, port)
	assert.Equal(t, "eth1", name)

	adapter, port, name, err = s.ResolveAdapter("R1", "GigabitEthernet0/0", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, adapter)
	assert.Equal(t, 0, port)
	assert.Equal(t, "GigabitEthernet0/0", name)
}

func TestResolveAdapterNameIsCaseSensitive(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()

	_, _, _, err := s.ResolveAdapter("R1", "ETH0", 0)
	assert.Equal(t, mcperr.CodeInvalidAdapter, mcperr.CodeOf(err))
	assert.Contains(t, err.Error(), "case-sensitive")
}

func TestResolveAdapterUnknownNameListsAvailable(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()

	_, _, _, err := s.ResolveAdapter("R1", "bogus", 0)
	require.Error(t, err)

	var e *mcperr.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Details, "eth0")
	assert.Contains(t, e.Details, "eth1")
	assert.Contains(t, e.Details, "GigabitEthernet0/0")
}

func TestResolveAdapterTruncatesLongPortList(t *testing.T) {
	t.Parallel()

	ports := make([]gns3.Port, 0, 48)
	for i := 0; i < 48; i++ {
		ports = append(ports, gns3.Port{AdapterNumber: 0, PortNumber: i, Name: fmt.Sprintf("Ethernet%d", i)})
	}
	s := BuildSnapshot([]gns3.Node{{NodeID: "n-big", Name: "BIG", Ports: ports}}, nil)

	_, _, _, err := s.ResolveAdapter("BIG", "nope", 0)
	var e *mcperr.Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Details, "(48 total)")
	assert.NotContains(t, e.Details, "Ethernet47", "list should stop before naming every port")
}

func TestResolveAdapterNoPortInfo(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()

	_, _, _, err := s.ResolveAdapter("SW1", "eth0", 0)
	assert.Equal(t, mcperr.CodeInvalidAdapter, mcperr.CodeOf(err))
	assert.Contains(t, err.Error(), "no port info")
}

func TestResolveAdapterNumericBypass(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()

	// A numeric adapter takes the caller's port number as-is; the name comes
	// from the published list when one matches.
	adapter, port, name, err := s.ResolveAdapter("R1", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, adapter)
	assert.Equal(t, 1, port)
	assert.Equal(t, "eth1", name)

	// JSON decodes numbers as float64.
	adapter, port, _, err = s.ResolveAdapter("R1", float64(1), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, adapter)
	assert.Equal(t, 0, port)

	// Off the published list the name is synthesized; numbers never fail
	// resolution on nodes without port info.
	_, _, name, err = s.ResolveAdapter("SW1", 3, 7)
	require.NoError(t, err)
	assert.Equal(t, "adapter3/port7", name)

	_, _, _, err = s.ResolveAdapter("R1", -1, 0)
	assert.Equal(t, mcperr.CodeInvalidAdapter, mcperr.CodeOf(err))
}

func TestValidateBatchConnect(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()
	plan, err := s.ValidateBatch([]Operation{
		{Action: ActionConnect, NodeA: "R1", AdapterA: "eth0", NodeB: "R2", AdapterB: "eth0"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Len())
}

func TestValidateBatchRejectsSelfLink(t *testing.T) {
	t.Parallel()

	// A link joins two distinct nodes; a node cannot be cabled to itself,
	// not even on two different ports.
	s := twoRouterSnapshot()
	for _, ops := range [][]Operation{
		{{Action: ActionConnect, NodeA: "R1", AdapterA: "eth0", NodeB: "R1", AdapterB: "eth0"}},
		{{Action: ActionConnect, NodeA: "R1", AdapterA: "eth0", NodeB: "R1", AdapterB: "eth1"}},
	} {
		_, err := s.ValidateBatch(ops)
		assert.Equal(t, mcperr.CodeInvalidParameter, mcperr.CodeOf(err))

		var e *mcperr.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, 0, e.Context["operation_index"])
	}
}

func TestValidateBatchPortInUse(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot(linkR1R2())
	_, err := s.ValidateBatch([]Operation{
		{Action: ActionConnect, NodeA: "R1", AdapterA: 0, PortA: 0, NodeB: "R2", AdapterB: 0, PortB: 0},
	})
	assert.Equal(t, mcperr.CodePortInUse, mcperr.CodeOf(err))
}

func TestValidateBatchDisconnectThenReconnect(t *testing.T) {
	t.Parallel()

	// Disconnecting a link frees its ports for later operations in the same
	// batch, so tearing down and rebuilding the same link validates.
	s := twoRouterSnapshot(linkR1R2())
	plan, err := s.ValidateBatch([]Operation{
		{Action: ActionDisconnect, LinkID: "L1"},
		{Action: ActionConnect, NodeA: "R1", AdapterA: 0, PortA: 0, NodeB: "R2", AdapterB: 0, PortB: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Len())
}

func TestValidateBatchDoubleConnectSamePort(t *testing.T) {
	t.Parallel()

	// The first connect claims R1 eth0; the second must fail even though the
	// snapshot showed the port free.
	s := twoRouterSnapshot()
	_, err := s.ValidateBatch([]Operation{
		{Action: ActionConnect, NodeA: "R1", AdapterA: "eth0", NodeB: "R2", AdapterB: "eth0"},
		{Action: ActionConnect, NodeA: "R1", AdapterA: "eth0", NodeB: "R2", AdapterB: "eth1"},
	})
	assert.Equal(t, mcperr.CodePortInUse, mcperr.CodeOf(err))

	var e *mcperr.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Context["operation_index"])
}

func TestValidateBatchUnknownNode(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()
	_, err := s.ValidateBatch([]Operation{
		{Action: ActionConnect, NodeA: "R9", AdapterA: 0, NodeB: "R2", AdapterB: 0},
	})
	assert.Equal(t, mcperr.CodeNodeNotFound, mcperr.CodeOf(err))
}

func TestValidateBatchPortNotPublished(t *testing.T) {
	t.Parallel()

	// R2 publishes adapter 0 ports 0-1 only; adapter 5 is off the list.
	s := twoRouterSnapshot()
	_, err := s.ValidateBatch([]Operation{
		{Action: ActionConnect, NodeA: "R1", AdapterA: 0, PortA: 0, NodeB: "R2", AdapterB: 5, PortB: 0},
	})
	assert.Equal(t, mcperr.CodeInvalidPort, mcperr.CodeOf(err))
}

func TestValidateBatchUnknownLink(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()
	_, err := s.ValidateBatch([]Operation{{Action: ActionDisconnect, LinkID: "L404"}})
	assert.Equal(t, mcperr.CodeLinkNotFound, mcperr.CodeOf(err))
}

func TestValidateBatchMissingLinkID(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()
	_, err := s.ValidateBatch([]Operation{{Action: ActionDisconnect}})
	assert.Equal(t, mcperr.CodeMissingParameter, mcperr.CodeOf(err))
}

func TestValidateBatchUnknownAction(t *testing.T) {
	t.Parallel()

	s := twoRouterSnapshot()
	_, err := s.ValidateBatch([]Operation{{Action: "toggle"}})
	assert.Equal(t, mcperr.CodeInvalidParameter, mcperr.CodeOf(err))
}

func TestValidateBatchFirstErrorWins(t *testing.T) {
	t.Parallel()

	// A bad op anywhere fails the whole batch; nothing gets planned.
	s := twoRouterSnapshot(linkR1R2())
	_, err := s.ValidateBatch([]Operation{
		{Action: ActionDisconnect, LinkID: "L1"},
		{Action: ActionConnect, NodeA: "R1", AdapterA: "ETH0", NodeB: "R2", AdapterB: "eth1"},
	})
	assert.Equal(t, mcperr.CodeInvalidAdapter, mcperr.CodeOf(err))
}
