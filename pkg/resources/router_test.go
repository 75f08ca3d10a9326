// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package resources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/gns3-labs/gns3-mcp/pkg/console"
	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
	"github.com/gns3-labs/gns3-mcp/pkg/gns3"
	"github.com/gns3-labs/gns3-mcp/pkg/sshproxy"
)

type fakeCatalogue struct {
	projects  []gns3.Project
	nodes     []gns3.Node
	links     []gns3.Link
	templates []gns3.Template
	readme    string
}

func (f *fakeCatalogue) ListProjects(context.Context) ([]gns3.Project, error) {
	return f.projects, nil
}

func (f *fakeCatalogue) GetProject(_ context.Context, projectID string) (gns3.Project, error) {
	for _, p := range f.projects {
		if p.ProjectID == projectID {
			return p, nil
		}
	}
	return gns3.Project{}, mcperr.NewProjectNotFound("project " + projectID + " not found")
}

func (f *fakeCatalogue) ListNodes(context.Context, string) ([]gns3.Node, error) {
	return f.nodes, nil
}

func (f *fakeCatalogue) GetNode(_ context.Context, _, nodeID string) (gns3.Node, error) {
	for _, n := range f.nodes {
		if n.NodeID == nodeID {
			return n, nil
		}
	}
	return gns3.Node{}, mcperr.NewNodeNotFound("node " + nodeID + " not found")
}

func (f *fakeCatalogue) ListLinks(context.Context, string) ([]gns3.Link, error) {
	return f.links, nil
}

func (f *fakeCatalogue) ListDrawings(context.Context, string) ([]gns3.Drawing, error) {
	return nil, nil
}

func (f *fakeCatalogue) ListSnapshots(context.Context, string) ([]gns3.Snapshot, error) {
	return []gns3.Snapshot{{SnapshotID: "s1", Name: "before-change"}}, nil
}

func (f *fakeCatalogue) ListTemplates(context.Context) ([]gns3.Template, error) {
	return f.templates, nil
}

func (f *fakeCatalogue) GetTemplate(_ context.Context, templateID string) (gns3.Template, error) {
	for _, tpl := range f.templates {
		if tpl.TemplateID == templateID {
			return tpl, nil
		}
	}
	return gns3.Template{}, mcperr.New(mcperr.CodeTemplateNotFound, "template not found", nil)
}

func (f *fakeCatalogue) ReadProjectFile(context.Context, string, string) (string, error) {
	return f.readme, nil
}

type fakeConsoles struct {
	infos []console.Info
}

func (f *fakeConsoles) List() []console.Info { return f.infos }

func (f *fakeConsoles) GetByNode(nodeName string) (console.Info, error) {
	for _, info := range f.infos {
		if info.NodeName == nodeName {
			return info, nil
		}
	}
	return console.Info{}, mcperr.NewConsoleDisconnected("no console session for node " + nodeName)
}

func testRouter(t *testing.T) (*Router, *fakeCatalogue) {
	t.Helper()
	cat := &fakeCatalogue{
		projects: []gns3.Project{{ProjectID: "p1", Name: "Test LAB", Status: "opened"}},
		nodes: []gns3.Node{
			{
				NodeID: "n1", Name: "R1", NodeType: "qemu", Status: "started", Console: 5001,
				Ports: []gns3.Port{{AdapterNumber: 0, PortNumber: 0, Name: "eth0"}},
			},
			{NodeID: "n2", Name: "R2", NodeType: "qemu", Status: "stopped", Console: 5002},
		},
		links: []gns3.Link{{
			LinkID: "l1",
			Nodes: []gns3.LinkEndpoint{
				{NodeID: "n1", AdapterNumber: 0, PortNumber: 0},
				{NodeID: "n2", AdapterNumber: 0, PortNumber: 0},
			},
		}},
		templates: []gns3.Template{{TemplateID: "t1", Name: "alpine", TemplateType: "docker"}},
		readme:    "lab notes",
	}
	consoles := &fakeConsoles{infos: []console.Info{{SessionID: "c1", NodeName: "R1", Connected: true}}}
	return NewRouter(cat, consoles, sshproxy.NewRouter("http://127.0.0.1:1")), cat
}

func TestResolveProjectURIs(t *testing.T) {
	t.Parallel()

	r, _ := testRouter(t)
	ctx := context.Background()

	out, err := r.Resolve(ctx, "projects://")
	require.NoError(t, err)
	assert.Equal(t, "Test LAB", gjson.Get(out, "0.name").String())

	out, err = r.Resolve(ctx, "projects://p1")
	require.NoError(t, err)
	assert.Equal(t, "opened", gjson.Get(out, "status").String())

	out, err = r.Resolve(ctx, "projects://p1/nodes/")
	require.NoError(t, err)
	assert.Equal(t, int64(2), gjson.Get(out, "#").Int())
	assert.Equal(t, "R1", gjson.Get(out, "0.name").String())
	assert.False(t, gjson.Get(out, "0.ports").Exists(), "listings use the summary shape")

	out, err = r.Resolve(ctx, "projects://p1/nodes/n1")
	require.NoError(t, err)
	assert.Equal(t, "eth0", gjson.Get(out, "ports.0.name").String())

	out, err = r.Resolve(ctx, "projects://p1/readme")
	require.NoError(t, err)
	assert.Equal(t, "lab notes", gjson.Get(out, "readme").String())

	out, err = r.Resolve(ctx, "projects://p1/snapshots/")
	require.NoError(t, err)
	assert.Equal(t, "before-change", gjson.Get(out, "0.name").String())
}

func TestResolveTopologyReport(t *testing.T) {
	t.Parallel()

	r, _ := testRouter(t)
	out, err := r.Resolve(context.Background(), "projects://p1/topology")
	require.NoError(t, err)

	assert.Equal(t, int64(2), gjson.Get(out, "nodes.#").Int())
	assert.Equal(t, "R1", gjson.Get(out, "links.0.node_a").String())
	assert.Equal(t, "R2", gjson.Get(out, "links.0.node_b").String())
	assert.Equal(t, "0/0", gjson.Get(out, "links.0.port_a").String())
}

func TestResolveTemplates(t *testing.T) {
	t.Parallel()

	r, _ := testRouter(t)
	ctx := context.Background()

	out, err := r.Resolve(ctx, "templates://")
	require.NoError(t, err)
	assert.Equal(t, "alpine", gjson.Get(out, "0.name").String())

	out, err = r.Resolve(ctx, "templates://t1")
	require.NoError(t, err)
	assert.Equal(t, "alpine", gjson.Get(out, "template.name").String())
	assert.Contains(t, gjson.Get(out, "usage").String(), "create_node")
}

func TestResolveConsoleSessions(t *testing.T) {
	t.Parallel()

	r, _ := testRouter(t)
	ctx := context.Background()

	out, err := r.Resolve(ctx, "sessions://console")
	require.NoError(t, err)
	assert.Equal(t, "R1", gjson.Get(out, "0.node_name").String())

	out, err = r.Resolve(ctx, "sessions://console/R1")
	require.NoError(t, err)
	assert.Equal(t, "c1", gjson.Get(out, "session_id").String())

	_, err = r.Resolve(ctx, "sessions://console/R404")
	assert.Equal(t, mcperr.CodeConsoleDisconnected, mcperr.CodeOf(err))
}

func TestResolveSSHDelegatesToSidecar(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/ssh/sessions":
			_, _ = w.Write([]byte(`{"sessions":[{"node":"R1"}]}`))
		case "/ssh/status/R1":
			_, _ = w.Write([]byte(`{"node":"R1","connected":true}`))
		case "/ssh/buffer/R1":
			_, _ = w.Write([]byte(`{"buffer":"R1# "}`))
		case "/proxy/registry":
			_, _ = w.Write([]byte(`{"proxies":[{"proxy_id":"lab1","url":"http://10.0.0.9:8022"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	r := NewRouter(nil, &fakeConsoles{}, sshproxy.NewRouter(ts.URL))
	ctx := context.Background()

	out, err := r.Resolve(ctx, "sessions://ssh")
	require.NoError(t, err)
	assert.Equal(t, "R1", gjson.Get(out, "sessions.0.node").String())

	out, err = r.Resolve(ctx, "sessions://ssh/R1")
	require.NoError(t, err)
	assert.True(t, gjson.Get(out, "connected").Bool())

	out, err = r.Resolve(ctx, "sessions://ssh/R1/buffer")
	require.NoError(t, err)
	assert.Equal(t, "R1# ", gjson.Get(out, "buffer").String())

	out, err = r.Resolve(ctx, "proxies://")
	require.NoError(t, err)
	assert.Equal(t, "lab1", gjson.Get(out, "registry.proxies.0.proxy_id").String())

	out, err = r.Resolve(ctx, "proxies://lab1")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.9:8022", gjson.Get(out, "url").String())
}

func TestResolveUnknownURI(t *testing.T) {
	t.Parallel()

	r, _ := testRouter(t)
	for _, uri := range []string{
		"bogus://",
		"projects://p1/unknown",
		"projects://p1/nodes/n1/extra/deep",
		"sessions://",
		"sessions://ssh/R1/unknown",
		"not-a-uri",
	} {
		_, err := r.Resolve(context.Background(), uri)
		require.Error(t, err, uri)
		assert.Equal(t, mcperr.CodeInvalidParameter, mcperr.CodeOf(err), uri)

		var e *mcperr.Error
		require.ErrorAs(t, err, &e, uri)
		assert.Contains(t, e.Details, "projects://{project_id}/topology", uri)
	}
}
