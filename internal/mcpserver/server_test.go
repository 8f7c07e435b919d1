package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/library"
	"github.com/starford/mosaic/internal/storage"
	"github.com/starford/mosaic/internal/testutil"
)

func testServer(t *testing.T) (*Server, *storage.FS) {
	t.Helper()
	_, store := testutil.TestLibrary(t)
	db := testutil.TestDB(t)
	lib := library.NewService(store, db, library.Options{AssetBaseURL: "http://asset.localhost"}, testutil.Logger())
	return New(lib, gallery.Geometry{TargetRowHeight: 100, GridCell: 100}, gallery.ModeLoose), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so handlers are called directly.
	var result *mcp.CallToolResult
	var err error
	switch name {
	case "list_images":
		result, err = srv.listImages(ctx, req)
	case "get_image":
		result, err = srv.getImage(ctx, req)
	case "pack_layout":
		result, err = srv.packLayout(ctx, req)
	case "visible_rows":
		result, err = srv.visibleRows(ctx, req)
	case "import_image":
		result, err = srv.importImage(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func dataURI(t *testing.T, w, h int) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(testutil.PNG(t, w, h))
}

func TestImportAndGetImage(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "import_image", map[string]any{
		"url":      dataURI(t, 30, 10),
		"filename": "wide shot.png",
		"dir":      "trips",
	})
	if r.IsError {
		t.Fatalf("import failed: %s", resultText(r))
	}
	var res importResult
	if err := json.Unmarshal([]byte(resultText(r)), &res); err != nil {
		t.Fatal(err)
	}
	if res.Path != "trips/wide_shot.png" || res.Width != 30 || res.URL != "http://asset.localhost/trips/wide_shot.png" {
		t.Errorf("result = %+v", res)
	}

	r = callTool(t, srv, "get_image", map[string]any{"path": "trips/wide_shot.png"})
	if r.IsError || !strings.Contains(resultText(r), `"height": 10`) {
		t.Errorf("get_image = %s", resultText(r))
	}

	r = callTool(t, srv, "import_image", map[string]any{"url": dataURI(t, 1, 1), "filename": "wide shot.png", "dir": "trips"})
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("duplicate import = %s", resultText(r))
	}
}

func TestImportImage_Rejected(t *testing.T) {
	srv, _ := testServer(t)
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(testutil.PNG(t, 2, 2))
	}))
	defer remote.Close()

	tests := map[string]string{
		"loopback":  remote.URL + "/a.png",
		"scheme":    "ftp://example.com/a.png",
		"text mime": "data:text/plain;base64,aGk=",
		"plain uri": "data:image/png,rawbytes",
		"not image": "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("nope")),
	}
	for name, u := range tests {
		t.Run(name, func(t *testing.T) {
			r := callTool(t, srv, "import_image", map[string]any{"url": u})
			if !r.IsError {
				t.Errorf("expected error, got %s", resultText(r))
			}
		})
	}
}

func TestGetImageMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_image", map[string]any{"path": "nope.png"})
	if !r.IsError {
		t.Error("expected error for missing image")
	}
}

func TestListImages(t *testing.T) {
	srv, store := testServer(t)
	_ = store.Write("a.png", testutil.PNG(t, 2, 2))
	_ = store.Write("b.png", testutil.PNG(t, 2, 2))
	if _, err := srv.lib.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}

	r := callTool(t, srv, "list_images", map[string]any{"query": "b"})
	var out struct {
		Images []library.Image `json:"images"`
		Total  int             `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatal(err)
	}
	if out.Total != 1 || out.Images[0].Path != "b.png" {
		t.Errorf("list = %+v", out)
	}
}

func TestPackLayout(t *testing.T) {
	srv, _ := testServer(t)
	for _, dims := range [][2]int{{200, 100}, {100, 100}, {100, 100}} {
		callTool(t, srv, "import_image", map[string]any{"url": dataURI(t, dims[0], dims[1])})
	}

	r := callTool(t, srv, "pack_layout", map[string]any{"width": 300.0})
	var out struct {
		Mode string      `json:"mode"`
		Rows []packedRow `json:"rows"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &out); err != nil {
		t.Fatalf("%v: %s", err, resultText(r))
	}
	if out.Mode != "loose" || len(out.Rows) != 2 || !out.Rows[0].Filled {
		t.Errorf("loose = %+v", out)
	}

	r = callTool(t, srv, "pack_layout", map[string]any{"width": 300.0, "mode": "grid"})
	_ = json.Unmarshal([]byte(resultText(r)), &out)
	if len(out.Rows) != 1 || len(out.Rows[0].Tiles) != 3 {
		t.Errorf("grid = %+v", out)
	}

	if r := callTool(t, srv, "pack_layout", map[string]any{"mode": "grid"}); !r.IsError {
		t.Error("missing width should fail")
	}
}

func TestVisibleRows(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "visible_rows", map[string]any{
		"scroll":          450.0,
		"viewport_height": 300.0,
		"row_height":      100.0,
		"total":           6.0,
	})
	var got gallery.VisibleRange
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatal(err)
	}
	if got != (gallery.VisibleRange{Start: 4, End: 6}) {
		t.Errorf("range = %+v", got)
	}
}

func TestVisibleRows_RejectsBadTotal(t *testing.T) {
	srv, _ := testServer(t)
	for _, total := range []float64{2.5, -1, 1e19} {
		r := callTool(t, srv, "visible_rows", map[string]any{
			"scroll":          0.0,
			"viewport_height": 300.0,
			"row_height":      100.0,
			"total":           total,
		})
		if !r.IsError {
			t.Errorf("total %v accepted: %s", total, resultText(r))
		}
	}
}

func TestRulesResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readRulesResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc := contents[0].(mcp.TextResourceContents); tc.URI != rulesURI || !strings.Contains(tc.Text, "Grid mode") {
		t.Errorf("resource = %+v", tc)
	}
}
