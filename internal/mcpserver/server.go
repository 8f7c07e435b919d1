// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Mosaic gallery tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mosaic/internal/apperr"
	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/index"
	"github.com/starford/mosaic/internal/library"
)

const rulesURI = "mosaic://layout-rules"

// Server wraps the MCP server with Mosaic tools.
type Server struct {
	mcp  *server.MCPServer
	lib  *library.Service
	geom gallery.Geometry
	mode gallery.Mode
}

// New creates a new MCP server with all Mosaic tools registered. geom and
// mode are the defaults for arguments a caller leaves out.
func New(lib *library.Service, geom gallery.Geometry, mode gallery.Mode) *Server {
	if mode == "" {
		mode = gallery.ModeLoose
	}
	s := &Server{lib: lib, geom: geom, mode: mode}

	s.mcp = server.NewMCPServer(
		"Mosaic",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_images",
		mcp.WithDescription("List indexed images with their pixel dimensions and asset URLs."),
		mcp.WithString("query", mcp.Description("Optional substring the image path must contain")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of images (default 100)")),
	), s.listImages)

	s.mcp.AddTool(mcp.NewTool("get_image",
		mcp.WithDescription("Get one indexed image by its library-relative path."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the image (e.g. trips/beach.jpg)")),
	), s.getImage)

	s.mcp.AddTool(mcp.NewTool("pack_layout",
		mcp.WithDescription("Lay out the whole library for a container width. "+
			"Loose mode packs justified rows, grid mode uses uniform cells. "+
			"Read "+rulesURI+" for the exact rules."),
		mcp.WithNumber("width", mcp.Required(), mcp.Description("Container width in pixels")),
		mcp.WithString("mode", mcp.Description("grid or loose"), mcp.Enum(string(gallery.ModeGrid), string(gallery.ModeLoose))),
		mcp.WithNumber("row_height", mcp.Description("Target row height for loose mode")),
		mcp.WithNumber("gap", mcp.Description("Gap between tiles in pixels")),
		mcp.WithNumber("cell", mcp.Description("Grid cell size in pixels")),
	), s.packLayout)

	s.mcp.AddTool(mcp.NewTool("visible_rows",
		mcp.WithDescription("Compute the half-open range of fixed-height rows intersecting a viewport."),
		mcp.WithNumber("scroll", mcp.Required(), mcp.Description("Scroll offset in pixels")),
		mcp.WithNumber("viewport_height", mcp.Required(), mcp.Description("Viewport height in pixels")),
		mcp.WithNumber("row_height", mcp.Required(), mcp.Description("Height of one row in pixels")),
		mcp.WithNumber("total", mcp.Required(), mcp.Description("Total number of rows (whole number)")),
	), s.visibleRows)

	s.mcp.AddTool(mcp.NewTool("import_image",
		mcp.WithDescription("Download an image from an http(s) URL or a base64 data URI and add it to the library."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
		mcp.WithString("dir", mcp.Description("Optional library folder to place the image in")),
	), s.importImage)

	s.mcp.AddResource(
		mcp.NewResource(rulesURI, "Gallery Layout Rules",
			mcp.WithResourceDescription("How Mosaic packs images into rows and windows them for rendering."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRulesResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listImages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.lib.ListImages(ctx, index.ListQuery{
		Query: req.GetString("query", ""),
		Limit: req.GetInt("limit", 100),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if items == nil {
		items = []library.Image{}
	}
	return jsonResult(map[string]any{"images": items, "total": total})
}

func (s *Server) getImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	img, err := s.lib.GetImage(ctx, path)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(img)
}

type packedTile struct {
	Path  string  `json:"path"`
	Width float64 `json:"width"`
}

type packedRow struct {
	Height float64      `json:"height"`
	Filled bool         `json:"filled"`
	Tiles  []packedTile `json:"tiles"`
}

func (s *Server) packLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	width, err := req.RequireFloat("width")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := gallery.ParseMode(req.GetString("mode", string(s.mode)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	geom := gallery.Geometry{
		ContainerWidth:  width,
		TargetRowHeight: req.GetFloat("row_height", s.geom.TargetRowHeight),
		Gap:             req.GetFloat("gap", s.geom.Gap),
		GridCell:        req.GetFloat("cell", s.geom.GridCell),
	}

	l, err := s.lib.Layout(ctx, mode, geom)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	rows := make([]packedRow, len(l.Rows))
	for i, r := range l.Rows {
		rows[i] = packedRow{Height: r.Height, Filled: r.Filled, Tiles: make([]packedTile, len(r.Tiles))}
		for j, t := range r.Tiles {
			rows[i].Tiles[j] = packedTile{Path: t.Image.Path, Width: t.Width}
		}
	}
	skipped := make([]string, len(l.Skipped))
	for i, d := range l.Skipped {
		skipped[i] = d.Path
	}
	return jsonResult(map[string]any{
		"mode":            l.Mode,
		"container_width": l.ContainerWidth,
		"height":          l.Height,
		"rows":            rows,
		"skipped":         skipped,
	})
}

// maxRows bounds the total accepted by visible_rows.
const maxRows = math.MaxInt32

func (s *Server) visibleRows(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args [4]float64
	for i, name := range []string{"scroll", "viewport_height", "row_height", "total"} {
		v, err := req.RequireFloat(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		args[i] = v
	}
	total := args[3]
	if total < 0 || total > maxRows || total != math.Trunc(total) {
		return mcp.NewToolResultError(fmt.Sprintf("total must be a whole number between 0 and %d", maxRows)), nil
	}
	r := gallery.VisibleRows(args[0], args[1], args[2], int(total))
	return jsonResult(r)
}

func (s *Server) readRulesResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      rulesURI,
			MIMEType: "text/markdown",
			Text:     LayoutRules,
		},
	}, nil
}
