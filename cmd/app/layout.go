package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/starford/mosaic/internal/gallery"
	"github.com/starford/mosaic/internal/preview"
	"github.com/starford/mosaic/internal/probe"
	"github.com/starford/mosaic/internal/storage"
)

func layoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "layout",
		Usage: "Print the layout of an image folder without starting the server",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "width", Aliases: []string{"w"}, Usage: "Container width in pixels", Value: 1200},
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Image folder (defaults to library.path)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "grid or loose (defaults to layout.default_mode)"},
			&cli.FloatFlag{Name: "row-height", Usage: "Target row height (defaults to layout.target_row_height)"},
			&cli.FloatFlag{Name: "gap", Usage: "Gap between tiles (defaults to layout.gap)", Value: -1},
			&cli.IntFlag{Name: "cols", Usage: "Terminal columns the container width maps to", Value: 100},
		},
		Action: printLayout,
	}
}

func printLayout(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))

	dir := cmd.String("dir")
	if dir == "" {
		dir = cfg.Library.Path
	}
	modeName := cmd.String("mode")
	if modeName == "" {
		modeName = cfg.Layout.DefaultMode
	}
	mode, err := gallery.ParseMode(modeName)
	if err != nil {
		return err
	}

	geom := cfg.Layout.Geometry(cmd.Float("width"))
	if h := cmd.Float("row-height"); h > 0 {
		geom.TargetRowHeight = h
	}
	if g := cmd.Float("gap"); g >= 0 {
		geom.Gap = g
	}

	store, err := storage.NewFS(dir, cfg.Library.Extensions...)
	if err != nil {
		return err
	}
	files, err := store.List("")
	if err != nil {
		return err
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	dims, err := probe.All(ctx, paths, cfg.Layout.ProbeConcurrency, func(p string) (io.ReadCloser, error) {
		return store.Open(p)
	})
	if err != nil {
		return err
	}

	images := make([]gallery.ImageRecord, len(paths))
	for i, p := range paths {
		d := dims[p]
		if d.Err != nil {
			logger.Warn("probe failed", slog.String("path", p), slog.String("error", d.Err.Error()))
		}
		images[i] = gallery.ImageRecord{Path: p, Width: float64(d.Width), Height: float64(d.Height)}
	}

	l := gallery.Build(mode, images, geom)
	_, err = fmt.Fprint(os.Stdout, preview.Render(l, int(cmd.Int("cols"))))
	return err
}
