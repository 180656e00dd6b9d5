package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tandem-cli/tandem/internal/toolexec"
	"github.com/tandem-cli/tandem/pkg/models"
)

// maxReadFileBytes caps read_file output so a tool result stays prompt-sized.
const maxReadFileBytes = 64 * 1024

// registerBuiltinTools fills the catalog with the tools plans can reference.
func registerBuiltinTools(catalog *toolexec.Catalog) {
	catalog.Register(toolexec.Definition{
		Name:    "workspace_scan",
		Timeout: 10 * time.Second,
		Execute: workspaceScan,
	})
	catalog.Register(toolexec.Definition{
		Name:    "read_file",
		Timeout: 5 * time.Second,
		Execute: readFile,
	})
	catalog.Register(toolexec.Definition{
		Name: "current_time",
		Execute: func(ctx context.Context, params map[string]any) (any, error) {
			return time.Now().Format(time.RFC3339), nil
		},
	})
}

// workspaceScan summarizes the working directory: file count per extension
// plus total size. An optional "path" parameter overrides the root.
func workspaceScan(ctx context.Context, params map[string]any) (any, error) {
	root := "."
	if p, ok := params["path"].(string); ok && p != "" {
		root = p
	}

	byExt := make(map[string]int)
	var files int
	var totalBytes int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		name := d.Name()
		if d.IsDir() {
			if name == ".git" || name == "node_modules" || strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		files++
		ext := filepath.Ext(name)
		if ext == "" {
			ext = "(none)"
		}
		byExt[ext]++
		if info, err := d.Info(); err == nil {
			totalBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", models.ErrExecution, root, err)
	}

	exts := make([]string, 0, len(byExt))
	for ext := range byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	var b strings.Builder
	fmt.Fprintf(&b, "%d files, %d bytes", files, totalBytes)
	for _, ext := range exts {
		fmt.Fprintf(&b, "\n%s: %d", ext, byExt[ext])
	}
	return b.String(), nil
}

// readFile returns the contents of one file, truncated to a safe size.
func readFile(ctx context.Context, params map[string]any) (any, error) {
	path, _ := params["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("%w: read_file requires a path parameter", models.ErrValidation)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", models.ErrExecution, path, err)
	}
	if len(data) > maxReadFileBytes {
		return string(data[:maxReadFileBytes]) + "\n... (truncated)", nil
	}
	return string(data), nil
}
