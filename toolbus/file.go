package toolbus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const maxFileSize = 10 * 1024 * 1024 // 10MB

// resolvePath validates a tool-supplied path and resolves it under the
// run's working directory. Absolute paths and parent-directory traversal
// segments are rejected for any working directory.
func resolvePath(workdir, path string) (string, error) {
	if workdir == "" {
		return "", fmt.Errorf("no working directory bound")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("path not allowed: must be relative, got %q", path)
	}
	clean := filepath.Clean(path)
	for _, seg := range strings.Split(filepath.ToSlash(clean), "/") {
		if seg == ".." {
			return "", fmt.Errorf("path not allowed: %q escapes the working directory", path)
		}
	}
	return filepath.Join(workdir, clean), nil
}

func readFileTool() Tool {
	return Tool{
		Name:        "read_file",
		Description: "Read a file relative to the run's working directory",
		Invoke: func(_ context.Context, rt *Runtime, arg string) (string, error) {
			full, err := resolvePath(rt.Workdir, strings.TrimSpace(arg))
			if err != nil {
				return "", err
			}
			info, err := os.Stat(full)
			if err != nil {
				return "", err
			}
			if info.Size() > maxFileSize {
				return "", fmt.Errorf("file size %d exceeds maximum %d", info.Size(), maxFileSize)
			}
			data, err := os.ReadFile(full)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	}
}

// writeFilePayload is the JSON form of the write_file argument. The
// "path|text" shorthand is also accepted.
type writeFilePayload struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

func parseWritePayload(arg string) (writeFilePayload, error) {
	var p writeFilePayload
	if strings.HasPrefix(strings.TrimSpace(arg), "{") {
		if err := json.Unmarshal([]byte(arg), &p); err != nil {
			return p, fmt.Errorf("invalid write_file payload: %w", err)
		}
		return p, nil
	}
	path, text, ok := strings.Cut(arg, "|")
	if !ok {
		return p, fmt.Errorf(`invalid write_file payload: want {"path":...,"text":...} or "path|text"`)
	}
	p.Path = strings.TrimSpace(path)
	p.Text = text
	return p, nil
}

func writeFileTool() Tool {
	return Tool{
		Name:        "write_file",
		Description: `Write text to a file; argument is {"path":...,"text":...} or "path|text"`,
		Invoke: func(_ context.Context, rt *Runtime, arg string) (string, error) {
			p, err := parseWritePayload(arg)
			if err != nil {
				return "", err
			}
			if int64(len(p.Text)) > maxFileSize {
				return "", fmt.Errorf("content size %d exceeds maximum %d", len(p.Text), maxFileSize)
			}
			full, err := resolvePath(rt.Workdir, p.Path)
			if err != nil {
				return "", err
			}
			if dir := filepath.Dir(full); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return "", err
				}
			}
			if err := os.WriteFile(full, []byte(p.Text), 0o644); err != nil {
				return "", err
			}
			return fmt.Sprintf("wrote %d bytes to %s", len(p.Text), p.Path), nil
		},
	}
}

func listDirTool() Tool {
	return Tool{
		Name:        "list_dir",
		Description: "List a directory relative to the run's working directory",
		Invoke: func(_ context.Context, rt *Runtime, arg string) (string, error) {
			path := strings.TrimSpace(arg)
			if path == "" {
				path = "."
			}
			full, err := resolvePath(rt.Workdir, path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(full)
			if err != nil {
				return "", err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			sort.Strings(names)
			return strings.Join(names, "\n"), nil
		},
	}
}
