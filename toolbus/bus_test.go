package toolbus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBus_ListTools(t *testing.T) {
	b := NewLocalBus()
	tools := b.ListTools()

	for _, name := range []string{"calculator", "read_file", "write_file", "list_dir", "web_search"} {
		assert.Contains(t, tools, name)
	}
}

func TestLocalBus_AllowListFiltersTools(t *testing.T) {
	b := NewLocalBus(WithAllow("calculator"))

	assert.Equal(t, []string{"calculator"}, b.Names())

	res := b.Call(context.Background(), "write_file", `{"path":"x.txt","text":"hi"}`)
	assert.False(t, res.OK)
	assert.Equal(t, "tool not allowed: write_file", res.Error)
}

func TestLocalBus_UnknownTool(t *testing.T) {
	b := NewLocalBus()
	res := b.Call(context.Background(), "teleport", "home")
	assert.False(t, res.OK)
	assert.Equal(t, "tool not found: teleport", res.Error)
}

func TestLocalBus_CalculatorCall(t *testing.T) {
	b := NewLocalBus()
	res := b.Call(context.Background(), "calculator", "12*7")

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "84", res.Output)
	assert.GreaterOrEqual(t, res.Latency.Nanoseconds(), int64(0))
}

func TestLocalBus_FileRoundtrip(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBus(WithWorkdir(dir))
	ctx := context.Background()

	res := b.Call(ctx, "write_file", `{"path":"notes/result.txt","text":"84"}`)
	require.True(t, res.OK, res.Error)

	res = b.Call(ctx, "read_file", "notes/result.txt")
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "84", res.Output)

	res = b.Call(ctx, "list_dir", "notes")
	require.True(t, res.OK, res.Error)
	assert.Equal(t, "result.txt", res.Output)
}

func TestLocalBus_WriteFilePipeShorthand(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBus(WithWorkdir(dir))

	res := b.Call(context.Background(), "write_file", "out.txt|hello world")
	require.True(t, res.OK, res.Error)

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestLocalBus_RejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBus(WithWorkdir(dir))
	ctx := context.Background()

	tests := []struct {
		name string
		tool string
		arg  string
	}{
		{"absolute read", "read_file", "/etc/passwd"},
		{"traversal read", "read_file", "../secret.txt"},
		{"nested traversal", "read_file", "a/../../secret.txt"},
		{"absolute write", "write_file", `{"path":"/tmp/evil.txt","text":"x"}`},
		{"traversal write", "write_file", "../evil.txt|x"},
		{"traversal list", "list_dir", ".."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := b.Call(ctx, tt.tool, tt.arg)
			assert.False(t, res.OK)
			assert.Contains(t, res.Error, "not allowed")
		})
	}
}

func TestLocalBus_SetWorkdirRebinds(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	b := NewLocalBus(WithWorkdir(first))
	ctx := context.Background()

	require.True(t, b.Call(ctx, "write_file", "a.txt|one").OK)

	b.SetWorkdir(second)
	require.True(t, b.Call(ctx, "write_file", "a.txt|two").OK)

	data, err := os.ReadFile(filepath.Join(second, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestLocalBus_PanicRecovered(t *testing.T) {
	b := NewLocalBus()
	b.tools["boom"] = Tool{
		Name: "boom",
		Invoke: func(context.Context, *Runtime, string) (string, error) {
			panic("kaboom")
		},
	}
	b.allow["boom"] = true

	res := b.Call(context.Background(), "boom", "")
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "kaboom")
}

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "opensearch", r.URL.Query().Get("action"))
		assert.Equal(t, "go language", r.URL.Query().Get("search"))
		fmt.Fprint(w, `["go language",["Go (programming language)"],["A compiled language"],["https://en.wikipedia.org/wiki/Go"]]`)
	}))
	defer srv.Close()

	b := NewLocalBus(WithSearchURL(srv.URL), WithHTTPClient(srv.Client()))
	res := b.Call(context.Background(), "web_search", "go language")

	require.True(t, res.OK, res.Error)
	assert.Contains(t, res.Output, "- Go (programming language): A compiled language")
	assert.Contains(t, res.Output, "https://en.wikipedia.org/wiki/Go")
}

func TestWebSearch_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `["zxqw",[],[],[]]`)
	}))
	defer srv.Close()

	b := NewLocalBus(WithSearchURL(srv.URL), WithHTTPClient(srv.Client()))
	res := b.Call(context.Background(), "web_search", "zxqw")

	require.True(t, res.OK, res.Error)
	assert.Equal(t, "<no results>", res.Output)
}

func TestWebSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewLocalBus(WithSearchURL(srv.URL), WithHTTPClient(srv.Client()))
	res := b.Call(context.Background(), "web_search", "anything")

	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "503")
}
