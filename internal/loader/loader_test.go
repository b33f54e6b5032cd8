package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-pipeform/pkg/schema"
)

func TestLoader_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.json")
	if err := os.WriteFile(path, []byte(`{"type":"object"}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	doc, err := New(schema.LoaderOptions{}).Load(context.Background(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := string(doc.Raw()); got != `{"type":"object"}` {
		t.Fatalf("raw = %q", got)
	}
}

func TestLoader_FS(t *testing.T) {
	files := fstest.MapFS{
		"defs/openai.yaml": {Data: []byte("type: object\n")},
	}
	l := NewWithOptions(schema.WithFileSystem(files))

	doc, err := l.Load(context.Background(), schema.SourceFromFS("defs/openai.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	node, err := doc.Node()
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	if node.PrimaryType() != "object" {
		t.Fatalf("type = %q", node.PrimaryType())
	}
}

func TestLoader_HTTPDisabledByDefault(t *testing.T) {
	src, err := schema.SourceFromURL("https://example.com/spec.json")
	if err != nil {
		t.Fatalf("SourceFromURL: %v", err)
	}
	_, err = New(schema.LoaderOptions{}).Load(context.Background(), src)
	if err == nil || !strings.Contains(err.Error(), "http support disabled") {
		t.Fatalf("expected disabled error, got %v", err)
	}
}

func TestLoader_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/spec.json" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"type":"string"}`))
	}))
	defer server.Close()

	l := NewWithOptions(schema.WithHTTPClient(server.Client()))

	src, err := schema.SourceFromURL(server.URL + "/spec.json")
	if err != nil {
		t.Fatalf("SourceFromURL: %v", err)
	}
	doc, err := l.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := string(doc.Raw()); got != `{"type":"string"}` {
		t.Fatalf("raw = %q", got)
	}

	missing, _ := schema.SourceFromURL(server.URL + "/missing.json")
	if _, err := l.Load(context.Background(), missing); err == nil {
		t.Fatalf("expected status error")
	}
}
