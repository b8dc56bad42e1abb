package assets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestKindOf(t *testing.T) {
	tests := map[string]Kind{
		"shaders/tri.vert.spv": KindShader,
		"models/monkey.OBJ":    KindModel,
		"apple.bin":            KindFrames,
		"readme.txt":           KindNone,
		"shaders/tri.vert":     KindNone,
	}
	for path, want := range tests {
		if got := KindOf(path); got != want {
			t.Errorf("KindOf(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "shaders", "triangle.vert.spv"))
	writeFile(t, filepath.Join(root, "models", "monkey.obj"))
	writeFile(t, filepath.Join(root, "notes.txt"))

	am, err := NewAssetManager(root)
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(); err != nil {
		t.Fatal(err)
	}

	if am.Len() != 2 {
		t.Fatalf("indexed %d assets, want 2", am.Len())
	}
	path, err := am.Resolve(KindShader, "shaders/triangle.vert.spv")
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(am.Root(), "shaders", "triangle.vert.spv") {
		t.Fatalf("Resolve = %s", path)
	}
	if _, err := am.Resolve(KindShader, "models/monkey.obj"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("kind mismatch: %v", err)
	}
	if _, err := am.Resolve(KindModel, "models/missing.obj"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("missing model: %v", err)
	}
	if names := am.Names(KindModel); len(names) != 1 || names[0] != "models/monkey.obj" {
		t.Fatalf("Names(model) = %v", names)
	}
}

func TestMissingRoot(t *testing.T) {
	am, err := NewAssetManager(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if err := am.Initialize(); err != nil {
		t.Fatalf("Initialize on a missing root: %v", err)
	}
	if _, err := am.Resolve(KindModel, "monkey.obj"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("Resolve = %v", err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := am.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestShutdownWithoutInitialize(t *testing.T) {
	am, err := NewAssetManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- am.Shutdown() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Shutdown: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Shutdown without Initialize did not return")
	}
	if _, ok := <-am.Events(); ok {
		t.Fatal("events channel still open")
	}
	if err := am.Initialize(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Initialize after Shutdown = %v, want ErrClosed", err)
	}
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	root := t.TempDir()
	am, err := NewAssetManager(root)
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(root, "apple.bin"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-am.Events():
			if e.Name != "apple.bin" || e.Kind != KindFrames || e.Removed {
				continue
			}
			if _, err := am.Resolve(KindFrames, "apple.bin"); err != nil {
				t.Fatalf("event delivered but Resolve = %v", err)
			}
			return
		case <-deadline:
			t.Fatal("no event for the new file")
		}
	}
}
