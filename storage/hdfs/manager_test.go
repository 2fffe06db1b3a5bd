package hdfs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ckptstore/ckptstore/internal/randguard"
	"github.com/ckptstore/ckptstore/storage"
)

// fakeFS implements fsClient with an in-memory remote tree.
type fakeFS struct {
	dirs        map[string]bool
	files       map[string][]byte
	uploadErr   error
	removeCalls int
	closed      bool
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		dirs:  make(map[string]bool),
		files: make(map[string][]byte),
	}
}

func (f *fakeFS) MkdirAll(dirname string, perm os.FileMode) error {
	for p := dirname; p != "/" && p != "."; p = path.Dir(p) {
		f.dirs[p] = true
	}
	return nil
}

func (f *fakeFS) CopyToRemote(src string, dst string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	f.files[dst] = data
	return nil
}

func (f *fakeFS) CopyToLocal(src string, dst string) error {
	data, ok := f.files[src]
	if !ok {
		return &os.PathError{Op: "open", Path: src, Err: os.ErrNotExist}
	}
	return os.WriteFile(dst, data, 0644)
}

func (f *fakeFS) Walk(root string, walkFn filepath.WalkFunc) error {
	if !f.dirs[root] {
		return walkFn(root, nil, &os.PathError{Op: "stat", Path: root, Err: os.ErrNotExist})
	}

	paths := []string{root}
	for p := range f.dirs {
		if strings.HasPrefix(p, root+"/") {
			paths = append(paths, p)
		}
	}
	for p := range f.files {
		if strings.HasPrefix(p, root+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, p := range paths {
		info := fakeInfo{name: path.Base(p), dir: f.dirs[p]}
		if data, ok := f.files[p]; ok {
			info.size = int64(len(data))
		}
		if err := walkFn(p, info, nil); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFS) RemoveAll(name string) error {
	f.removeCalls++
	for p := range f.dirs {
		if p == name || strings.HasPrefix(p, name+"/") {
			delete(f.dirs, p)
		}
	}
	for p := range f.files {
		if strings.HasPrefix(p, name+"/") {
			delete(f.files, p)
		}
	}
	return nil
}

func (f *fakeFS) Close() error {
	f.closed = true
	return nil
}

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (f fakeInfo) Name() string { return f.name }
func (f fakeInfo) Size() int64  { return f.size }
func (f fakeInfo) Mode() fs.FileMode {
	if f.dir {
		return fs.ModeDir | 0755
	}
	return 0644
}
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return f.dir }
func (f fakeInfo) Sys() any           { return nil }

func newTestManager(t *testing.T, client *fakeFS) *Manager {
	t.Helper()
	return &Manager{
		client:   client,
		rootPath: "/checkpoints",
		staging:  storage.NewStaging(t.TempDir(), zap.NewNop()),
		guard:    randguard.New(1, 2),
		logger:   zap.NewNop(),
	}
}

func populateStaging(t *testing.T, m *Manager, storageID string) (string, storage.Metadata) {
	t.Helper()

	dir, err := m.staging.Create(storageID)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "model.bin"), []byte("weights"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "nested", "events.out"), []byte("events"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0755); err != nil {
		t.Fatal(err)
	}

	md := storage.NewMetadata(storageID, map[string]int64{
		"model.bin":         7,
		"nested/events.out": 6,
		"logs/":             0,
	})
	return dir, md
}

func TestStorePathUploadsTreeAndCleansUp(t *testing.T) {
	client := newFakeFS()
	m := newTestManager(t, client)
	dir, md := populateStaging(t, m, "abc123")

	if err := m.StorePath(context.Background(), "abc123", dir, md); err != nil {
		t.Fatalf("StorePath: %v", err)
	}

	if got := string(client.files["/checkpoints/abc123/model.bin"]); got != "weights" {
		t.Errorf("model.bin: got %q, want %q", got, "weights")
	}
	if got := string(client.files["/checkpoints/abc123/nested/events.out"]); got != "events" {
		t.Errorf("nested/events.out: got %q, want %q", got, "events")
	}

	// Empty directories survive natively; no marker objects are needed.
	if !client.dirs["/checkpoints/abc123/logs"] {
		t.Error("empty directory not created remotely")
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("staging directory still present after StorePath")
	}
}

func TestStorePathCleansUpOnFailure(t *testing.T) {
	client := newFakeFS()
	client.uploadErr = errors.New("datanode unreachable")
	m := newTestManager(t, client)
	dir, md := populateStaging(t, m, "abc123")

	err := m.StorePath(context.Background(), "abc123", dir, md)
	if !errors.Is(err, client.uploadErr) {
		t.Fatalf("StorePath returned %v, want wrapped %v", err, client.uploadErr)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("staging directory survived a failed StorePath")
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	client := newFakeFS()
	m := newTestManager(t, client)
	dir, md := populateStaging(t, m, "abc123")

	if err := m.StorePath(context.Background(), "abc123", dir, md); err != nil {
		t.Fatalf("StorePath: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "restore")
	if err := m.Download(context.Background(), md, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "model.bin"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(got) != "weights" {
		t.Errorf("restored content %q, want %q", got, "weights")
	}

	info, err := os.Stat(filepath.Join(dest, "logs"))
	if err != nil {
		t.Fatalf("empty directory not restored: %v", err)
	}
	if !info.IsDir() {
		t.Error("empty directory restored as a file")
	}
}

func TestDownloadOverwritesExistingContent(t *testing.T) {
	client := newFakeFS()
	client.dirs["/checkpoints/abc123"] = true
	client.files["/checkpoints/abc123/model.bin"] = []byte("fresh")
	m := newTestManager(t, client)

	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "model.bin"), []byte("stale content"), 0644); err != nil {
		t.Fatal(err)
	}

	md := storage.NewMetadata("abc123", map[string]int64{"model.bin": 5})
	if err := m.Download(context.Background(), md, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "model.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Errorf("got %q, want %q", got, "fresh")
	}
}

func TestRestorePathScope(t *testing.T) {
	client := newFakeFS()
	client.dirs["/checkpoints/abc123"] = true
	client.files["/checkpoints/abc123/model.bin"] = []byte("weights")
	m := newTestManager(t, client)
	md := storage.NewMetadata("abc123", map[string]int64{"model.bin": 7})

	var scoped string
	err := m.RestorePath(context.Background(), md, func(path string) error {
		scoped = path
		if _, err := os.Stat(filepath.Join(path, "model.bin")); err != nil {
			t.Errorf("restored file missing inside scope: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RestorePath: %v", err)
	}

	if _, err := os.Stat(scoped); !os.IsNotExist(err) {
		t.Error("staging directory still present after scope exit")
	}
}

func TestRestorePathCleansUpOnCallbackError(t *testing.T) {
	client := newFakeFS()
	client.dirs["/checkpoints/abc123"] = true
	m := newTestManager(t, client)
	md := storage.NewMetadata("abc123", nil)

	callbackErr := errors.New("consumer failed")
	err := m.RestorePath(context.Background(), md, func(path string) error {
		return callbackErr
	})
	if !errors.Is(err, callbackErr) {
		t.Fatalf("RestorePath returned %v, want %v", err, callbackErr)
	}
	if _, err := os.Stat(m.staging.Path("abc123")); !os.IsNotExist(err) {
		t.Error("staging directory survived a failing callback")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	client := newFakeFS()
	client.dirs["/checkpoints/abc123"] = true
	client.files["/checkpoints/abc123/model.bin"] = []byte("weights")
	m := newTestManager(t, client)
	md := storage.NewMetadata("abc123", map[string]int64{"model.bin": 7})

	if err := m.Delete(context.Background(), md); err != nil {
		t.Fatalf("first Delete: %v", err)
	}
	if client.dirs["/checkpoints/abc123"] {
		t.Error("checkpoint directory still present remotely")
	}

	if err := m.Delete(context.Background(), md); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if client.removeCalls != 2 {
		t.Errorf("RemoveAll called %d times, want 2", client.removeCalls)
	}
}

func TestClose(t *testing.T) {
	client := newFakeFS()
	m := newTestManager(t, client)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !client.closed {
		t.Error("client not closed")
	}
}
