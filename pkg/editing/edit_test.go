package editing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nbody")

func TestEditImageStoresResult(t *testing.T) {
	root := t.TempDir()
	store := storage.NewStorage(root)
	mock := client.NewMockClient(pngBytes)
	ed := NewEditor(mock, store, 4, nil)

	strength := 0.3
	res, err := ed.EditImage(context.Background(), EditParams{
		Image:         []byte("source"),
		Instruction:   "add a lantern",
		Options:       client.Options{Strength: &strength},
		CorrelationID: "corr-1",
	})
	if err != nil {
		t.Fatalf("EditImage failed: %v", err)
	}
	if res.Operation != types.OperationEditRegion {
		t.Errorf("expected default operation, got %q", res.Operation)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil || string(data) != string(pngBytes) {
		t.Errorf("output not written: %v", err)
	}

	meta, err := store.LoadMetadata(res.ID)
	if err != nil {
		t.Fatalf("LoadMetadata failed: %v", err)
	}
	if meta.Result.CorrelationID != "corr-1" || meta.Parameters["strength"] != 0.3 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Result.Filename != "image.png" {
		t.Errorf("unexpected filename %q", meta.Result.Filename)
	}

	got := mock.EditCalls[0]
	if got.Instruction != "add a lantern" || string(got.Image) != "source" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestEditImageFailureStoresNothing(t *testing.T) {
	root := t.TempDir()
	mock := client.NewMockClient(nil)
	mock.Err = types.BackendError(500, "boom")
	ed := NewEditor(mock, storage.NewStorage(root), 4, nil)

	_, err := ed.EditImage(context.Background(), EditParams{Image: []byte("x"), Instruction: "y"})
	if !errors.Is(err, types.ErrBackendError) {
		t.Fatalf("expected backend_error, got %v", err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("expected no records, got %d", len(entries))
	}
}

func TestEditImageUnwritableStorage(t *testing.T) {
	// storage root is a regular file, so no record can be created
	root := filepath.Join(t.TempDir(), "blocked")
	os.WriteFile(root, []byte("x"), 0644)
	mock := client.NewMockClient(pngBytes)
	ed := NewEditor(mock, storage.NewStorage(root), 4, nil)

	_, err := ed.EditImage(context.Background(), EditParams{Image: []byte("x"), Instruction: "y"})
	if types.CodeOf(err) != types.CodeUploadFailed {
		t.Fatalf("expected upload_failed, got %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("expected the remote edit to have run once, got %d", mock.Calls())
	}
}

func TestEditImageValidation(t *testing.T) {
	mock := client.NewMockClient(pngBytes)
	ed := NewEditor(mock, storage.NewStorage(t.TempDir()), 1, nil)
	bad := 1.5

	cases := []EditParams{
		{Instruction: "x"},
		{Image: []byte("x"), Instruction: "  "},
		{ImagePath: filepath.Join(t.TempDir(), "missing.png"), Instruction: "x"},
		{Image: []byte("x"), Instruction: "x", Options: client.Options{Strength: &bad}},
		{Image: []byte("x"), Instruction: "x", References: [][]byte{[]byte("a"), []byte("b")}},
	}
	for i, p := range cases {
		if _, err := ed.EditImage(context.Background(), p); !errors.Is(err, types.ErrInvalidParameters) {
			t.Errorf("case %d: expected invalid_parameters, got %v", i, err)
		}
	}
	if mock.Calls() != 0 {
		t.Errorf("invalid params must not reach the backend, got %d calls", mock.Calls())
	}
}

func TestReferencesRejectedForSingleImageFamily(t *testing.T) {
	mock := client.NewMockClient(pngBytes)
	mock.FamilyName = types.FamilySDWebUI
	ed := NewEditor(mock, storage.NewStorage(t.TempDir()), 4, nil)

	_, err := ed.EditImage(context.Background(), EditParams{
		Image:       []byte("x"),
		Instruction: "x",
		References:  [][]byte{[]byte("ref")},
	})
	if !errors.Is(err, types.ErrInvalidParameters) {
		t.Errorf("expected invalid_parameters, got %v", err)
	}
}

func TestEditImageFromPaths(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	ref := filepath.Join(dir, "ref.png")
	os.WriteFile(src, []byte("src"), 0644)
	os.WriteFile(ref, []byte("ref"), 0644)

	mock := client.NewMockClient(pngBytes)
	ed := NewEditor(mock, storage.NewStorage(t.TempDir()), 4, nil)
	res, err := ed.EditImage(context.Background(), EditParams{
		ImagePath:      src,
		ReferencePaths: []string{ref},
		Instruction:    "x",
		Operation:      types.OperationUpdatePortrait,
		Filename:       "portrait",
	})
	if err != nil {
		t.Fatalf("EditImage failed: %v", err)
	}
	if filepath.Base(res.OutputPath) != "portrait.png" {
		t.Errorf("unexpected output %s", res.OutputPath)
	}
	call := mock.EditCalls[0]
	if string(call.Image) != "src" || len(call.References) != 1 || string(call.References[0]) != "ref" {
		t.Errorf("unexpected request %+v", call)
	}
}

func TestGetFamilyInfo(t *testing.T) {
	if !GetFamilyInfo(types.FamilyGemini).References {
		t.Error("gemini accepts references")
	}
	if GetFamilyInfo("nope").Name != "Unknown backend" {
		t.Error("unexpected info for unknown family")
	}
}
