package workflow

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gomcpgo/scene_edit_ai/pkg/background"
	"github.com/gomcpgo/scene_edit_ai/pkg/capture"
	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/config"
	"github.com/gomcpgo/scene_edit_ai/pkg/document"
	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/placement"
	"github.com/gomcpgo/scene_edit_ai/pkg/scene"
	"github.com/gomcpgo/scene_edit_ai/pkg/selection"
	"github.com/gomcpgo/scene_edit_ai/pkg/storage"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

type recordingNotifier struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (n *recordingNotifier) Info(m string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, m)
}

func (n *recordingNotifier) Error(m string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, m)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.infos), len(n.errors)
}

type countingCapturer struct {
	calls int
	err   error
	inner Capturer
}

func (c *countingCapturer) Capture(ctx context.Context, r geometry.Rect) (*capture.Image, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Capture(ctx, r)
}

type failingPlacer struct {
	Placer
	places int
}

func (f *failingPlacer) Place(ctx context.Context, t placement.Target, data []byte) (*placement.Result, error) {
	f.places++
	return nil, types.NewError(types.CodeUploadFailed, "bucket unavailable")
}

// editedPNG is a white square with a dark centre, as a backend would return
func editedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, color.NRGBA{255, 255, 255, 255})
		}
	}
	for y := 8; y < 12; y++ {
		for x := 8; x < 12; x++ {
			img.Set(x, y, color.NRGBA{20, 20, 20, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fixture struct {
	orch     *Orchestrator
	mock     *client.MockClient
	docs     *document.FileStore
	blobs    *storage.Storage
	live     *scene.Scene
	canvas   *scene.Canvas
	capturer *countingCapturer
	notifier *recordingNotifier
}

func newFixture(t *testing.T, dialog Dialog, withScene bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	live := scene.New("harbor", 200, 200)
	live.BackgroundColor = color.RGBA{30, 60, 90, 255}
	live.AddTile("house", geometry.SceneRect(40, 40, 60, 60), scene.Solid(color.RGBA{200, 0, 0, 255}))
	canvas := scene.NewCanvas(live, 200, 200, 1, scene.FullCapabilities, nil)

	docs, err := document.Open(filepath.Join(dir, "documents.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if withScene {
		if _, err := docs.AddScene(document.Scene{ID: "harbor", Width: 200, Height: 200}); err != nil {
			t.Fatal(err)
		}
	}
	blobs := storage.NewStorage(filepath.Join(dir, "data"))
	mock := client.NewMockClient(editedPNG(t))
	editor := editing.NewEditor(mock, blobs, 4, nil)
	placer := placement.New(docs, blobs, "scene-edits", nil)
	timeouts := config.TestTimeouts()
	capt := &countingCapturer{inner: capture.New(canvas, nil, capture.WithQueueTimeout(timeouts.CaptureQueue))}
	notifier := &recordingNotifier{}

	orch := New(capt, editor, placer, docs, blobs, dialog, notifier, Options{
		Background: background.Options{Algorithm: background.AlgorithmFloodFill},
		Normalize:  true,
		MaxAge:     timeouts.MaxOperationTime,
		Live:       live,
	}, nil)
	t.Cleanup(orch.Close)

	return &fixture{orch: orch, mock: mock, docs: docs, blobs: blobs, live: live, canvas: canvas,
		capturer: capt, notifier: notifier}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, nil, true)
	rect := geometry.SceneRect(40, 50, 30, 20)

	out, err := f.orch.Run(context.Background(), Request{Rect: rect, Instruction: "add a chimney"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Canceled || out.Placement == nil || out.Placement.Tile == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Capture.Width != 30 || out.Capture.Height != 20 {
		t.Errorf("captured %dx%d, want 30x20", out.Capture.Width, out.Capture.Height)
	}
	if !out.Normalized {
		t.Error("expected normalization to run")
	}

	sent := f.mock.EditCalls[0]
	if sent.Instruction != "add a chimney" {
		t.Errorf("unexpected instruction %q", sent.Instruction)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(sent.Image))
	if err != nil || cfg.Width != 30 || cfg.Height != 20 {
		t.Errorf("backend got %dx%d (%v), want 30x20", cfg.Width, cfg.Height, err)
	}

	tile := out.Placement.Tile
	if tile.X != 40 || tile.Y != 50 || tile.Width != 30 || tile.Height != 20 {
		t.Errorf("tile not at selection: %+v", tile)
	}
	stored, err := f.blobs.Read(tile.Image)
	if err != nil {
		t.Fatalf("uploaded image missing: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(stored))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("normalized upload should have a transparent border")
	}

	if _, ok := f.live.Tile(tile.ID); !ok {
		t.Error("placed tile not mirrored into the live scene")
	}
	if infos, errs := f.notifier.counts(); infos != 1 || errs != 0 {
		t.Errorf("expected one info and no errors, got %d/%d", infos, errs)
	}
	if len(f.orch.Pending().List()) != 0 {
		t.Error("pending registry not cleared")
	}
}

func TestDialogCancelIsSilent(t *testing.T) {
	dismiss := DialogFunc(func(ctx context.Context, p Prompt) (Answer, bool, error) {
		if p.Preview == nil || len(p.Preview.PNG) == 0 {
			t.Error("dialog should receive the captured preview")
		}
		return Answer{}, false, nil
	})
	f := newFixture(t, dismiss, true)

	out, err := f.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 40, 40)})
	if err != nil {
		t.Fatalf("cancel must not be an error, got %v", err)
	}
	if !out.Canceled {
		t.Error("expected canceled outcome")
	}
	if f.mock.Calls() != 0 {
		t.Error("backend must not be called after cancel")
	}
	if infos, errs := f.notifier.counts(); infos != 0 || errs != 0 {
		t.Errorf("cancel must be silent, got %d/%d notifications", infos, errs)
	}
	files, _ := f.blobs.List("scene-edits")
	if len(files) != 0 {
		t.Errorf("nothing should be uploaded, got %v", files)
	}
}

func TestEditFailureNotifiesOnceAndPlacesNothing(t *testing.T) {
	f := newFixture(t, nil, true)
	f.mock.Err = types.BackendError(502, "upstream exploded")

	_, err := f.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 40, 40), Instruction: "x"})
	if !errors.Is(err, types.ErrBackendError) {
		t.Fatalf("expected backend_error, got %v", err)
	}
	infos, errs := f.notifier.counts()
	if errs != 1 || infos != 0 {
		t.Fatalf("expected exactly one error notification, got %d errors %d infos", errs, infos)
	}
	if msg := f.notifier.errors[0]; !bytes.Contains([]byte(msg), []byte("upstream exploded")) {
		t.Errorf("notification lacks failure detail: %q", msg)
	}
	files, _ := f.blobs.List("scene-edits")
	sc, _ := f.docs.Scene(context.Background(), "harbor")
	if len(files) != 0 || len(sc.Tiles) != 0 {
		t.Errorf("edit failure must not upload or place: %v %v", files, sc.Tiles)
	}
}

func TestPreconditionsCheckedBeforeCapture(t *testing.T) {
	f := newFixture(t, nil, false)
	_, err := f.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 40, 40), Instruction: "x"})
	if !errors.Is(err, types.ErrNoActiveTarget) {
		t.Fatalf("expected no_active_target, got %v", err)
	}

	g := newFixture(t, nil, true)
	g.mock.MissingKey = true
	_, err = g.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 40, 40), Instruction: "x"})
	if !errors.Is(err, types.ErrMissingCredential) {
		t.Fatalf("expected missing_credential, got %v", err)
	}

	if f.capturer.calls != 0 || g.capturer.calls != 0 {
		t.Error("capture must not run when preconditions fail")
	}
	if _, errs := g.notifier.counts(); errs != 1 {
		t.Errorf("expected one notification, got %d", errs)
	}
}

func TestTooSmallSelectionRejected(t *testing.T) {
	f := newFixture(t, nil, true)
	_, err := f.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 9, 40), Instruction: "x"})
	if !errors.Is(err, types.ErrInvalidParameters) {
		t.Fatalf("expected invalid_parameters, got %v", err)
	}
}

func TestCaptureFailureNotifiesOnce(t *testing.T) {
	f := newFixture(t, nil, true)
	f.capturer.err = types.NewError(types.CodeCaptureUnavailable, "every capture strategy failed")

	_, err := f.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 40, 40), Instruction: "x"})
	if !errors.Is(err, types.ErrCaptureUnavailable) {
		t.Fatalf("expected capture_unavailable, got %v", err)
	}
	if _, errs := f.notifier.counts(); errs != 1 {
		t.Errorf("expected one notification, got %d", errs)
	}
	if f.mock.Calls() != 0 {
		t.Error("backend must not be called")
	}
}

func TestPlacementFailureAfterEditIsNotRetried(t *testing.T) {
	f := newFixture(t, nil, true)
	placer := &failingPlacer{Placer: f.orch.placer}
	f.orch.placer = placer

	_, err := f.orch.Run(context.Background(), Request{Rect: geometry.SceneRect(10, 10, 40, 40), Instruction: "x"})
	if !errors.Is(err, types.ErrUploadFailed) {
		t.Fatalf("expected upload_failed, got %v", err)
	}
	if placer.places != 1 || f.mock.Calls() != 1 {
		t.Errorf("expected one placement and one edit, got %d/%d", placer.places, f.mock.Calls())
	}
	if _, errs := f.notifier.counts(); errs != 1 {
		t.Errorf("expected one notification, got %d", errs)
	}
}

func TestSameSelectionInProgress(t *testing.T) {
	f := newFixture(t, nil, true)
	f.mock.ResponseDelay = 300 * time.Millisecond
	req := Request{Rect: geometry.SceneRect(10, 10, 40, 40), Instruction: "x"}

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Run(context.Background(), req)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(f.orch.Pending().List()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first run never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, err := f.orch.Run(context.Background(), req)
	if !errors.Is(err, types.ErrInProgress) {
		t.Fatalf("expected in_progress, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// a different selection is independent
	other := req
	other.Rect = geometry.SceneRect(100, 100, 40, 40)
	f.mock.ResponseDelay = 0
	if _, err := f.orch.Run(context.Background(), other); err != nil {
		t.Fatalf("independent run failed: %v", err)
	}
}

func TestUpdatePortraitWritesToken(t *testing.T) {
	f := newFixture(t, nil, true)
	ctx := context.Background()
	if err := f.blobs.EnsureDir("portraits"); err != nil {
		t.Fatal(err)
	}
	portrait, err := f.blobs.Upload("portraits", "mira.png", editedPNG(t))
	if err != nil {
		t.Fatal(err)
	}
	actor, _ := f.docs.AddActor(document.Actor{Name: "Mira", Portrait: portrait})

	out, err := f.orch.UpdatePortrait(ctx, PortraitRequest{
		ActorID:     actor.ID,
		Field:       placement.ActorToken,
		Instruction: "give her a red cloak",
		References:  [][]byte{[]byte("cloak reference")},
		Normalize:   boolPtr(false),
	})
	if err != nil {
		t.Fatalf("UpdatePortrait failed: %v", err)
	}
	if out.Normalized {
		t.Error("normalization was disabled for this request")
	}

	updated, _ := f.docs.Actor(ctx, actor.ID)
	if updated.Portrait != portrait || updated.Token != out.Placement.Path {
		t.Errorf("unexpected actor %+v", updated)
	}
	call := f.mock.EditCalls[0]
	if len(call.References) != 1 || !bytes.Equal(call.Image, editedPNG(t)) {
		t.Errorf("backend did not get portrait plus reference")
	}
	meta, err := f.blobs.LoadMetadata(out.RecordID)
	if err != nil || meta.Operation != types.OperationUpdatePortrait {
		t.Errorf("unexpected record %+v %v", meta, err)
	}
}

func TestUpdatePortraitUnknownActor(t *testing.T) {
	f := newFixture(t, nil, true)
	_, err := f.orch.UpdatePortrait(context.Background(), PortraitRequest{ActorID: "ghost", Instruction: "x"})
	if !errors.Is(err, types.ErrNoActiveTarget) {
		t.Fatalf("expected no_active_target, got %v", err)
	}
}

func TestStartSelectionRunsWorkflow(t *testing.T) {
	f := newFixture(t, nil, true)
	in := f.canvas.Interaction()
	ctrl := f.orch.StartSelection(context.Background(), in, placement.Target{}, "paint it blue")
	if !ctrl.Active() {
		t.Fatal("controller should be active")
	}

	for _, ev := range []selection.PointerEvent{
		{Type: selection.PointerDown, Position: geometry.Point{X: 120, Y: 130}},
		{Type: selection.PointerMove, Position: geometry.Point{X: 90, Y: 100}},
		{Type: selection.PointerUp, Position: geometry.Point{X: 80, Y: 90}},
	} {
		if err := in.Dispatch(ev); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
	}
	f.orch.Wait()

	if ctrl.Active() {
		t.Error("controller should deactivate after a selection")
	}
	sc, _ := f.docs.Scene(context.Background(), "harbor")
	if len(sc.Tiles) != 1 {
		t.Fatalf("expected one placed tile, got %d", len(sc.Tiles))
	}
	tile := sc.Tiles[0]
	if tile.X != 80 || tile.Y != 90 || tile.Width != 40 || tile.Height != 40 {
		t.Errorf("tile at %+v, want normalized drag rect", tile)
	}
	if in.Listeners() != 0 {
		t.Errorf("listeners left attached: %d", in.Listeners())
	}
}

func TestPendingExpire(t *testing.T) {
	pom := NewPendingOperationsManager(time.Minute)
	defer pom.Close()
	pom.Begin(&PendingOperation{Key: "a", StartTime: time.Now().Add(-2 * time.Minute)})
	pom.Begin(&PendingOperation{Key: "b"})
	pom.expire(time.Now())
	if _, ok := pom.Get("a"); ok {
		t.Error("expired entry kept")
	}
	if _, ok := pom.Get("b"); !ok {
		t.Error("fresh entry dropped")
	}
}

func boolPtr(b bool) *bool { return &b }
