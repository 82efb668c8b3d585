// Package workflow runs capture, instruction, edit, normalization and
// placement as one operator action
package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/background"
	"github.com/gomcpgo/scene_edit_ai/pkg/capture"
	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/document"
	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/geometry"
	"github.com/gomcpgo/scene_edit_ai/pkg/placement"
	"github.com/gomcpgo/scene_edit_ai/pkg/scene"
	"github.com/gomcpgo/scene_edit_ai/pkg/selection"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

// Stages reported in pending operations and error messages
const (
	StagePreconditions = "preconditions"
	StageCapture       = "capture"
	StageDialog        = "dialog"
	StageEdit          = "edit"
	StageNormalize     = "normalize"
	StagePlacement     = "placement"
)

// Capturer rasterizes a scene-space rectangle
type Capturer interface {
	Capture(ctx context.Context, rect geometry.Rect) (*capture.Image, error)
}

// Placer checks and writes placement targets
type Placer interface {
	Resolve(ctx context.Context, t placement.Target) (placement.Target, error)
	Place(ctx context.Context, t placement.Target, data []byte) (*placement.Result, error)
}

// ImageReader loads stored images by their upload path
type ImageReader interface {
	Read(path string) ([]byte, error)
}

// Request is one region edit
type Request struct {
	Rect        geometry.Rect
	Target      placement.Target // Rect defaults to the selection for new tiles
	Instruction string           // prefill for the dialog
	Options     client.Options
	Normalize   *bool  // overrides the configured default
	Key         string // selection key, derived from target and rect when empty
}

// PortraitRequest edits an actor's current portrait
type PortraitRequest struct {
	ActorID        string
	Field          placement.Kind // ActorPortrait or ActorToken
	Instruction    string
	Options        client.Options
	References     [][]byte
	ReferencePaths []string
	Normalize      *bool
}

// CaptureInfo describes the captured region without its pixels
type CaptureInfo struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Strategy string `json:"strategy"`
}

// Outcome is the result of a run. Canceled runs have no error and no result
type Outcome struct {
	CorrelationID string              `json:"correlation_id"`
	Canceled      bool                `json:"canceled"`
	Capture       *CaptureInfo        `json:"capture,omitempty"`
	Edit          *editing.EditResult `json:"-"`
	RecordID      string              `json:"record_id,omitempty"`
	Normalized    bool                `json:"normalized"`
	Placement     *placement.Result   `json:"placement,omitempty"`
}

// Options configure an Orchestrator
type Options struct {
	Background background.Options
	Normalize  bool // run the normalizer unless a request says otherwise
	MaxAge     time.Duration
	Live       *scene.Scene // mirrored after successful tile placements
}

// Orchestrator owns the per-action sequence. It is safe for concurrent use
type Orchestrator struct {
	capturer Capturer
	editor   *editing.Editor
	placer   Placer
	docs     document.Store
	images   ImageReader
	dialog   Dialog
	notifier Notifier
	pending  *PendingOperationsManager
	opts     Options
	log      *zap.Logger
	wg       sync.WaitGroup
}

// New creates an orchestrator. A nil dialog confirms prefilled instructions,
// a nil notifier logs
func New(capturer Capturer, editor *editing.Editor, placer Placer, docs document.Store, images ImageReader,
	dialog Dialog, notifier Notifier, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialog == nil {
		dialog = StaticDialog{}
	}
	if notifier == nil {
		notifier = LogNotifier{Log: logger}
	}
	return &Orchestrator{
		capturer: capturer,
		editor:   editor,
		placer:   placer,
		docs:     docs,
		images:   images,
		dialog:   dialog,
		notifier: notifier,
		pending:  NewPendingOperationsManager(opts.MaxAge),
		opts:     opts,
		log:      logger,
	}
}

// Pending exposes the in-flight registry
func (o *Orchestrator) Pending() *PendingOperationsManager { return o.pending }

// Client returns the edit backend
func (o *Orchestrator) Client() client.EditClient { return o.editor.Client() }

// Close waits for selection-started runs and stops the registry
func (o *Orchestrator) Close() {
	o.wg.Wait()
	o.pending.Close()
}

// Wait blocks until every run started from a selection has finished
func (o *Orchestrator) Wait() { o.wg.Wait() }

func selectionKey(r Request) string {
	if r.Key != "" {
		return r.Key
	}
	t := r.Target
	owner := t.SceneID
	switch t.Kind {
	case placement.ExistingTile:
		owner += "/" + t.TileID
	case placement.ActorPortrait, placement.ActorToken:
		owner = t.ActorID
	}
	return fmt.Sprintf("%s:%s:%.0f,%.0f,%.0f,%.0f", t.Kind, owner, r.Rect.X, r.Rect.Y, r.Rect.Width, r.Rect.Height)
}

// run tracks one operation: it claims key, and turns every failure into
// exactly one notification
type run struct {
	o             *Orchestrator
	key           string
	correlationID string
	current       string
	log           *zap.Logger
	done          bool
}

func (o *Orchestrator) begin(key, operation string) (*run, error) {
	op := &PendingOperation{
		Key:           key,
		CorrelationID: uuid.NewString(),
		Operation:     operation,
		Stage:         StagePreconditions,
	}
	if cur, ok := o.pending.Begin(op); !ok {
		err := types.EditError{
			Code:    types.CodeInProgress,
			Message: fmt.Sprintf("%s is already running for this selection (stage %s)", cur.Operation, cur.Stage),
			Details: map[string]interface{}{
				"correlation_id":    cur.CorrelationID,
				"stage":             cur.Stage,
				"estimated_seconds": EstimateRemainingTime(cur.Operation, time.Since(cur.StartTime)),
			},
		}
		o.notifier.Error(err.Message)
		return nil, err
	}
	return &run{
		o:             o,
		key:           key,
		correlationID: op.CorrelationID,
		current:       StagePreconditions,
		log:           o.log.With(zap.String("correlation_id", op.CorrelationID), zap.String("operation", operation)),
	}, nil
}

func (r *run) stage(s string) {
	r.current = s
	r.o.pending.SetStage(r.key, r.correlationID, s)
	r.log.Debug("workflow stage", zap.String("stage", s))
}

func (r *run) fail(err error) error {
	if !r.done {
		r.done = true
		r.log.Warn("workflow failed", zap.String("stage", r.current), zap.String("code", types.CodeOf(err)), zap.Error(err))
		r.o.notifier.Error(fmt.Sprintf("%s failed: %v", r.current, err))
	}
	return err
}

func (r *run) finish() {
	if !r.o.pending.RemoveIf(r.key, r.correlationID) {
		r.log.Warn("pending claim expired before the run finished")
	}
}

// Run executes the full region workflow
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Target.Kind == "" {
		req.Target.Kind = placement.NewTile
	}
	if req.Target.Kind == placement.NewTile && req.Target.Rect.Empty() {
		req.Target.Rect = req.Rect
	}

	r, err := o.begin(selectionKey(req), types.OperationEditRegion)
	if err != nil {
		return nil, err
	}
	defer r.finish()
	out := &Outcome{CorrelationID: r.correlationID}

	if req.Rect.Space != geometry.SceneSpace || req.Rect.TooSmall(geometry.MinSelectionSize) {
		return nil, r.fail(types.NewError(types.CodeInvalidParameters,
			"selection %s is smaller than %v scene units", req.Rect, geometry.MinSelectionSize))
	}
	if err := o.editor.Client().Configured(); err != nil {
		return nil, r.fail(err)
	}
	target, err := o.placer.Resolve(ctx, req.Target)
	if err != nil {
		return nil, r.fail(err)
	}

	r.stage(StageCapture)
	img, err := o.capturer.Capture(ctx, req.Rect)
	if err != nil {
		return nil, r.fail(err)
	}
	out.Capture = &CaptureInfo{Width: img.Width, Height: img.Height, Strategy: img.Strategy}
	r.log.Info("region captured",
		zap.Stringer("rect", req.Rect),
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.String("strategy", img.Strategy))

	r.stage(StageDialog)
	answer, ok, err := o.dialog.Prompt(ctx, Prompt{
		Preview:     img,
		Target:      target,
		Instruction: req.Instruction,
		Options:     req.Options,
	})
	if err != nil {
		return nil, r.fail(err)
	}
	if !ok || strings.TrimSpace(answer.Instruction) == "" {
		r.log.Info("edit dismissed")
		out.Canceled = true
		return out, nil
	}

	data, err := o.editAndNormalize(ctx, r, editing.EditParams{
		Image:         img.PNG,
		Instruction:   answer.Instruction,
		Options:       answer.Options,
		Operation:     types.OperationEditRegion,
		CorrelationID: r.correlationID,
	}, pickNormalize(answer.Normalize, req.Normalize), out)
	if err != nil {
		return nil, err
	}

	return o.place(ctx, r, target, data, out)
}

// UpdatePortrait edits an actor's current portrait, optionally guided by
// reference images, and writes the result to the portrait or token field
func (o *Orchestrator) UpdatePortrait(ctx context.Context, req PortraitRequest) (*Outcome, error) {
	if req.Field == "" {
		req.Field = placement.ActorPortrait
	}
	if req.Field != placement.ActorPortrait && req.Field != placement.ActorToken {
		return nil, types.NewError(types.CodeInvalidParameters, "field must be %s or %s", placement.ActorPortrait, placement.ActorToken)
	}

	r, err := o.begin(fmt.Sprintf("%s:%s", req.Field, req.ActorID), types.OperationUpdatePortrait)
	if err != nil {
		return nil, err
	}
	defer r.finish()
	out := &Outcome{CorrelationID: r.correlationID}

	if err := o.editor.Client().Configured(); err != nil {
		return nil, r.fail(err)
	}
	target, err := o.placer.Resolve(ctx, placement.Target{Kind: req.Field, ActorID: req.ActorID})
	if err != nil {
		return nil, r.fail(err)
	}
	actor, err := o.docs.Actor(ctx, req.ActorID)
	if err != nil {
		return nil, r.fail(types.WrapError(types.CodeNoActiveTarget, err, "actor %s is not available", req.ActorID))
	}
	source := actor.Portrait
	if source == "" {
		source = actor.Token
	}
	if source == "" {
		return nil, r.fail(types.NewError(types.CodeNoActiveTarget, "actor %s has no portrait to edit", req.ActorID))
	}
	current, err := o.images.Read(source)
	if err != nil {
		return nil, r.fail(types.WrapError(types.CodeNoActiveTarget, err, "failed to load portrait %s", source))
	}

	r.stage(StageDialog)
	answer, ok, err := o.dialog.Prompt(ctx, Prompt{Target: target, Instruction: req.Instruction, Options: req.Options})
	if err != nil {
		return nil, r.fail(err)
	}
	if !ok || strings.TrimSpace(answer.Instruction) == "" {
		out.Canceled = true
		return out, nil
	}

	data, err := o.editAndNormalize(ctx, r, editing.EditParams{
		Image:          current,
		References:     req.References,
		ReferencePaths: req.ReferencePaths,
		Instruction:    answer.Instruction,
		Options:        answer.Options,
		Operation:      types.OperationUpdatePortrait,
		CorrelationID:  r.correlationID,
	}, pickNormalize(answer.Normalize, req.Normalize), out)
	if err != nil {
		return nil, err
	}

	return o.place(ctx, r, target, data, out)
}

func pickNormalize(vals ...*bool) *bool {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func (o *Orchestrator) editAndNormalize(ctx context.Context, r *run, params editing.EditParams, normalize *bool, out *Outcome) ([]byte, error) {
	r.stage(StageEdit)
	res, err := o.editor.EditImage(ctx, params)
	if err != nil {
		return nil, r.fail(err)
	}
	out.Edit = res
	out.RecordID = res.ID
	data := res.Data

	enabled := o.opts.Normalize
	if normalize != nil {
		enabled = *normalize
	}
	if enabled {
		r.stage(StageNormalize)
		data, err = background.Normalize(data, o.opts.Background)
		if err != nil {
			return nil, r.fail(err)
		}
		out.Normalized = true
	}
	return data, nil
}

func (o *Orchestrator) place(ctx context.Context, r *run, target placement.Target, data []byte, out *Outcome) (*Outcome, error) {
	r.stage(StagePlacement)
	res, err := o.placer.Place(ctx, target, data)
	if err != nil {
		// the remote edit is already spent, so this is reported and not retried
		return nil, r.fail(err)
	}
	out.Placement = res
	o.mirror(r, res, data)

	r.log.Info("workflow complete", zap.String("path", res.Path), zap.String("kind", string(res.Kind)))
	o.notifier.Info(fmt.Sprintf("placed edited image at %s", res.Path))
	return out, nil
}

// mirror shows a placed tile in the live scene
func (o *Orchestrator) mirror(r *run, res *placement.Result, data []byte) {
	live := o.opts.Live
	if live == nil || res.Tile == nil || live.ID != res.SceneID {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		r.log.Warn("placed image is not displayable", zap.Error(err))
		return
	}
	switch res.Kind {
	case placement.NewTile:
		t := res.Tile
		live.AddTile(t.ID, geometry.SceneRect(t.X, t.Y, t.Width, t.Height), img)
	case placement.ExistingTile:
		if !live.ReplaceTileImage(res.Tile.ID, img) {
			r.log.Debug("tile not in live scene", zap.String("tile_id", res.Tile.ID))
		}
	}
}

// StartSelection activates a selection controller on host whose finished
// rectangles run the workflow against target. Calling it while a selection
// is active toggles it off
func (o *Orchestrator) StartSelection(ctx context.Context, host selection.Host, target placement.Target, instruction string) *selection.Controller {
	ctrl := selection.NewController(host, func(rect geometry.Rect) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			_, err := o.Run(ctx, Request{Rect: rect, Target: target, Instruction: instruction})
			if err != nil && !errors.Is(err, types.ErrInProgress) {
				o.log.Debug("selection run ended with error", zap.Error(err))
			}
		}()
	}, o.log.Named("selection"))
	ctrl.Toggle()
	return ctrl
}
