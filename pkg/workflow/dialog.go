package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/gomcpgo/scene_edit_ai/pkg/capture"
	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/placement"
)

// Prompt is what the operator sees before an edit is sent
type Prompt struct {
	Preview     *capture.Image // nil for portrait updates
	Target      placement.Target
	Instruction string // prefilled text, may be empty
	Options     client.Options
}

// Answer is the operator's confirmed input
type Answer struct {
	Instruction string
	Options     client.Options
	Normalize   *bool
}

// Dialog asks the operator for the instruction. ok is false when the
// operator dismissed the dialog
type Dialog interface {
	Prompt(ctx context.Context, p Prompt) (a Answer, ok bool, err error)
}

// StaticDialog confirms the prefilled instruction without asking anyone
// It is used when the instruction arrives with the request
type StaticDialog struct{}

func (StaticDialog) Prompt(ctx context.Context, p Prompt) (Answer, bool, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, false, err
	}
	if p.Instruction == "" {
		return Answer{}, false, nil
	}
	return Answer{Instruction: p.Instruction, Options: p.Options}, true, nil
}

// DialogFunc adapts a function to Dialog
type DialogFunc func(ctx context.Context, p Prompt) (Answer, bool, error)

func (f DialogFunc) Prompt(ctx context.Context, p Prompt) (Answer, bool, error) {
	return f(ctx, p)
}

// Notifier shows messages to the operator
type Notifier interface {
	Info(message string)
	Error(message string)
}

// LogNotifier writes notifications to the log
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Info(message string) {
	if n.Log != nil {
		n.Log.Info(message)
	}
}

func (n LogNotifier) Error(message string) {
	if n.Log != nil {
		n.Log.Error(message)
	}
}
