package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gomcpgo/scene_edit_ai/pkg/editing"
	"github.com/gomcpgo/scene_edit_ai/pkg/enhancement"
	"github.com/gomcpgo/scene_edit_ai/pkg/responses"
	"github.com/gomcpgo/scene_edit_ai/pkg/types"
)

const defaultTestInstruction = "Make it look like a snowy winter evening"

type smokeOptions struct {
	probe     bool
	edit      bool
	normalize bool
	input     string
	prompt    string
	output    string
}

// runSmokeTest exercises the backend and normalizer without a scene
func runSmokeTest(ctx context.Context, a *app, o smokeOptions) error {
	if o.probe {
		c := a.editor.Client()
		fmt.Printf("Backend: %s (%s)\n", editing.GetFamilyInfo(c.Family()).Name, c.Family())
		if err := c.Configured(); err != nil {
			return err
		}
		if !c.Probe(ctx) {
			return types.NewError(types.CodeNetworkFailure, "backend is not reachable")
		}
		fmt.Printf("✅ Backend is reachable\n")
	}

	if (o.edit || o.normalize) && o.input == "" {
		return errors.New("-input is required with -edit and -normalize")
	}
	if o.input != "" {
		if _, err := os.Stat(o.input); err != nil {
			return fmt.Errorf("cannot read input: %w", err)
		}
	}

	if o.edit {
		fmt.Printf("Editing image: %s\n", o.input)
		fmt.Printf("Instruction: %s\n", o.prompt)
		result, err := a.editor.EditImage(ctx, editing.EditParams{
			ImagePath:   o.input,
			Instruction: o.prompt,
			Filename:    o.output,
		})
		if err != nil {
			fmt.Println(responses.FromError(types.OperationEditRegion, err))
			return err
		}
		fmt.Printf("✅ Success!\n")
		fmt.Printf("   ID: %s\n", result.ID)
		fmt.Printf("   File: %s\n", result.OutputPath)
		fmt.Printf("   Time: %.2fs\n", result.Metrics.ProcessingTime)
	}

	if o.normalize {
		fmt.Printf("Removing background from: %s\n", o.input)
		result, err := a.enhancer.RemoveBackground(ctx, enhancement.RemoveBackgroundParams{
			ImagePath: o.input,
			Algorithm: a.cfg.Background.Algorithm,
			Threshold: a.cfg.Background.Threshold,
			Filename:  o.output,
		})
		if err != nil {
			fmt.Println(responses.FromError(types.OperationRemoveBackground, err))
			return err
		}
		fmt.Printf("✅ Success!\n")
		fmt.Printf("   ID: %s\n", result.ID)
		fmt.Printf("   File: %s\n", result.OutputPath)
		fmt.Printf("   Algorithm: %s\n", result.Algorithm)
	}
	return nil
}
