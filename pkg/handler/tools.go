package handler

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func rectParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("x", mcp.Description("Left edge of the region in scene units"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("Top edge of the region in scene units"), mcp.Required()),
		mcp.WithNumber("width", mcp.Description("Region width in scene units (at least 10)"), mcp.Required()),
		mcp.WithNumber("height", mcp.Description("Region height in scene units (at least 10)"), mcp.Required()),
	}
}

func optionParams() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("negative_instruction", mcp.Description("What the edit should avoid")),
		mcp.WithNumber("strength", mcp.Description("How far the result may depart from the source (0.0-1.0)")),
		mcp.WithNumber("steps", mcp.Description("Sampling steps, for backends that use them")),
		mcp.WithNumber("guidance_scale", mcp.Description("Prompt adherence, for backends that use it")),
		mcp.WithString("sampler", mcp.Description("Sampler name, for backends that use it")),
		mcp.WithNumber("target_width", mcp.Description("Output width in pixels, defaults to the source width")),
		mcp.WithNumber("target_height", mcp.Description("Output height in pixels, defaults to the source height")),
		mcp.WithString("model_id", mcp.Description("Override the configured model")),
	}
}

func tool(name string, opts ...[]mcp.ToolOption) mcp.Tool {
	var all []mcp.ToolOption
	for _, o := range opts {
		all = append(all, o...)
	}
	return mcp.NewTool(name, all...)
}

// Tools returns the list of available tools
func Tools() []mcp.Tool {
	return []mcp.Tool{
		tool("capture_region",
			[]mcp.ToolOption{mcp.WithDescription("Capture a rectangle of the live scene as it is currently composited and store it as a PNG")},
			rectParams(),
			[]mcp.ToolOption{mcp.WithString("filename", mcp.Description("Optional output filename"))},
		),
		tool("edit_region",
			[]mcp.ToolOption{
				mcp.WithDescription("Capture a region of the scene, edit it with the configured AI backend and place the result as a new tile, an existing tile or an actor image"),
				mcp.WithString("instruction", mcp.Description("Natural-language description of the edit"), mcp.Required()),
				mcp.WithString("target", mcp.Description("Where the result goes"),
					mcp.Enum("new_tile", "existing_tile", "actor_portrait", "actor_token")),
				mcp.WithString("scene_id", mcp.Description("Scene to place into, defaults to the active scene")),
				mcp.WithString("tile_id", mcp.Description("Tile to replace when target is existing_tile")),
				mcp.WithString("actor_id", mcp.Description("Actor to update when target is actor_portrait or actor_token")),
				mcp.WithBoolean("normalize", mcp.Description("Make the white background of the result transparent")),
			},
			rectParams(),
			optionParams(),
		),
		tool("update_portrait",
			[]mcp.ToolOption{
				mcp.WithDescription("Edit an actor's current portrait or token image and store the result back on the actor"),
				mcp.WithString("actor_id", mcp.Description("Actor to update"), mcp.Required()),
				mcp.WithString("instruction", mcp.Description("Natural-language description of the edit"), mcp.Required()),
				mcp.WithString("field", mcp.Description("Which actor image receives the result"),
					mcp.Enum("actor_portrait", "actor_token")),
				mcp.WithArray("reference_paths", mcp.Description("Extra reference images, for multimodal backends"),
					mcp.Items(map[string]interface{}{"type": "string"})),
				mcp.WithBoolean("normalize", mcp.Description("Make the white background of the result transparent")),
			},
			optionParams(),
		),
		tool("edit_image",
			[]mcp.ToolOption{
				mcp.WithDescription("Edit an image file with the configured AI backend"),
				mcp.WithString("file_path", mcp.Description("Path to the image to edit"), mcp.Required()),
				mcp.WithString("instruction", mcp.Description("Natural-language description of the edit"), mcp.Required()),
				mcp.WithArray("reference_paths", mcp.Description("Extra reference images, for multimodal backends"),
					mcp.Items(map[string]interface{}{"type": "string"})),
				mcp.WithString("filename", mcp.Description("Optional output filename")),
			},
			optionParams(),
		),
		tool("remove_background",
			[]mcp.ToolOption{
				mcp.WithDescription("Make the near-white background of an image transparent"),
				mcp.WithString("file_path", mcp.Description("Path to the image"), mcp.Required()),
				mcp.WithString("algorithm", mcp.Description("floodfill clears only background connected to the border, threshold clears every near-white pixel"),
					mcp.Enum("floodfill", "threshold")),
				mcp.WithNumber("threshold", mcp.Description("Tolerance for floodfill or brightness cut-off for threshold")),
				mcp.WithString("filename", mcp.Description("Optional output filename")),
			},
		),
		tool("probe_backend",
			[]mcp.ToolOption{mcp.WithDescription("Check whether the configured edit backend is configured and reachable")},
		),
		tool("list_pending",
			[]mcp.ToolOption{mcp.WithDescription("List edits that are still running and the stage each has reached")},
		),
		tool("list_images",
			[]mcp.ToolOption{mcp.WithDescription("List stored captures and edits, newest first")},
		),
		tool("get_image",
			[]mcp.ToolOption{
				mcp.WithDescription("Get the path and metadata of a stored image"),
				mcp.WithString("id", mcp.Description("Image ID returned by an earlier call"), mcp.Required()),
			},
		),
	}
}
