package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ctxmetab/kernel/desktopdriver"
	kschema "github.com/ctxmetab/kernel/schema"
)

var desktopActions = []string{
	"key", "type", "mouse_move", "left_click", "left_click_drag", "right_click",
	"middle_click", "double_click", "triple_click", "scroll", "hscroll", "wait",
	"terminate", "answer", "screenshot",
}

// DesktopTool implements spec.md §4.E's computer_use tool. The original
// source's `_wait` handler shadowed the `time` module with a parameter
// literally named `time` (flagged in spec.md §9); this input instead names
// the field `seconds`, so Execute can call desktopdriver.Driver.Wait
// unambiguously.
type DesktopTool struct {
	driver desktopdriver.Driver
}

func NewDesktopTool(driver desktopdriver.Driver) *DesktopTool {
	return &DesktopTool{driver: driver}
}

func (t *DesktopTool) Name() string { return "computer_use" }
func (t *DesktopTool) Description() string {
	return "Drives a desktop-like automation surface: keyboard, mouse, scrolling, screenshots, waiting, and terminal answer/terminate signals."
}

func (t *DesktopTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("action", kschema.Enum("The action to perform", desktopActions...)).Required(),
		kschema.Property("keys", kschema.String("Key or key combination for the key action, e.g. \"ctrl+c\"")),
		kschema.Property("text", kschema.String("Text to type, or the final answer text for the answer action")),
		kschema.Property("coordinate", kschema.Array("2-element [x, y] pixel coordinate", kschema.Number("x or y"))),
		kschema.Property("start_coordinate", kschema.Array("2-element [x, y] drag origin, for left_click_drag", kschema.Number("x or y"))),
		kschema.Property("pixels", kschema.Int("Scroll amount in pixels (positive or negative)")),
		kschema.Property("seconds", kschema.Number("Duration to sleep, for the wait action")),
		kschema.Property("status", kschema.String("Terminal status reported by the terminate action")),
	)
}

type desktopInput struct {
	Action          string    `json:"action"`
	Keys            string    `json:"keys"`
	Text            string    `json:"text"`
	Coordinate      []float64 `json:"coordinate"`
	StartCoordinate []float64 `json:"start_coordinate"`
	Pixels          int       `json:"pixels"`
	Seconds         float64   `json:"seconds"`
	Status          string    `json:"status"`
}

func (t *DesktopTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	var in desktopInput
	if err := json.Unmarshal(input, &in); err != nil {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, "invalid input", err))
	}

	switch in.Action {
	case "terminate":
		return marshalOK(map[string]any{"status": in.Status})
	case "answer":
		return marshalOK(map[string]any{"answer": in.Text})
	}

	var point desktopdriver.Point
	var err error
	if actionNeedsCoordinate(in.Action) {
		point, err = coordinateFromInput(in.Coordinate, in.Action)
		if err != nil {
			return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, err.Error(), err))
		}
	}

	var screenshot string
	switch in.Action {
	case "key":
		err = t.driver.Key(ctx, in.Keys)
	case "type":
		err = t.driver.Type(ctx, in.Text)
	case "mouse_move":
		err = t.driver.MouseMove(ctx, point)
	case "left_click":
		err = t.driver.Click(ctx, point, "left", 1)
	case "right_click":
		err = t.driver.Click(ctx, point, "right", 1)
	case "middle_click":
		err = t.driver.Click(ctx, point, "middle", 1)
	case "double_click":
		err = t.driver.Click(ctx, point, "left", 2)
	case "triple_click":
		err = t.driver.Click(ctx, point, "left", 3)
	case "left_click_drag":
		var from desktopdriver.Point
		from, err = coordinateFromInput(in.StartCoordinate, in.Action)
		if err == nil {
			err = t.driver.Drag(ctx, from, point)
		}
	case "scroll":
		err = t.driver.Scroll(ctx, point, 0, in.Pixels)
	case "hscroll":
		// Always sends a horizontal delta (dx); there is no fallback to a
		// vertical scroll for a driver that ignores horizontal wheel deltas.
		err = t.driver.Scroll(ctx, point, in.Pixels, 0)
	case "wait":
		err = t.driver.Wait(ctx, in.Seconds)
	case "screenshot":
		screenshot, err = t.driver.Screenshot(ctx)
	default:
		return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, "unknown action: "+in.Action, nil))
	}
	if err != nil {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, err.Error(), err))
	}

	if screenshot == "" && visualAction(in.Action) {
		var shotErr error
		screenshot, shotErr = t.driver.Screenshot(ctx)
		if shotErr != nil {
			return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, shotErr.Error(), shotErr))
		}
	}

	result := map[string]any{"action": in.Action}
	if screenshot != "" {
		result["screenshot"] = screenshot
	}
	return marshalOK(result)
}

// visualAction reports whether the action's output includes a screenshot
// per spec.md §4.E ("for visual actions, {action, screenshot: ...}").
func visualAction(action string) bool {
	switch action {
	case "terminate", "answer":
		return false
	default:
		return true
	}
}

func actionNeedsCoordinate(action string) bool {
	switch action {
	case "mouse_move", "left_click", "right_click", "middle_click", "double_click", "triple_click", "left_click_drag", "scroll", "hscroll":
		return true
	default:
		return false
	}
}

func coordinateFromInput(raw []float64, action string) (desktopdriver.Point, error) {
	if len(raw) != 2 {
		return desktopdriver.Point{}, fmt.Errorf("%s requires a 2-element numeric coordinate", action)
	}
	return desktopdriver.Point{X: int(raw[0]), Y: int(raw[1])}, nil
}
