// internal/agent/prompts.go
package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/capture"
	"github.com/xkilldash9x/deskpilot/internal/delta"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// PromptRules are the settings that shape the system prompts.
type PromptRules struct {
	// GridStep is the overlay grid spacing in pixels, 0 when no grid is drawn.
	GridStep       int
	AimExpireDelta float64
	FocusCropSize  int
}

// VerifyRules is the system prompt of the verification round.
const VerifyRules = "You are a strict verifier. Based on the image, decide whether the GOAL is achieved. Return 'yes' only if the screen makes it unambiguous."

// BuildSystemRules renders the control-mode system prompt.
func BuildSystemRules(r PromptRules, mouseAllowed bool) string {
	var sb strings.Builder
	line := func(s string) { sb.WriteString(s); sb.WriteByte('\n') }

	line("You are an agent that controls a Windows 10/11 computer strictly via the UI.")
	line("Return EXACTLY ONE action per round as JSON:")
	line("- keys, type_text, move, click, double_click, scroll, request_crop, point, aim, wait, done")
	line("")
	line("Important: The screenshot may contain a white+red rounded rectangle overlay - that's the element with current keyboard focus (FOCUS_UIA). Treat it as a reliable source of truth.")
	line("")
	line("Every action MUST include a short 'note' (1-2 sentences explaining your decision).")
	line("")
	line("Guidelines:")
	line("- Work in pixel coordinates (0,0 is top-left). When clicking, aim at the center of the bbox.")
	line(fmt.Sprintf("- MOUSE_ALLOWED: %t (when false - do NOT use the mouse).", mouseAllowed))
	line("- When MOUSE_ALLOWED is false, move/click/double_click/scroll are not allowed - use keyboard instead.")
	line("- Strongly prefer the keyboard. Use TAB/Shift+TAB, Ctrl+L/F6 (address), Ctrl+K/E (search), Ctrl+W, etc.")
	line("- For text input use 'type_text' (full UNICODE string). Use 'keys' only for shortcuts and function keys.")
	line("- 'scroll_dy' positive scrolls down, negative scrolls up.")
	line("")
	line("- One action per round. Decide solely from the screenshot and metadata (SCREEN_SIZE, CURSOR_POS, FOCUS_UIA/FOCUS_CROP, DELTA/REPEAT).")
	line("- If the target is ambiguous, prefer actions relative to FOCUS_UIA (e.g., TAB/Shift+TAB or aim at the center of FOCUS_UIA).")
	line("")
	line("- Return 'done' ONLY when the screen state clearly confirms the goal (there will be an additional verification).")
	line("- DO NOT use machine-specific taskbar/app-number shortcuts: Win+1..9, Super+1..9, etc.")
	line("- Prefer deterministic strategies. If a proposed action may be nondeterministic - choose an alternative.")
	line("")
	line("- BEFORE any 'click'/'double_click' you MUST set an 'aim' (the target region). Clicks outside the active AIM are ignored.")
	line("- After setting AIM, ensure the intended target is visible within the AIM frame. If not - re-aim until it is.")
	line(fmt.Sprintf("- After a large visual change (LAST_STEP_DELTA > %s) the previous AIM expires - set a new one before clicking.", formatDecimal(r.AimExpireDelta, 3)))
	line(fmt.Sprintf("- Define 'aim' via 'bbox' (preferred) or a point (x/y or x_px/y_px) - in the latter case the crop is a square of ~%dpx.", r.FocusCropSize))
	line("- 'request_crop' and 'point' are only for requesting zoom/homing; they do NOT replace 'aim'.")
	line("- If an active AIM exists, in 'click'/'double_click' you MUST PROVIDE COORDINATES inside AIM (do not rely on implicit centering).")
	line("- 'double_click' means a standard double click (e.g., launch an app). 'button:right' in 'click' = e.g., context menu.")
	line("")
	line("- Use 'wait' when a long-running process is visible (e.g., progress bar, installer, render, upload).")
	line("  Set 'wait_seconds' to a realistic duration; during 'wait' no screenshots are taken. Reassess the screen afterwards.")
	writeGridRules(&sb, r.GridStep)
	return sb.String()
}

// BuildQaSystemRules renders the question-mode system prompt.
func BuildQaSystemRules(r PromptRules) string {
	var sb strings.Builder
	sb.WriteString("You are a screen analyst. Answer strictly based on the screenshot, metadata (SCREEN_SIZE, CURSOR_POS), and the user's question.\n")
	sb.WriteString("The image may include a white+red rounded rectangle overlay - that's the element with current keyboard focus (FOCUS_UIA). Treat it as a reliable focus indicator.\n")
	sb.WriteString("Return BOTH: a short textual answer and location metadata for the most relevant element. Add a short 'note'.\n")
	sb.WriteString("Always think in pixel coordinates (0,0 top-left). If a location makes sense, choose the center of the visible bbox.\n")
	sb.WriteString("If a location would not make sense, the location fields may be null.\n")
	writeGridRules(&sb, r.GridStep)
	return sb.String()
}

func writeGridRules(sb *strings.Builder, step int) {
	if step <= 0 {
		return
	}
	fmt.Fprintf(sb, "\n- The screenshot contains a semi-transparent grid every %d pixels; use it to provide precise x_px/y_px.\n", step)
	sb.WriteString("- The origin (0,0) is the top-left corner of the screen.\n")
}

// MetaInput is the loop state rendered into the meta block of a decision round.
type MetaInput struct {
	State             delta.State
	NoChangeThreshold float64
	// LastAction is the previously executed action, nil on the first step.
	LastAction *schemas.Action
	Aim        *schemas.Rect
	Resolver   grounding.Resolver
}

// MetaLines renders the stagnation, repeat and AIM block appended to the history tail.
func MetaLines(m MetaInput) string {
	last := "N/A"
	if m.LastAction != nil {
		last = Describe(*m.LastAction, m.Resolver)
	}
	aim := "false"
	if m.Aim != nil {
		aim = fmt.Sprintf("true [%d,%d]-[%d,%d]", m.Aim.Left, m.Aim.Top, m.Aim.Right, m.Aim.Bottom)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "LAST_STEP_DELTA: %s (threshold=%s)\n", delta.Format(m.State.LastDelta), strconv.FormatFloat(m.NoChangeThreshold, 'f', -1, 64))
	fmt.Fprintf(&sb, "STAGNATION_STEPS: %d\n", m.State.NoChangeSteps)
	fmt.Fprintf(&sb, "REPEAT_COUNT: %d\n", m.State.RepeatCount)
	fmt.Fprintf(&sb, "LAST_ACTION: %s\n", last)
	fmt.Fprintf(&sb, "AIM_ACTIVE: %s", aim)
	return sb.String()
}

// BuildDecisionPrompt renders the user text of a decision round.
func BuildDecisionPrompt(dc DecisionContext) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "GOAL: %s\n", dc.Goal)
	sb.WriteString("HISTORY:\n")
	sb.WriteString(dc.History)
	sb.WriteByte('\n')
	writeScreenMeta(&sb, dc.Shot.Frame.Screen, dc.Cursor)
	fmt.Fprintf(&sb, "MOUSE_ALLOWED: %t\n", dc.MouseAllowed)
	writeFocusMeta(&sb, dc.Shot.Focus)
	if c := dc.Shot.Crop; c != nil {
		fmt.Fprintf(&sb, "FOCUS_CROP: left=%d, top=%d, width=%d, height=%d (px).\n", c.Left, c.Top, c.Width(), c.Height())
	}
	return sb.String()
}

// BuildVerifyPrompt renders the user text of a verification round.
func BuildVerifyPrompt(goal string, screen schemas.Screen) string {
	return fmt.Sprintf("GOAL: %s\nSCREEN_SIZE: width=%d, height=%d (px)\n", goal, screen.Width, screen.Height)
}

// BuildQAPrompt renders the user text of a question round.
func BuildQAPrompt(q QARequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n", StripAskPrefix(q.Question))
	writeScreenMeta(&sb, q.Shot.Frame.Screen, q.Cursor)
	writeFocusMeta(&sb, q.Shot.Focus)
	return sb.String()
}

func writeScreenMeta(sb *strings.Builder, screen schemas.Screen, cur capture.CursorReport) {
	fmt.Fprintf(sb, "SCREEN_SIZE: width=%d, height=%d (px)\n", screen.Width, screen.Height)
	fmt.Fprintf(sb, "CURSOR_POS: x=%d, y=%d px | normalized=(%s,%s)\n",
		cur.Pixel.X, cur.Pixel.Y, formatDecimal(cur.NX, 3), formatDecimal(cur.NY, 3))
}

func writeFocusMeta(sb *strings.Builder, focus *schemas.Rect) {
	if focus == nil {
		sb.WriteString("FOCUS_UIA: none\n")
		return
	}
	fmt.Fprintf(sb, "FOCUS_UIA: left=%d, top=%d, right=%d, bottom=%d (px)\n", focus.Left, focus.Top, focus.Right, focus.Bottom)
	c := focus.Center()
	fmt.Fprintf(sb, "FOCUS_UIA_CENTER: x=%d, y=%d (px)\n", c.X, c.Y)
}

// formatDecimal renders v with at most places decimals and no trailing zeros.
func formatDecimal(v float64, places int) string {
	p := math.Pow10(places)
	return strconv.FormatFloat(math.Round(v*p)/p, 'f', -1, 64)
}
