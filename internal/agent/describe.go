// internal/agent/describe.go
package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// Describe renders an action as the one-line form used in the step history
// and in LAST_ACTION. Normalized coordinates are shown as resolved pixels.
func Describe(a schemas.Action, res grounding.Resolver) string {
	switch a.Kind {
	case schemas.KindRequestCrop, schemas.KindPoint:
		return describeRegion(a.Kind.String(), a, res, false)
	case schemas.KindAim:
		return describeRegion("aim", a, res, true)
	case schemas.KindMove, schemas.KindClick, schemas.KindDoubleClick:
		return describePointer(a, res)
	case schemas.KindScroll:
		return fmt.Sprintf("scroll dy=%d", a.ScrollDY)
	case schemas.KindKeys:
		return fmt.Sprintf("keys [%s]", strings.Join(a.Keys, "+"))
	case schemas.KindTypeText:
		text := ""
		if a.Text != nil {
			text = *a.Text
		}
		return `type_text "` + text + `"`
	case schemas.KindWait:
		return fmt.Sprintf("wait %ds", a.WaitOrDefault())
	case schemas.KindDone:
		return "done"
	default:
		return "unknown " + a.Kind.String()
	}
}

// describeRegion covers aim, point and request_crop. An aim prefers its box
// over its crop; the zoom kinds prefer the crop.
func describeRegion(prefix string, a schemas.Action, res grounding.Resolver, aim bool) string {
	box, hasBox := a.Target.(schemas.BBoxCoord)
	switch {
	case aim && hasBox:
		return prefix + " bbox=" + box.Box.String()
	case a.Crop != nil && aim:
		return prefix + "(crop) bbox=" + a.Crop.String()
	case a.Crop != nil:
		return prefix + " bbox=" + a.Crop.String()
	case hasBox:
		return prefix + " bbox=" + box.Box.String()
	}
	switch c := a.Target.(type) {
	case schemas.PixelCoord:
		return fmt.Sprintf("%s center=(%d,%d)", prefix, c.X, c.Y)
	case schemas.NormalizedCoord:
		p := res.NormalizedToPixels(c.X, c.Y)
		return fmt.Sprintf("%s center~(%d,%d)", prefix, p.X, p.Y)
	}
	return prefix + " (missing parameters)"
}

func describePointer(a schemas.Action, res grounding.Resolver) string {
	suffix := ""
	switch a.Kind {
	case schemas.KindClick:
		suffix = " " + string(a.ButtonOrDefault())
	case schemas.KindDoubleClick:
		suffix = " (double)"
	}
	name := a.Kind.String()
	switch c := a.Target.(type) {
	case schemas.BBoxCoord:
		p := c.Box.Center()
		return fmt.Sprintf("%s bbox->(%d,%d)%s", name, p.X, p.Y, suffix)
	case schemas.PixelCoord:
		return fmt.Sprintf("%s (%d,%d)%s", name, c.X, c.Y, suffix)
	case schemas.NormalizedCoord:
		p := res.NormalizedToPixels(c.X, c.Y)
		return fmt.Sprintf("%s (%d,%d)%s", name, p.X, p.Y, suffix)
	}
	return fmt.Sprintf("%s (coords: missing)%s", name, suffix)
}
