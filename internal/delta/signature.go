package delta

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/grounding"
)

// quantum is the grid, in pixels, pointer targets are snapped to so that
// near-identical clicks share a signature.
const quantum = 16

// maxLiteralText is the longest text embedded verbatim in a signature; longer
// text is fingerprinted by digest.
const maxLiteralText = 64

// Signature is a coarse fingerprint of an action used for repeat detection.
func Signature(a schemas.Action, res grounding.Resolver) string {
	switch a.Kind {
	case schemas.KindKeys:
		parts := make([]string, len(a.Keys))
		for i, k := range a.Keys {
			parts[i] = strings.ToLower(k)
		}
		return "keys:" + strings.Join(parts, "+")
	case schemas.KindTypeText:
		return "type_text:" + textKey(a.Text)
	case schemas.KindScroll:
		return fmt.Sprintf("scroll:%d", a.ScrollDY)
	case schemas.KindWait:
		return fmt.Sprintf("wait:%d", a.WaitOrDefault())
	case schemas.KindMove, schemas.KindClick, schemas.KindDoubleClick:
		// A missing coordinate fingerprints as the origin.
		p, _ := res.ResolvePoint(a.Target)
		return fmt.Sprintf("%s:%d,%d", a.Kind, snap(p.X), snap(p.Y))
	case schemas.KindAim:
		if r, ok := res.ResolveAimRect(a); ok {
			c := r.Center()
			return fmt.Sprintf("aim:%d,%d", snap(c.X), snap(c.Y))
		}
		return "aim"
	default:
		return a.Kind.String()
	}
}

func textKey(text *string) string {
	if text == nil {
		return ""
	}
	if len(*text) <= maxLiteralText {
		return *text
	}
	sum := sha256.Sum256([]byte(*text))
	return "#" + hex.EncodeToString(sum[:8])
}

// snap truncates toward zero onto the quantum grid.
func snap(v int) int {
	return (v / quantum) * quantum
}
