package capture

import (
	"context"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// maxAncestorHops bounds the walk up the ancestor chain.
const maxAncestorHops = 8

// FocusProvider reports the screen rectangle of whatever currently holds keyboard focus.
type FocusProvider interface {
	FocusRect(ctx context.Context) (schemas.Rect, bool)
}

// FocusNode is one element in the focus hierarchy.
type FocusNode interface {
	// Bounds are the element's own bounds.
	Bounds() (schemas.Rect, bool)
	// WindowRect is the rectangle of the window that owns the element.
	WindowRect() (schemas.Rect, bool)
	// Parent returns the next ancestor, or nil at the top.
	Parent() FocusNode
}

// FocusSource returns the focused element, or nil when nothing has focus.
type FocusSource interface {
	Focused(ctx context.Context) (FocusNode, error)
}

// NoFocus never reports a focus rectangle.
type NoFocus struct{}

func (NoFocus) FocusRect(context.Context) (schemas.Rect, bool) { return schemas.Rect{}, false }

// ChainProvider tries the element bounds, then the owning window, then up to
// eight ancestors, returning the first usable rectangle.
type ChainProvider struct {
	source FocusSource
}

// NewChainProvider wraps a FocusSource.
func NewChainProvider(source FocusSource) *ChainProvider {
	return &ChainProvider{source: source}
}

func (p *ChainProvider) FocusRect(ctx context.Context) (schemas.Rect, bool) {
	node, err := p.source.Focused(ctx)
	if err != nil || node == nil {
		return schemas.Rect{}, false
	}
	if r, ok := node.Bounds(); ok && usable(r) {
		return r, true
	}
	if r, ok := node.WindowRect(); ok && usable(r) {
		return r, true
	}
	cur := node.Parent()
	for hops := 0; cur != nil && hops < maxAncestorHops; hops++ {
		if r, ok := cur.Bounds(); ok && usable(r) {
			return r, true
		}
		cur = cur.Parent()
	}
	return schemas.Rect{}, false
}

// usable rejects empty and degenerate one-pixel rectangles.
func usable(r schemas.Rect) bool {
	return !r.Empty() && r.Width() > 1 && r.Height() > 1
}
