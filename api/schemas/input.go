package schemas

// MouseEventType defines the type of a synthetic pointer event.
type MouseEventType string

const (
	MouseMove    MouseEventType = "mouseMoved"
	MousePress   MouseEventType = "mousePressed"
	MouseRelease MouseEventType = "mouseReleased"
	MouseWheel   MouseEventType = "mouseWheel"
)

// MouseEventData encapsulates one pointer event.
type MouseEventData struct {
	Type   MouseEventType `json:"type"`
	X      int            `json:"x"`
	Y      int            `json:"y"`
	Button MouseButton    `json:"button,omitempty"`
	// WheelDelta is in wheel units, positive scrolls down.
	WheelDelta int `json:"wheelDelta,omitempty"`
}

// KeyEventType distinguishes key down from key up.
type KeyEventType string

const (
	KeyDown KeyEventType = "keyDown"
	KeyUp   KeyEventType = "keyUp"
)

// KeyEventData is one keyboard event. Unicode events carry Char and ignore VK.
type KeyEventData struct {
	Type    KeyEventType `json:"type"`
	VK      uint16       `json:"vk,omitempty"`
	Char    rune         `json:"char,omitempty"`
	Unicode bool         `json:"unicode,omitempty"`
}
