package ledger

// Frames and ReadMessage expose the HID framing to the fake device in tests
var (
	Frames      = frames
	ReadMessage = readMessage
)
