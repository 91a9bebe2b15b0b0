package poweb

// StreamingMode controls how long the server keeps the parcel collection
// socket open.
type StreamingMode string

const (
	// StreamingModeKeepAlive (the default) has the server hold the
	// connection open indefinitely, pushing new parcels as they arrive.
	StreamingModeKeepAlive StreamingMode = "keep-alive"

	// StreamingModeCloseUponCompletion has the server send any currently
	// queued parcels and then close.
	StreamingModeCloseUponCompletion StreamingMode = "close-upon-completion"
)

// streamingModeHeaderName is the HTTP/WebSocket request header that carries the streaming
// mode.
const streamingModeHeaderName = "X-Relaynet-Streaming-Mode"

// HeaderValue returns the wire value sent in the X-Relaynet-Streaming-Mode
// header.
func (m StreamingMode) HeaderValue() string {
	if m == "" {
		return string(StreamingModeKeepAlive)
	}
	return string(m)
}
