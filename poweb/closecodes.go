package poweb

// WebSocket close codes observed or produced on the collection socket.
// Mirrored here rather than imported from gorilla/websocket so the public
// API surface doesn't leak a transport-library dependency.
const (
	closeNormalClosure  = 1000
	closePolicyViolation = 1008
	closeInternalErr     = 1011
)
