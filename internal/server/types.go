// Package server defines the collaborator interfaces and utility helpers that
// are reused across client and hub logic.
package server

import (
	"context"
	"strings"

	"github.com/Tyrowin/chatrouter/internal/rooms"
	"github.com/Tyrowin/chatrouter/internal/store"
	"github.com/Tyrowin/chatrouter/internal/wire"
)

// Dispatcher consumes decoded inbound frames and connection teardown.
// Handle is called from the connection's read loop, so calls for one
// connection never overlap.
type Dispatcher interface {
	Handle(ctx context.Context, connID string, env wire.Envelope)
	Disconnect(connID string) (store.UserID, bool)
}

// Attacher makes clients reachable through the multicast fabric.
type Attacher interface {
	Attach(connID string, ep rooms.Endpoint)
	Detach(connID string) []string
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
