package signaling

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// GorillaUpgrader adapts websocket.Upgrader to the Upgrader interface.
type GorillaUpgrader struct {
	upgrader websocket.Upgrader
}

// NewGorillaUpgrader creates an upgrader that accepts any origin. The
// signaling protocol carries no credentials, so cross-origin clients are
// allowed.
func NewGorillaUpgrader() *GorillaUpgrader {
	return &GorillaUpgrader{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Upgrade implements Upgrader.
func (g *GorillaUpgrader) Upgrade(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (Conn, error) {
	conn, err := g.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
