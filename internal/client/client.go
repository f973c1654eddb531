// Package client implements the thin side of the command socket: dial,
// send one command, read one reply.
package client

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/eel-brah/kokorodoki/internal/protocol"
)

// DefaultAddr is where a locally running daemon listens.
const DefaultAddr = "127.0.0.1:5561"

const dialTimeout = 3 * time.Second

// Send delivers one command to the daemon and returns its reply. The
// connection is closed before returning.
func Send(addr string, cmd protocol.Command) (protocol.Reply, error) {
	var rep protocol.Reply

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return rep, fmt.Errorf("daemon not reachable at %s: %w", addr, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return rep, fmt.Errorf("send command: %w", err)
	}
	if err := json.NewDecoder(conn).Decode(&rep); err != nil {
		return rep, fmt.Errorf("read reply: %w", err)
	}
	return rep, nil
}
