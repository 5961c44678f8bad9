// Package unixsock binds internal/transport's stream Pipe to a Unix domain
// socket, grounded on crates/protocol-tokio/src/device.rs's
// Listener impl for tokio::net::UnixListener.
package unixsock

import (
	"net"
	"os"

	"github.com/wasefire/wfcore/internal/logging"
	"github.com/wasefire/wfcore/internal/transport"
)

// Listen binds a Unix domain socket at path and returns a Pipe driving the
// host protocol over it. Any stale socket file at path is removed first.
func Listen(path string, push func(), log *logging.Logger) (*transport.Pipe, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return transport.New(ln, push, log), nil
}
