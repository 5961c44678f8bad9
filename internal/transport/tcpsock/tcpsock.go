// Package tcpsock binds internal/transport's stream Pipe to a TCP socket,
// grounded on crates/protocol-tokio/src/device.rs's Listener impl for
// tokio::net::TcpListener.
package tcpsock

import (
	"net"

	"github.com/wasefire/wfcore/internal/logging"
	"github.com/wasefire/wfcore/internal/transport"
)

// Listen binds addr (e.g. "127.0.0.1:0") and returns a Pipe driving the
// host protocol over it, plus the resolved listening address (useful when
// addr asks for an ephemeral port).
func Listen(addr string, push func(), log *logging.Logger) (*transport.Pipe, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	return transport.New(ln, push, log), ln.Addr(), nil
}
