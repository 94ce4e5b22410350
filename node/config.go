// Package node implements transparent node-to-node messaging: the TCP
// handshake, the sender/receiver/session-supervisor triad per connection,
// and the node registry mapping a peer's name to its live session. Grounded
// on hydra/src/node_remote.rs, with the routing decisions generalized from
// rutaka-n-ergonode/registrar.go's peers map and
// other_examples/092ec88e_gridgentoo-ergo__node-core.go.go's RouteSend.
package node

import (
	"net"
	"time"
)

// Config is the per-node configuration spec §6 names: identity, the
// handshake/heartbeat timing the session triad enforces, and the frame
// size ceiling the codec rejects against.
type Config struct {
	Name              string
	BroadcastAddress  *net.TCPAddr
	Cookie            []byte
	HandshakeTimeout  time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxFrameLen       uint32
	Version           uint16
}

// DefaultConfig returns a Config with the timing defaults this package
// uses when a loaded TOML document leaves a field at its zero value (see
// actorkit/config, which loads these from disk).
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		HandshakeTimeout:  5 * time.Second,
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTimeout:  5 * time.Second,
		MaxFrameLen:       1 << 20,
		Version:           1,
	}
}

// Validate checks the invariants §6 requires of a node config: in
// particular heartbeat_timeout must exceed heartbeat_interval, or a
// well-behaved peer's own Ping cadence would spuriously look dead.
func (c Config) Validate() error {
	if c.Name == "" {
		return errConfigField("name must not be empty")
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		return errConfigField("heartbeat_timeout must exceed heartbeat_interval")
	}
	if c.MaxFrameLen == 0 {
		return errConfigField("max_frame_len must be positive")
	}
	return nil
}

type configFieldError string

func (e configFieldError) Error() string { return string(e) }

func errConfigField(msg string) error { return configFieldError(msg) }
