// Package config loads a node's on-disk configuration: defaults from
// node.DefaultConfig, overridden by whatever a TOML file sets, the same
// defaults-then-file-merge shape internal/daemon/config/loader.go uses for
// devnetd.toml, built on the same github.com/pelletier/go-toml/v2 parser.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/nodecrew/actorkit/node"
)

// FileConfig mirrors node.Config with every field optional, so a document
// that only sets a handful of keys leaves the rest at their defaults.
// Grounded on loader.go's FileConfig-of-pointers pattern.
type FileConfig struct {
	Name              *string `toml:"name"`
	BroadcastAddress  *string `toml:"broadcast_address"`
	Cookie            *string `toml:"cookie"`
	HandshakeTimeout  *string `toml:"handshake_timeout"`
	HeartbeatInterval *string `toml:"heartbeat_interval"`
	HeartbeatTimeout  *string `toml:"heartbeat_timeout"`
	MaxFrameLen       *uint32 `toml:"max_frame_len"`
	Version           *uint16 `toml:"version"`
}

// Load reads path (TOML), merges it onto node.DefaultConfig(name), and
// validates the result. A missing file is not an error: the defaults
// alone are returned, same as loadFile's "no config file is OK".
func Load(path, name string) (node.Config, error) {
	cfg := node.DefaultConfig(name)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return node.Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var file FileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return node.Config{}, fmt.Errorf("config: invalid TOML in %s: %w", path, err)
	}

	if err := merge(&cfg, file); err != nil {
		return node.Config{}, err
	}
	return cfg, cfg.Validate()
}

func merge(cfg *node.Config, file FileConfig) error {
	if file.Name != nil {
		cfg.Name = *file.Name
	}
	if file.BroadcastAddress != nil {
		addr, err := net.ResolveTCPAddr("tcp", *file.BroadcastAddress)
		if err != nil {
			return fmt.Errorf("config: broadcast_address: %w", err)
		}
		cfg.BroadcastAddress = addr
	}
	if file.Cookie != nil {
		cfg.Cookie = []byte(*file.Cookie)
	}
	if file.HandshakeTimeout != nil {
		d, err := time.ParseDuration(*file.HandshakeTimeout)
		if err != nil {
			return fmt.Errorf("config: handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = d
	}
	if file.HeartbeatInterval != nil {
		d, err := time.ParseDuration(*file.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("config: heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if file.HeartbeatTimeout != nil {
		d, err := time.ParseDuration(*file.HeartbeatTimeout)
		if err != nil {
			return fmt.Errorf("config: heartbeat_timeout: %w", err)
		}
		cfg.HeartbeatTimeout = d
	}
	if file.MaxFrameLen != nil {
		cfg.MaxFrameLen = *file.MaxFrameLen
	}
	if file.Version != nil {
		cfg.Version = *file.Version
	}
	return nil
}
