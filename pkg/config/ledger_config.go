package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
)

// Ledger defaults.
const (
	DefaultEventBufferSize = 1024
	DefaultDedupCacheSize  = 10000
	// DefaultMaxSystemFee is 10 GAS.
	DefaultMaxSystemFee = 10_0000_0000
)

// Ledger is the configuration of the connection to the chain and the
// FlightSurety contracts living there.
type Ledger struct {
	// Endpoint is the HTTP(S) RPC endpoint of the node.
	Endpoint string `yaml:"Endpoint"`
	// WSEndpoint is the WebSocket endpoint used for notifications. It's
	// derived from Endpoint if not set.
	WSEndpoint     string        `yaml:"WSEndpoint"`
	DialTimeout    time.Duration `yaml:"DialTimeout"`
	RequestTimeout time.Duration `yaml:"RequestTimeout"`
	// AppContract and DataContract are contract hashes (LE, with or without
	// 0x prefix) or addresses.
	AppContract  string `yaml:"AppContract"`
	DataContract string `yaml:"DataContract"`
	// StartHeight is the block notifications are replayed from.
	StartHeight       uint32        `yaml:"StartHeight"`
	ReconnectInterval time.Duration `yaml:"ReconnectInterval"`
	EventBufferSize   int           `yaml:"EventBufferSize"`
	DedupCacheSize    int           `yaml:"DedupCacheSize"`
	// MaxSystemFee is the ceiling for the system fee of every transaction
	// sent, in GAS fractions.
	MaxSystemFee int64 `yaml:"MaxSystemFee"`
}

// Validate checks Ledger configuration.
func (l Ledger) Validate() error {
	if l.Endpoint == "" {
		return errors.New("empty Endpoint")
	}
	if _, err := l.GetWSEndpoint(); err != nil {
		return err
	}
	if _, err := l.AppHash(); err != nil {
		return fmt.Errorf("AppContract: %w", err)
	}
	if _, err := l.DataHash(); err != nil {
		return fmt.Errorf("DataContract: %w", err)
	}
	if l.EventBufferSize < 0 {
		return fmt.Errorf("negative EventBufferSize %d", l.EventBufferSize)
	}
	if l.DedupCacheSize < 1 {
		return fmt.Errorf("DedupCacheSize should be positive, got %d", l.DedupCacheSize)
	}
	if l.MaxSystemFee <= 0 {
		return fmt.Errorf("MaxSystemFee should be positive, got %d", l.MaxSystemFee)
	}
	return nil
}

// GetWSEndpoint returns the WebSocket endpoint, either the configured one or
// the one derived from Endpoint (http -> ws, https -> wss, "/ws" path).
func (l Ledger) GetWSEndpoint() (string, error) {
	u, err := url.Parse(l.Endpoint)
	if err != nil {
		return "", fmt.Errorf("bad Endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("bad Endpoint scheme %q, http or https expected", u.Scheme)
	}
	if l.WSEndpoint != "" {
		ws, err := url.Parse(l.WSEndpoint)
		if err != nil {
			return "", fmt.Errorf("bad WSEndpoint: %w", err)
		}
		if ws.Scheme != "ws" && ws.Scheme != "wss" {
			return "", fmt.Errorf("bad WSEndpoint scheme %q, ws or wss expected", ws.Scheme)
		}
		return l.WSEndpoint, nil
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

// AppHash returns the FlightSurety app contract hash.
func (l Ledger) AppHash() (util.Uint160, error) {
	return ParseHash(l.AppContract)
}

// DataHash returns the FlightSurety data contract hash.
func (l Ledger) DataHash() (util.Uint160, error) {
	return ParseHash(l.DataContract)
}

// ParseHash decodes a script hash given either as an LE hex string (optionally
// 0x-prefixed) or as a Neo address.
func ParseHash(s string) (util.Uint160, error) {
	if s == "" {
		return util.Uint160{}, errors.New("empty hash")
	}
	if u, err := util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x")); err == nil {
		return u, nil
	}
	u, err := address.StringToUint160(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("%q is neither a hash nor an address", s)
	}
	return u, nil
}
