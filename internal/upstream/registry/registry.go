// Package registry maps a game's protocol to the adapter that speaks it.
package registry

import (
	"fmt"
	"time"

	"github.com/pysugar/checkin-nexus/internal/checkin"
	"github.com/pysugar/checkin-nexus/internal/games"
	"github.com/pysugar/checkin-nexus/internal/upstream"
	"github.com/pysugar/checkin-nexus/internal/upstream/hoyolab"
	"github.com/pysugar/checkin-nexus/internal/upstream/skport"
)

type constructor func(d games.Descriptor, client *upstream.Client, delay time.Duration) (checkin.Adapter, error)

var constructors = map[string]constructor{
	games.ProtocolHoyolab: func(d games.Descriptor, c *upstream.Client, delay time.Duration) (checkin.Adapter, error) {
		return hoyolab.New(d, c, delay)
	},
	games.ProtocolSKPort: func(d games.Descriptor, c *upstream.Client, delay time.Duration) (checkin.Adapter, error) {
		return skport.New(d, c, delay)
	},
}

// Factory returns an AdapterFactory that shares client across every adapter
// it builds.
func Factory(client *upstream.Client, signinRetryDelay time.Duration) checkin.AdapterFactory {
	if client == nil {
		client = upstream.NewClient(upstream.DefaultTimeout)
	}
	return func(d games.Descriptor) (checkin.Adapter, error) {
		build, ok := constructors[d.Protocol]
		if !ok {
			return nil, fmt.Errorf("no adapter for protocol %q", d.Protocol)
		}
		return build(d, client, signinRetryDelay)
	}
}

// Protocols lists the protocols an adapter exists for.
func Protocols() []string {
	return []string{games.ProtocolHoyolab, games.ProtocolSKPort}
}
