//go:build !linux

package nowplaying

import "cadence/src/player"

// Adapter is a no-op on platforms without MPRIS.
type Adapter struct{}

func New(_ *player.Controller) (*Adapter, error) {
	return &Adapter{}, nil
}

func (a *Adapter) Close() error {
	return nil
}
