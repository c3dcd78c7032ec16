package main

import (
	"fmt"
	"log"

	audiobridge "github.com/tphakala/go-audio-bridge"
)

// sliceDevice exposes the byte slice of one oto read callback through
// the SinkDevice interface.
type sliceDevice struct {
	buf           []byte
	bytesPerFrame int
}

func (d *sliceDevice) AvailableFrames() (int, error) {
	return len(d.buf) / d.bytesPerFrame, nil
}

func (d *sliceDevice) Acquire(frames int) ([]byte, error) {
	return d.buf[:frames*d.bytesPerFrame], nil
}

func (d *sliceDevice) Release(int) error {
	return nil
}

// bridgeReader adapts the bridge to oto's pull model: every Read is one
// sink pull event against the slice oto hands us.
type bridgeReader struct {
	bridge  *audiobridge.Bridge
	adapter *audiobridge.SinkAdapter
	device  *sliceDevice
}

func newBridgeReader(bridge *audiobridge.Bridge, cfg Config) (*bridgeReader, error) {
	if cfg.Bits != audiobridge.SinkBits16 {
		return nil, fmt.Errorf("oto output supports 16-bit only, got %d", cfg.Bits)
	}

	device := &sliceDevice{bytesPerFrame: 2 * cfg.Bits / 8}
	adapter, err := audiobridge.NewSinkAdapter(device, 2, cfg.Bits, cfg.TargetRate/50, log.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create sink adapter: %w", err)
	}
	adapter.SetGain(float32(cfg.Gain))

	return &bridgeReader{bridge: bridge, adapter: adapter, device: device}, nil
}

func (r *bridgeReader) Read(p []byte) (int, error) {
	// Anything the adapter cannot fill (partial trailing frame, pulls
	// beyond its scratch) stays silent.
	for i := range p {
		p[i] = 0
	}

	r.device.buf = p
	if err := r.adapter.OnPull(r.bridge); err != nil {
		return 0, err
	}
	return len(p), nil
}
