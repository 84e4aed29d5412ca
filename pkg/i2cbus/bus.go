// Package i2cbus exposes an I²C bus as a droid peripheral bus.
package i2cbus

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Bus implements droid.PeripheralBus. Transactions are serialized.
type Bus struct {
	mu  sync.Mutex
	bus i2c.Bus
	c   func() error
}

// New wraps an already open bus. Close is a no-op.
func New(bus i2c.Bus) *Bus {
	return &Bus{bus: bus}
}

// Open initializes the host drivers and opens the named bus. An empty name
// opens the first bus found.
func Open(name string) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host: %w", err)
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return &Bus{bus: bc, c: bc.Close}, nil
}

// Probe reads a single byte from addr; a device that stays silent fails
// the transaction.
func (b *Bus) Probe(addr uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf [1]byte
	if err := b.bus.Tx(addr, nil, buf[:]); err != nil {
		return fmt.Errorf("probe 0x%02x: %w", addr, err)
	}
	return nil
}

// WriteLevels writes the levels as one transaction.
func (b *Bus) WriteLevels(addr uint16, levels ...uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.bus.Tx(addr, levels, nil); err != nil {
		return fmt.Errorf("write 0x%02x: %w", addr, err)
	}
	return nil
}

func (b *Bus) String() string {
	return b.bus.String()
}

// Close releases the bus if it was opened by Open.
func (b *Bus) Close() error {
	if b.c == nil {
		return nil
	}
	return b.c()
}
