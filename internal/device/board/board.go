// Package board opens named Raspberry Pi pins through periph.io.
package board

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// ErrPinNotFound is returned for a pin name the host does not expose.
var ErrPinNotFound = errors.New("gpio pin not found")

var (
	initOnce sync.Once
	initErr  error
)

// Pin initializes the host drivers once and returns the pin called name,
// for example "GPIO23".
func Pin(name string) (gpio.PinIO, error) {
	initOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			initErr = fmt.Errorf("initialize host drivers: %w", err)
		}
	})

	if initErr != nil {
		return nil, initErr
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}

	return pin, nil
}
