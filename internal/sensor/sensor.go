// Package sensor reads the raw flex value from whatever ADC the device has.
package sensor

import (
	"context"
	"errors"
	"fmt"

	"kneeflexiq/internal/config"
)

// ErrNoSample is returned when a driver has not produced a value yet.
var ErrNoSample = errors.New("sensor: no sample available")

// Sensor yields one raw, unit-less ADC count per Read.
type Sensor interface {
	Read(ctx context.Context) (int, error)
	Close() error
}

// Open builds the driver selected by cfg.SensorDriver.
func Open(cfg config.Agent) (Sensor, error) {
	switch cfg.SensorDriver {
	case config.SensorDriverADS1115:
		return NewADS1115(cfg.SensorI2CBus, cfg.SensorI2CAddress, cfg.SensorChannel)
	case config.SensorDriverSerial:
		return OpenSerial(cfg.SensorSerialPort, cfg.SensorSerialBaud)
	case config.SensorDriverSim:
		return NewSim(cfg.SensorSimMax), nil
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.SensorDriver)
	}
}
