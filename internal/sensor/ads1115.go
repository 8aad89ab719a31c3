package sensor

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

var ads1115Channels = [...]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// ADS1115 reads a single-ended channel of an ADS1115 on an I2C bus.
type ADS1115 struct {
	bus i2c.BusCloser
	dev *ads1x15.Dev
	pin ads1x15.PinADC
}

// NewADS1115 opens busName ("" picks the default bus, usually /dev/i2c-1)
// and prepares channel for one-shot conversions.
func NewADS1115(busName string, addr uint16, channel int) (*ADS1115, error) {
	if channel < 0 || channel >= len(ads1115Channels) {
		return nil, fmt.Errorf("ads1115: channel %d out of range", channel)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("i2c open %q: %w", busName, err)
	}

	opts := ads1x15.DefaultOpts
	opts.I2cAddress = addr
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("ads1115 at %#x: %w", addr, err)
	}

	pin, err := dev.PinForChannel(ads1115Channels[channel], 5*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		_ = dev.Halt()
		_ = bus.Close()
		return nil, fmt.Errorf("ads1115 channel %d: %w", channel, err)
	}

	slog.Info("sensor: ads1115 ready", "bus", busName, "addr", fmt.Sprintf("0x%02X", addr), "channel", channel)
	return &ADS1115{bus: bus, dev: dev, pin: pin}, nil
}

func (a *ADS1115) Read(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s, err := a.pin.Read()
	if err != nil {
		return 0, fmt.Errorf("ads1115 read: %w", err)
	}
	return int(s.Raw), nil
}

func (a *ADS1115) Close() error {
	if err := a.pin.Halt(); err != nil {
		slog.Warn("sensor: ads1115 pin halt", "error", err)
	}
	if err := a.dev.Halt(); err != nil {
		slog.Warn("sensor: ads1115 halt", "error", err)
	}
	return a.bus.Close()
}
