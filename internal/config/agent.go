package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	LinkDriverNMCLI  = "nmcli"
	LinkDriverIface  = "iface"
	LinkDriverStatic = "static"

	SensorDriverADS1115 = "ads1115"
	SensorDriverSerial  = "serial"
	SensorDriverSim     = "sim"
)

// Agent configures the telemetry agent. Credentials and the endpoint live
// here instead of in the binary.
type Agent struct {
	Common

	DeviceID    string
	EndpointURL string

	WiFiSSID       string
	WiFiPassphrase string
	LinkDriver     string
	LinkInterface  string

	ReconnectInterval time.Duration
	TickInterval      time.Duration
	HTTPTimeout       time.Duration

	SensorDriver     string
	SensorI2CBus     string
	SensorI2CAddress uint16
	SensorChannel    int
	SensorSerialPort string
	SensorSerialBaud int
	SensorSimMax     int

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string

	MetricsAddr string
}

// MQTTEnabled reports whether readings should be mirrored to a broker.
func (c Agent) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

func LoadAgentFromEnv() (Agent, error) {
	common, err := loadCommon()
	if err != nil {
		return Agent{}, err
	}

	deviceID := env("DEVICE_ID")
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	endpoint := env("ENDPOINT_URL")
	if endpoint == "" {
		return Agent{}, fmt.Errorf("ENDPOINT_URL is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return Agent{}, fmt.Errorf("invalid ENDPOINT_URL %q: %w", endpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Agent{}, fmt.Errorf("invalid ENDPOINT_URL %q (want http(s)://host/path)", endpoint)
	}

	linkDriver := envOr("LINK_DRIVER", LinkDriverIface)
	switch linkDriver {
	case LinkDriverNMCLI, LinkDriverIface, LinkDriverStatic:
	default:
		return Agent{}, fmt.Errorf("invalid LINK_DRIVER %q (allowed: nmcli, iface, static)", linkDriver)
	}
	ssid := env("WIFI_SSID")
	passphrase := env("WIFI_PASSPHRASE")
	if linkDriver == LinkDriverNMCLI && (ssid == "" || passphrase == "") {
		return Agent{}, fmt.Errorf("WIFI_SSID and WIFI_PASSPHRASE are required for LINK_DRIVER=nmcli")
	}

	reconnectInterval, err := envPositiveDuration("RECONNECT_INTERVAL", "1s")
	if err != nil {
		return Agent{}, err
	}
	tickInterval, err := envPositiveDuration("TICK_INTERVAL", "1s")
	if err != nil {
		return Agent{}, err
	}
	httpTimeout, err := envPositiveDuration("HTTP_TIMEOUT", "10s")
	if err != nil {
		return Agent{}, err
	}

	sensorDriver := envOr("SENSOR_DRIVER", SensorDriverADS1115)
	switch sensorDriver {
	case SensorDriverADS1115, SensorDriverSerial, SensorDriverSim:
	default:
		return Agent{}, fmt.Errorf("invalid SENSOR_DRIVER %q (allowed: ads1115, serial, sim)", sensorDriver)
	}

	addrStr := envOr("SENSOR_I2C_ADDRESS", "0x48")
	addr, err := strconv.ParseUint(addrStr, 0, 16)
	if err != nil {
		return Agent{}, fmt.Errorf("invalid SENSOR_I2C_ADDRESS %q: %w", addrStr, err)
	}

	channel, err := envInt("SENSOR_CHANNEL", 0)
	if err != nil {
		return Agent{}, err
	}
	if channel < 0 || channel > 3 {
		return Agent{}, fmt.Errorf("SENSOR_CHANNEL must be 0..3, got %d", channel)
	}

	serialPort := env("SENSOR_SERIAL_PORT")
	if sensorDriver == SensorDriverSerial && serialPort == "" {
		return Agent{}, fmt.Errorf("SENSOR_SERIAL_PORT is required for SENSOR_DRIVER=serial")
	}
	serialBaud, err := envInt("SENSOR_SERIAL_BAUD", 115200)
	if err != nil {
		return Agent{}, err
	}

	simMax, err := envInt("SENSOR_SIM_MAX", 1023)
	if err != nil {
		return Agent{}, err
	}
	if simMax <= 0 {
		return Agent{}, fmt.Errorf("SENSOR_SIM_MAX must be positive, got %d", simMax)
	}

	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Agent{}, err
	}

	return Agent{
		Common:            common,
		DeviceID:          deviceID,
		EndpointURL:       endpoint,
		WiFiSSID:          ssid,
		WiFiPassphrase:    passphrase,
		LinkDriver:        linkDriver,
		LinkInterface:     envOr("LINK_INTERFACE", "wlan0"),
		ReconnectInterval: reconnectInterval,
		TickInterval:      tickInterval,
		HTTPTimeout:       httpTimeout,
		SensorDriver:      sensorDriver,
		SensorI2CBus:      env("SENSOR_I2C_BUS"),
		SensorI2CAddress:  uint16(addr),
		SensorChannel:     channel,
		SensorSerialPort:  serialPort,
		SensorSerialBaud:  serialBaud,
		SensorSimMax:      simMax,
		MQTTBroker:        env("MQTT_BROKER"),
		MQTTPort:          mqttPort,
		MQTTClientID:      envOr("MQTT_CLIENT_ID", "kneeflexiq-"+deviceID),
		MetricsAddr:       env("METRICS_ADDR"),
	}, nil
}
