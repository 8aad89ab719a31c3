package config

import (
	"log/slog"
	"testing"
	"time"
)

// setAgentEnv sets the minimum environment for LoadAgentFromEnv to succeed.
func setAgentEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "LOG_LEVEL", "LOG_FILE", "DEVICE_ID", "WIFI_SSID", "WIFI_PASSPHRASE",
		"LINK_DRIVER", "LINK_INTERFACE", "RECONNECT_INTERVAL", "TICK_INTERVAL", "HTTP_TIMEOUT",
		"SENSOR_DRIVER", "SENSOR_I2C_BUS", "SENSOR_I2C_ADDRESS", "SENSOR_CHANNEL",
		"SENSOR_SERIAL_PORT", "SENSOR_SERIAL_BAUD", "SENSOR_SIM_MAX",
		"MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("ENDPOINT_URL", "https://example.com/prod/flex")
}

func TestLoadAgentFromEnv_Defaults(t *testing.T) {
	setAgentEnv(t)

	got, err := LoadAgentFromEnv()
	if err != nil {
		t.Fatalf("LoadAgentFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.DeviceID == "" {
		t.Error("DeviceID is empty, want generated id")
	}
	if got.LinkDriver != LinkDriverIface {
		t.Errorf("LinkDriver = %q, want %q", got.LinkDriver, LinkDriverIface)
	}
	if got.LinkInterface != "wlan0" {
		t.Errorf("LinkInterface = %q, want wlan0", got.LinkInterface)
	}
	if got.ReconnectInterval != time.Second || got.TickInterval != time.Second {
		t.Errorf("intervals = %v/%v, want 1s/1s", got.ReconnectInterval, got.TickInterval)
	}
	if got.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v, want 10s", got.HTTPTimeout)
	}
	if got.SensorDriver != SensorDriverADS1115 {
		t.Errorf("SensorDriver = %q, want %q", got.SensorDriver, SensorDriverADS1115)
	}
	if got.SensorI2CAddress != 0x48 {
		t.Errorf("SensorI2CAddress = %#x, want 0x48", got.SensorI2CAddress)
	}
	if got.SensorSerialBaud != 115200 {
		t.Errorf("SensorSerialBaud = %d, want 115200", got.SensorSerialBaud)
	}
	if got.MQTTEnabled() {
		t.Error("MQTTEnabled() = true, want false without MQTT_BROKER")
	}
	if got.MQTTClientID != "kneeflexiq-"+got.DeviceID {
		t.Errorf("MQTTClientID = %q", got.MQTTClientID)
	}
}

func TestLoadAgentFromEnv_EndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{name: "missing", in: "", wantErr: true},
		{name: "no scheme", in: "example.com/flex", wantErr: true},
		{name: "ftp", in: "ftp://example.com/flex", wantErr: true},
		{name: "https", in: "https://abc.execute-api.eu-west-1.amazonaws.com/prod/flex"},
		{name: "http with port", in: "http://127.0.0.1:8080/flex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAgentEnv(t)
			t.Setenv("ENDPOINT_URL", tt.in)

			got, err := LoadAgentFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadAgentFromEnv() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadAgentFromEnv() error = %v, want nil", err)
			}
			if got.EndpointURL != tt.in {
				t.Errorf("EndpointURL = %q, want %q", got.EndpointURL, tt.in)
			}
		})
	}
}

func TestLoadAgentFromEnv_NMCLIRequiresCredentials(t *testing.T) {
	setAgentEnv(t)
	t.Setenv("LINK_DRIVER", "nmcli")
	t.Setenv("WIFI_SSID", "home")

	if _, err := LoadAgentFromEnv(); err == nil {
		t.Fatal("LoadAgentFromEnv() error = nil, want missing passphrase error")
	}

	t.Setenv("WIFI_PASSPHRASE", "secret")
	got, err := LoadAgentFromEnv()
	if err != nil {
		t.Fatalf("LoadAgentFromEnv() error = %v, want nil", err)
	}
	if got.WiFiSSID != "home" || got.WiFiPassphrase != "secret" {
		t.Errorf("credentials = %q/%q", got.WiFiSSID, got.WiFiPassphrase)
	}
}

func TestLoadAgentFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "app env", key: "APP_ENV", value: "staging"},
		{name: "log level", key: "LOG_LEVEL", value: "loud"},
		{name: "link driver", key: "LINK_DRIVER", value: "bluetooth"},
		{name: "sensor driver", key: "SENSOR_DRIVER", value: "thermometer"},
		{name: "zero tick", key: "TICK_INTERVAL", value: "0s"},
		{name: "negative reconnect", key: "RECONNECT_INTERVAL", value: "-1s"},
		{name: "bad timeout", key: "HTTP_TIMEOUT", value: "soon"},
		{name: "i2c address", key: "SENSOR_I2C_ADDRESS", value: "0xZZ"},
		{name: "channel out of range", key: "SENSOR_CHANNEL", value: "4"},
		{name: "serial without port", key: "SENSOR_DRIVER", value: "serial"},
		{name: "sim max", key: "SENSOR_SIM_MAX", value: "0"},
		{name: "mqtt port", key: "MQTT_PORT", value: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAgentEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := LoadAgentFromEnv(); err == nil {
				t.Fatalf("LoadAgentFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoadAgentFromEnv_Overrides(t *testing.T) {
	setAgentEnv(t)
	t.Setenv("DEVICE_ID", "knee-left")
	t.Setenv("SENSOR_DRIVER", "sim")
	t.Setenv("SENSOR_SIM_MAX", "4095")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("MQTT_BROKER", "localhost")
	t.Setenv("MQTT_PORT", "1884")

	got, err := LoadAgentFromEnv()
	if err != nil {
		t.Fatalf("LoadAgentFromEnv() error = %v, want nil", err)
	}
	if got.DeviceID != "knee-left" {
		t.Errorf("DeviceID = %q, want knee-left", got.DeviceID)
	}
	if got.SensorSimMax != 4095 {
		t.Errorf("SensorSimMax = %d, want 4095", got.SensorSimMax)
	}
	if got.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v, want 250ms", got.TickInterval)
	}
	if !got.MQTTEnabled() || got.MQTTPort != 1884 {
		t.Errorf("mqtt = %v:%d", got.MQTTBroker, got.MQTTPort)
	}
	if got.MQTTClientID != "kneeflexiq-knee-left" {
		t.Errorf("MQTTClientID = %q", got.MQTTClientID)
	}
}

func TestLoadServerFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"APP_ENV", "LOG_LEVEL", "HTTP_ADDR", "DB_DRIVER", "DB_DSN", "SQLITE_PATH",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "DB_LOG_SQL", "MODEL_PATH"} {
		t.Setenv(k, "")
	}

	got, err := LoadServerFromEnv()
	if err != nil {
		t.Fatalf("LoadServerFromEnv() error = %v, want nil", err)
	}
	if got.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", got.HTTPAddr, ":8080")
	}
	if got.Driver != "sqlite3" {
		t.Errorf("Driver = %q, want sqlite3", got.Driver)
	}
	if got.MaxOpenConns != 1 || got.MaxIdleConns != 1 {
		t.Errorf("conns = %d/%d, want 1/1", got.MaxOpenConns, got.MaxIdleConns)
	}
	if got.LogSQL {
		t.Error("LogSQL = true, want false")
	}
	if got.ModelPath != "" {
		t.Errorf("ModelPath = %q, want empty", got.ModelPath)
	}
}

func TestLoadServerFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{key: "DB_MAX_OPEN_CONNS", value: "many"},
		{key: "DB_MAX_IDLE_CONNS", value: "x"},
		{key: "DB_CONN_MAX_LIFETIME", value: "forever"},
		{key: "DB_LOG_SQL", value: "perhaps"},
		{key: "APP_ENV", value: "DEV"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv("APP_ENV", "")
			t.Setenv("LOG_LEVEL", "")
			t.Setenv(tt.key, tt.value)

			if _, err := LoadServerFromEnv(); err == nil {
				t.Fatalf("LoadServerFromEnv() with %s=%q error = nil, want non-nil", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel_Valid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want slog.Level
	}{
		{name: "debug", in: "debug", want: slog.LevelDebug},
		{name: "info", in: "info", want: slog.LevelInfo},
		{name: "warn", in: "warn", want: slog.LevelWarn},
		{name: "warning", in: "warning", want: slog.LevelWarn},
		{name: "error", in: "error", want: slog.LevelError},
		{name: "case insensitive", in: "DeBuG", want: slog.LevelDebug},
		{name: "trims whitespace", in: "  warn \n", want: slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v, want nil", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel_Invalid(t *testing.T) {
	for _, in := range []string{"", "nope", "warns", "1"} {
		got, err := parseLogLevel(in)
		if err == nil {
			t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", in)
		}
		if got != slog.LevelInfo {
			t.Errorf("parseLogLevel(%q) = %v, want %v on error", in, got, slog.LevelInfo)
		}
	}
}
