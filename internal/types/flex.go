package types

import (
	"strconv"
	"time"
)

// FlexReading is the body the agent posts to the ingest endpoint.
type FlexReading struct {
	FlexValue int `json:"flex_value"`
}

// Payload renders the reading in the fixed wire form {"flex_value": <v>}.
// encoding/json would drop the space after the colon, so the bytes are built
// by hand to keep the format byte-stable across releases.
func (r FlexReading) Payload() []byte {
	b := make([]byte, 0, 32)
	b = append(b, `{"flex_value": `...)
	b = strconv.AppendInt(b, int64(r.FlexValue), 10)
	return append(b, '}')
}

// Telemetry is the mirrored message published to MQTT.
type Telemetry struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"`
	FlexValue int       `json:"flex_value"`
}

// LinkHealth is the retained link-state message published to MQTT.
type LinkHealth struct {
	DeviceID  string    `json:"device_id"`
	Connected bool      `json:"connected"`
	ChangedAt time.Time `json:"changed_at"`
}
