// Package devicesync ingests battery and dose-count reports pushed by inhaler
// hardware over MQTT and hands them to the device registry.
package devicesync

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

// Reading is one report from a device.
type Reading struct {
	BatteryLevel   *int       `json:"battery_level"`
	RemainingDoses *int       `json:"remaining_doses"`
	Timestamp      *time.Time `json:"timestamp"`
}

type payload struct {
	DeviceID string `json:"device_id"`
	Reading
}

// DeviceKey extracts the segment matched by the single '+' wildcard of
// pattern from topic, e.g. "INH-42" from "inhalers/INH-42/sync".
func DeviceKey(pattern, topic string) (string, bool) {
	ps := strings.Split(pattern, "/")
	ts := strings.Split(topic, "/")
	if len(ps) != len(ts) {
		return "", false
	}
	key := ""
	for i, p := range ps {
		switch p {
		case "+":
			key = ts[i]
		case ts[i]:
		default:
			return "", false
		}
	}
	return key, key != ""
}

// Decode parses a message. The device key comes from the topic when the
// pattern has a wildcard and from the "device_id" field otherwise.
func Decode(pattern, topic string, body []byte) (string, Reading, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", Reading{}, apperr.Validation("malformed sync payload: %v", err)
	}
	key, ok := DeviceKey(pattern, topic)
	if !ok {
		key = strings.TrimSpace(p.DeviceID)
	}
	if key == "" {
		return "", Reading{}, apperr.Validation("sync message on %q names no device", topic)
	}
	if p.BatteryLevel == nil || p.RemainingDoses == nil {
		return "", Reading{}, apperr.Validation("battery_level and remaining_doses are required")
	}
	return key, p.Reading, nil
}
