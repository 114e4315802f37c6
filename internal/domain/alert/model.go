package alert

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/inhalecare/inhalecare/internal/platform/apperr"
)

const (
	TypeSOS        = "SOS"
	DefaultMessage = "Emergency SOS activated"
)

// Alert moves from unresolved to resolved exactly once. There is no path
// back.
type Alert struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patient_id"`
	AlertType   string     `json:"alert_type"`
	Message     *string    `json:"message,omitempty"`
	LocationLat *float64   `json:"location_lat,omitempty"`
	LocationLng *float64   `json:"location_lng,omitempty"`
	IsResolved  bool       `json:"is_resolved"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy  *uuid.UUID `json:"resolved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	PatientName string `json:"patient_name,omitempty"`
}

type RaiseRequest struct {
	Message   *string  `json:"message"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// validateLocation accepts both coordinates or neither. Location is best
// effort so its absence is never an error.
func validateLocation(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return apperr.Validation("latitude and longitude must be sent together")
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return apperr.Validation("latitude must be between -90 and 90")
	}
	if *lng < -180 || *lng > 180 {
		return apperr.Validation("longitude must be between -180 and 180")
	}
	return nil
}

func messageOrDefault(m *string) string {
	if m != nil {
		if s := strings.TrimSpace(*m); s != "" {
			return s
		}
	}
	return DefaultMessage
}

// eventData is the payload published with alert events.
type eventData struct {
	AlertID    uuid.UUID  `json:"alert_id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	AlertType  string     `json:"alert_type"`
	Message    *string    `json:"message,omitempty"`
	Lat        *float64   `json:"location_lat,omitempty"`
	Lng        *float64   `json:"location_lng,omitempty"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
}

func (a *Alert) eventData() eventData {
	return eventData{
		AlertID:    a.ID,
		PatientID:  a.PatientID,
		AlertType:  a.AlertType,
		Message:    a.Message,
		Lat:        a.LocationLat,
		Lng:        a.LocationLng,
		ResolvedBy: a.ResolvedBy,
	}
}
