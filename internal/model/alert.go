package model

import (
	"strings"
	"time"
)

// AlertSeverity ranks an alert
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// IsValid returns true if the severity is known
func (s AlertSeverity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	default:
		return false
	}
}

// Alert field limits
const (
	MaxAlertSourceLength  = 64
	MaxAlertMessageLength = 1000
	MaxAlertKeyLength     = 128
)

// Alert records an operational event, such as a database outage, for
// operators to acknowledge. Key is unique across alerts; raising the same
// key twice is rejected.
type Alert struct {
	ID             string        `json:"id"`
	Key            string        `json:"key"`
	Source         string        `json:"source"`
	Severity       AlertSeverity `json:"severity"`
	Message        string        `json:"message"`
	Acknowledged   bool          `json:"acknowledged"`
	CreatedOn      time.Time     `json:"created_on"`
	AcknowledgedOn *time.Time    `json:"acknowledged_on,omitempty"`
}

// CreateAlertRequest represents a request to raise an alert. Key is
// optional; one is generated when empty.
type CreateAlertRequest struct {
	Key      string        `json:"key,omitempty"`
	Source   string        `json:"source"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// Validate validates the create alert request
func (r *CreateAlertRequest) Validate() []FieldError {
	var errors []FieldError

	source := strings.TrimSpace(r.Source)
	if source == "" {
		errors = append(errors, FieldError{Field: "source", Message: "source is required"})
	} else if len(source) > MaxAlertSourceLength {
		errors = append(errors, FieldError{Field: "source", Message: "source must be 64 characters or less"})
	}

	if !r.Severity.IsValid() {
		errors = append(errors, FieldError{Field: "severity", Message: "severity must be info, warning, or critical"})
	}

	message := strings.TrimSpace(r.Message)
	if message == "" {
		errors = append(errors, FieldError{Field: "message", Message: "message is required"})
	} else if len(message) > MaxAlertMessageLength {
		errors = append(errors, FieldError{Field: "message", Message: "message must be 1000 characters or less"})
	}

	if len(strings.TrimSpace(r.Key)) > MaxAlertKeyLength {
		errors = append(errors, FieldError{Field: "key", Message: "key must be 128 characters or less"})
	}

	return errors
}

// AcknowledgeAlertsRequest represents a request to acknowledge alerts
type AcknowledgeAlertsRequest struct {
	IDs []string `json:"ids"`
}

// Validate validates the acknowledge request
func (r *AcknowledgeAlertsRequest) Validate() []FieldError {
	if len(r.IDs) == 0 {
		return []FieldError{{Field: "ids", Message: "at least one alert id is required"}}
	}
	var errors []FieldError
	for _, id := range r.IDs {
		if !strings.HasPrefix(id, "alert:") {
			errors = append(errors, FieldError{Field: "ids", Message: "ids must be alert record ids"})
			break
		}
	}
	return errors
}
