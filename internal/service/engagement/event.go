package engagement

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Webhook event types handled by Ingest.
const (
	TypeContactUpdated  = "contact.updated"
	TypeEmailDelivered  = "email.delivered"
	TypeEmailOpened     = "email.opened"
	TypeEmailClicked    = "email.clicked"
	TypeEmailBounced    = "email.bounced"
	TypeEmailComplained = "email.complained"
)

var emailEventTypes = map[string]domain.EventType{
	TypeEmailDelivered:  domain.EventDelivered,
	TypeEmailOpened:     domain.EventOpened,
	TypeEmailClicked:    domain.EventClicked,
	TypeEmailBounced:    domain.EventBounced,
	TypeEmailComplained: domain.EventComplained,
}

// Event is the webhook envelope.
type Event struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

// EventData is the union of the fields used from contact and email events.
type EventData struct {
	// contact.* events
	ID           string `json:"id"`
	Unsubscribed bool   `json:"unsubscribed"`

	// email.* events
	EmailID string      `json:"email_id"`
	To      Recipients  `json:"to"`
	Tags    Tags        `json:"tags"`
	Click   *ClickData  `json:"click,omitempty"`
	Bounce  *BounceData `json:"bounce,omitempty"`
}

// ClickData is the click detail of email.clicked.
type ClickData struct {
	Link string `json:"link"`
}

// BounceData is the bounce detail of email.bounced.
type BounceData struct {
	Type string `json:"type"`
}

// Recipients accepts either a single address or a list.
type Recipients []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Recipients) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Recipients{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*r = list
	return nil
}

// First returns the first non-empty address, lower-cased.
func (r Recipients) First() string {
	for _, a := range r {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			return a
		}
	}
	return ""
}

// Tags accepts both the object form {"k":"v"} and the list form
// [{"name":"k","value":"v"}].
type Tags map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tags) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		m := make(Tags, len(list))
		for _, kv := range list {
			m[kv.Name] = kv.Value
		}
		*t = m
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = m
	return nil
}

// ParseEvent decodes a verified webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, ErrInvalidPayload
	}
	if ev.Type == "" {
		return nil, ErrInvalidPayload
	}
	return &ev, nil
}
