package domain

import (
	"encoding/json"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a broadcast.
type CampaignStatus string

const (
	CampaignDraft CampaignStatus = "draft"
	CampaignSent  CampaignStatus = "sent"
)

// Content is the author-controlled part of a message, shared by sequence
// steps and broadcasts.
type Content struct {
	Subject   string `json:"subject"`
	Heading   string `json:"heading"`
	Preheader string `json:"preheader,omitempty"`
	Body      string `json:"body"`
	CTAText   string `json:"cta_text,omitempty"`
	CTAURL    string `json:"cta_url,omitempty"`
}

// Campaign is a one-off broadcast to a computed audience.
type Campaign struct {
	ID          string          `json:"id" db:"id"`
	Subject     string          `json:"subject" db:"subject"`
	Heading     string          `json:"heading" db:"heading"`
	Preheader   string          `json:"preheader,omitempty" db:"preheader"`
	Body        string          `json:"body" db:"body"`
	CTAText     string          `json:"cta_text,omitempty" db:"cta_text"`
	CTAURL      string          `json:"cta_url,omitempty" db:"cta_url"`
	Segment     string          `json:"segment" db:"segment"`
	Conditions  json.RawMessage `json:"conditions,omitempty" db:"conditions"`
	TopicID     string          `json:"topic_id,omitempty" db:"topic_id"`
	Status      CampaignStatus  `json:"status" db:"status"`
	SentCount   int             `json:"sent_count" db:"sent_count"`
	FailedCount int             `json:"failed_count" db:"failed_count"`
	SentBy      string          `json:"sent_by,omitempty" db:"sent_by"`
	SentAt      *time.Time      `json:"sent_at,omitempty" db:"sent_at"`
	ArchiveKey  string          `json:"archive_key,omitempty" db:"archive_key"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Content returns the message content of the campaign.
func (c Campaign) Content() Content {
	return Content{
		Subject:   c.Subject,
		Heading:   c.Heading,
		Preheader: c.Preheader,
		Body:      c.Body,
		CTAText:   c.CTAText,
		CTAURL:    c.CTAURL,
	}
}

// Topic is a mail subscription topic people can opt in or out of.
type Topic struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	IsDefault bool   `json:"is_default" db:"is_default"`
}
