package delivery

import (
	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// DefaultFrom is the sender identity for lifecycle mail.
const DefaultFrom = "Rijksuitgaven.nl <noreply@rijksuitgaven.nl>"

// NewMessage assembles a message with one-click unsubscribe headers pointing
// at the same URL embedded in the body.
func NewMessage(from, to, subject string, body Rendered, unsubscribeURL string, tags map[string]string) Message {
	if from == "" {
		from = DefaultFrom
	}
	return Message{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    body.HTML,
		Text:    body.Text,
		Headers: map[string]string{
			domain.HeaderListUnsubscribe:     "<" + unsubscribeURL + ">",
			domain.HeaderListUnsubscribePost: domain.ListUnsubscribeOneClick,
		},
		Tags: tags,
	}
}

// SequenceTags returns the tags attached to a sequence step message.
func SequenceTags(sequenceID, stepID string) map[string]string {
	return map[string]string{
		domain.TagSequenceID: sequenceID,
		domain.TagStepID:     stepID,
	}
}

// CampaignTags returns the tags attached to a broadcast message.
func CampaignTags(campaignID string) map[string]string {
	return map[string]string{domain.TagCampaignID: campaignID}
}
