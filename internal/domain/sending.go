package domain

// Tag names attached to outbound mail. Provider webhooks echo them back.
const (
	TagCampaignID = "campaign_id"
	TagSequenceID = "sequence_id"
	TagStepID     = "step_id"
)

// Header names for one-click unsubscribe.
const (
	HeaderListUnsubscribe     = "List-Unsubscribe"
	HeaderListUnsubscribePost = "List-Unsubscribe-Post"
	ListUnsubscribeOneClick   = "List-Unsubscribe=One-Click"
)
