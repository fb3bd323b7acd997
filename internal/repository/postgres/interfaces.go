package postgres

import (
	"github.com/rijksuitgaven/mailengine/internal/contactsync"
	"github.com/rijksuitgaven/mailengine/internal/service/audience"
	"github.com/rijksuitgaven/mailengine/internal/service/campaign"
	"github.com/rijksuitgaven/mailengine/internal/service/engagement"
	"github.com/rijksuitgaven/mailengine/internal/service/sequence"
	"github.com/rijksuitgaven/mailengine/internal/service/suppression"
)

var (
	_ audience.Repository    = (*AudienceRepo)(nil)
	_ suppression.Repository = (*SuppressionRepo)(nil)
	_ sequence.Repository    = (*SequenceRepo)(nil)
	_ campaign.Repository    = (*CampaignRepo)(nil)
	_ engagement.Repository  = (*EventRepo)(nil)
	_ contactsync.Store      = (*ContactRepo)(nil)
)
