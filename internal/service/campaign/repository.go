package campaign

import (
	"context"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Repository defines the data access contract for broadcasts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// Create inserts c and sets its ID and timestamps.
	Create(ctx context.Context, c *domain.Campaign) error

	// ConvertDraft overwrites the draft with id c.ID with c's content and
	// marks it sent. Returns ErrDraftNotFound unless the row exists in draft
	// status.
	ConvertDraft(ctx context.Context, c *domain.Campaign) error

	// Finish stores the delivery counts and the archive key.
	Finish(ctx context.Context, id string, sent, failed int, archiveKey string) error

	// GetTopic returns a topic. Returns ErrTopicNotFound if it doesn't exist.
	GetTopic(ctx context.Context, id string) (*domain.Topic, error)

	// TopicPreferences returns the explicit subscribed flags for the topic
	// among personIDs. People without a row are absent from the map.
	TopicPreferences(ctx context.Context, topicID string, personIDs []string) (map[string]bool, error)
}

// Archiver stores rendered content. Implemented by storage.Storage.
type Archiver interface {
	Enabled() bool
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ArchiveKeyFunc names the archive object of a campaign.
type ArchiveKeyFunc func(campaignID string, sentAt time.Time) string
