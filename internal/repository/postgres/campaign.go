package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

// nullUUID maps anything that is not a UUID to NULL.
func nullUUID(s string) sql.NullString {
	if _, err := uuid.Parse(s); err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// existingTopic resolves to NULL when the topic was deleted in the meantime.
const existingTopic = `(SELECT id FROM email_topics WHERE id = $10::uuid)`

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	var (
		c          domain.Campaign
		status     string
		conditions []byte
		sentAt     sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id::text, subject, COALESCE(heading, ''), COALESCE(preheader, ''), COALESCE(body, ''),
		       COALESCE(cta_text, ''), COALESCE(cta_url, ''), COALESCE(segment, ''), conditions,
		       COALESCE(topic_id::text, ''), status, sent_count, failed_count, COALESCE(sent_by::text, ''),
		       sent_at, COALESCE(archive_key, ''), created_at, updated_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Subject, &c.Heading, &c.Preheader, &c.Body,
		&c.CTAText, &c.CTAURL, &c.Segment, &conditions,
		&c.TopicID, &status, &c.SentCount, &c.FailedCount, &c.SentBy,
		&sentAt, &c.ArchiveKey, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	c.Status = domain.CampaignStatus(status)
	c.Conditions = conditions
	c.SentAt = timePtr(sentAt)
	return &c, nil
}

func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO campaigns
			(id, subject, heading, preheader, body, cta_text, cta_url, segment, conditions,
			 topic_id, status, sent_by, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, `+existingTopic+`, $11, $12, $13)
		RETURNING created_at, updated_at
	`, c.ID, c.Subject, c.Heading, nullString(c.Preheader), c.Body, nullString(c.CTAText),
		nullString(c.CTAURL), c.Segment, nullJSON(c.Conditions), nullUUID(c.TopicID),
		string(c.Status), nullUUID(c.SentBy), nullTime(c.SentAt),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *CampaignRepo) ConvertDraft(ctx context.Context, c *domain.Campaign) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE campaigns SET
			subject = $2, heading = $3, preheader = $4, body = $5, cta_text = $6, cta_url = $7,
			segment = $8, conditions = $9, topic_id = `+existingTopic+`, status = $11,
			sent_by = $12, sent_at = $13, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
		RETURNING created_at, updated_at
	`, c.ID, c.Subject, c.Heading, nullString(c.Preheader), c.Body, nullString(c.CTAText),
		nullString(c.CTAURL), c.Segment, nullJSON(c.Conditions), nullUUID(c.TopicID),
		string(c.Status), nullUUID(c.SentBy), nullTime(c.SentAt),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.ErrDraftNotFound
	}
	if err != nil {
		return fmt.Errorf("convert draft: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Finish(ctx context.Context, id string, sent, failed int, archiveKey string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET sent_count = $2, failed_count = $3, archive_key = $4, updated_at = NOW()
		WHERE id = $1
	`, id, sent, failed, nullString(archiveKey))
	if err != nil {
		return fmt.Errorf("finish campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) GetTopic(ctx context.Context, id string) (*domain.Topic, error) {
	var t domain.Topic
	err := r.db.QueryRowContext(ctx,
		`SELECT id::text, name, is_default FROM email_topics WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.IsDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

func (r *CampaignRepo) TopicPreferences(ctx context.Context, topicID string, personIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(personIDs))
	if len(personIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT person_id::text, subscribed
		FROM email_preferences
		WHERE topic_id = $1 AND person_id = ANY($2::uuid[])
	`, topicID, pq.Array(personIDs))
	if err != nil {
		return nil, fmt.Errorf("topic preferences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var subscribed bool
		if err := rows.Scan(&id, &subscribed); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		out[id] = subscribed
	}
	return out, rows.Err()
}

// nullJSON maps an empty document to NULL.
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
