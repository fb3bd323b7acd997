package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/audience"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
)

// MaxSegments bounds the segments of one broadcast.
const MaxSegments = 6

// Audience resolves recipients. Implemented by *audience.Service.
type Audience interface {
	EligibleInSegments(ctx context.Context, segments []domain.Segment) ([]domain.PersonWithSubscription, error)
	Evaluate(ctx context.Context, groups []domain.ConditionGroup, base audience.Set) (audience.Set, error)
}

// Request is a broadcast to send.
type Request struct {
	Subject    string
	Heading    string
	Preheader  string
	Body       string
	CTAText    string
	CTAURL     string
	Segments   []string
	DraftID    string
	TopicID    string
	Conditions []audience.WireGroup
	SentBy     string
}

// Result summarizes a sent broadcast.
type Result struct {
	Success    bool     `json:"success"`
	CampaignID string   `json:"campaign_id"`
	Sent       int      `json:"sent"`
	Failed     int      `json:"failed"`
	Total      int      `json:"total"`
	Segments   []string `json:"segments"`
}

// Options configures a Service.
type Options struct {
	BaseURL    string
	From       string
	ReplyTo    string
	Archive    Archiver
	ArchiveKey ArchiveKeyFunc
}

// Service sends broadcasts. pipeline and renderer may be nil when no
// provider is configured; Send then fails with delivery.ErrNotConfigured.
type Service struct {
	repo       Repository
	audience   Audience
	pipeline   *delivery.Pipeline
	renderer   *delivery.Renderer
	baseURL    string
	from       string
	replyTo    string
	archive    Archiver
	archiveKey ArchiveKeyFunc
	now        func() time.Time
}

// NewService creates a campaign service.
func NewService(repo Repository, aud Audience, pipeline *delivery.Pipeline, renderer *delivery.Renderer, opts Options) *Service {
	return &Service{
		repo:       repo,
		audience:   aud,
		pipeline:   pipeline,
		renderer:   renderer,
		baseURL:    opts.BaseURL,
		from:       opts.From,
		replyTo:    opts.ReplyTo,
		archive:    opts.Archive,
		archiveKey: opts.ArchiveKey,
		now:        time.Now,
	}
}

type recipient struct {
	id        string
	email     string
	firstName string
	token     string
}

// Send validates req, resolves the audience, saves the campaign and sends
// one personalized message per recipient.
func (s *Service) Send(ctx context.Context, req Request) (*Result, error) {
	if s.pipeline == nil || s.renderer == nil {
		return nil, delivery.ErrNotConfigured
	}
	content, segments, groups, err := validate(req)
	if err != nil {
		return nil, err
	}

	recipients, err := s.resolve(ctx, segments, groups, req.TopicID)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	c, err := s.save(ctx, req, content, groups)
	if err != nil {
		return nil, err
	}

	msgs := make([]delivery.Message, 0, len(recipients))
	for _, r := range recipients {
		unsubscribeURL := delivery.UnsubscribeURL(s.baseURL, r.token)
		body, err := s.renderer.Render(content, delivery.Recipient{FirstName: r.firstName, UnsubscribeURL: unsubscribeURL})
		if err != nil {
			return nil, fmt.Errorf("render campaign %s: %w", c.ID, err)
		}
		msg := delivery.NewMessage(s.from, r.email, content.Subject, body, unsubscribeURL, delivery.CampaignTags(c.ID))
		msg.ReplyTo = s.replyTo
		msg.IdempotencyKey = "campaign/" + c.ID + "/" + r.id
		msgs = append(msgs, msg)
	}

	res, sendErr := s.pipeline.SendBroadcast(ctx, msgs)
	if sendErr != nil {
		logger.Warn("campaign: broadcast interrupted", "campaign_id", c.ID, "error", sendErr)
	}

	// Counts are stored even when the request context is gone.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	archiveKey := s.archiveContent(finishCtx, c, content)
	if err := s.repo.Finish(finishCtx, c.ID, res.Sent, res.Failed, archiveKey); err != nil {
		logger.Error("campaign: storing counts failed", "campaign_id", c.ID, "error", err)
	}

	logger.Info("campaign: broadcast sent", "campaign_id", c.ID,
		"sent", res.Sent, "failed", res.Failed, "total", len(msgs), "batches", res.Batches)

	return &Result{
		Success:    true,
		CampaignID: c.ID,
		Sent:       res.Sent,
		Failed:     res.Failed,
		Total:      len(msgs),
		Segments:   req.Segments,
	}, nil
}

// Archived returns the archived rendered HTML of a campaign.
func (s *Service) Archived(ctx context.Context, id string) ([]byte, error) {
	if !isUUID(id) {
		return nil, ErrNotFound
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.ArchiveKey == "" || s.archive == nil || !s.archive.Enabled() {
		return nil, ErrNotArchived
	}
	return s.archive.Get(ctx, c.ArchiveKey)
}

func validate(req Request) (domain.Content, []domain.Segment, []domain.ConditionGroup, error) {
	content := domain.Content{
		Subject:   strings.TrimSpace(req.Subject),
		Heading:   strings.TrimSpace(req.Heading),
		Preheader: strings.TrimSpace(req.Preheader),
		Body:      strings.TrimSpace(req.Body),
		CTAText:   strings.TrimSpace(req.CTAText),
		CTAURL:    strings.TrimSpace(req.CTAURL),
	}
	switch {
	case content.Subject == "":
		return content, nil, nil, &ValidationError{Field: "subject", Reason: "is required"}
	case content.Heading == "":
		return content, nil, nil, &ValidationError{Field: "heading", Reason: "is required"}
	case content.Body == "":
		return content, nil, nil, &ValidationError{Field: "body", Reason: "is required"}
	case len(req.Segments) == 0:
		return content, nil, nil, &ValidationError{Field: "segments", Reason: "at least one segment is required"}
	case len(req.Segments) > MaxSegments:
		return content, nil, nil, &ValidationError{Field: "segments", Reason: fmt.Sprintf("at most %d segments allowed", MaxSegments)}
	}

	segments := make([]domain.Segment, 0, len(req.Segments))
	for _, raw := range req.Segments {
		seg := domain.Segment(raw)
		if !seg.Valid() {
			return content, nil, nil, &ValidationError{Field: "segments", Reason: fmt.Sprintf("unknown segment %q", raw)}
		}
		segments = append(segments, seg)
	}

	if content.CTAURL != "" && !isHTTPURL(content.CTAURL) {
		return content, nil, nil, &ValidationError{Field: "cta_url", Reason: "must start with http(s)://"}
	}

	var groups []domain.ConditionGroup
	if len(req.Conditions) > 0 {
		parsed, err := audience.ParseGroups(req.Conditions)
		if err != nil {
			return content, nil, nil, err
		}
		groups = parsed
	}
	return content, segments, groups, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return s != "" && err == nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// resolve narrows the eligible people in segments by conditions and topic
// preference. Negated conditions are relative to the segment audience.
func (s *Service) resolve(ctx context.Context, segments []domain.Segment, groups []domain.ConditionGroup, topicID string) ([]recipient, error) {
	people, err := s.audience.EligibleInSegments(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("resolve segments: %w", err)
	}

	if len(groups) > 0 {
		base := audience.NewSet()
		for _, p := range people {
			base[p.Person.ID] = struct{}{}
		}
		matched, err := s.audience.Evaluate(ctx, groups, base)
		if err != nil {
			return nil, fmt.Errorf("evaluate conditions: %w", err)
		}
		people = filterPeople(people, matched.Has)
	}

	if isUUID(topicID) && len(people) > 0 {
		people, err = s.filterByTopic(ctx, topicID, people)
		if err != nil {
			return nil, err
		}
	}

	out := make([]recipient, 0, len(people))
	for _, p := range people {
		out = append(out, recipient{
			id:        p.Person.ID,
			email:     p.Person.Email,
			firstName: p.Person.FirstName,
			token:     p.Person.UnsubscribeToken,
		})
	}
	return out, nil
}

// filterByTopic keeps people whose explicit preference is subscribed, or
// who have none and the topic is on by default. An unknown topic filters
// nothing.
func (s *Service) filterByTopic(ctx context.Context, topicID string, people []domain.PersonWithSubscription) ([]domain.PersonWithSubscription, error) {
	topic, err := s.repo.GetTopic(ctx, topicID)
	if errors.Is(err, ErrTopicNotFound) {
		return people, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}

	ids := make([]string, len(people))
	for i, p := range people {
		ids[i] = p.Person.ID
	}
	prefs, err := s.repo.TopicPreferences(ctx, topicID, ids)
	if err != nil {
		return nil, fmt.Errorf("load topic preferences: %w", err)
	}

	return filterPeople(people, func(id string) bool {
		if subscribed, ok := prefs[id]; ok {
			return subscribed
		}
		return topic.IsDefault
	}), nil
}

func filterPeople(people []domain.PersonWithSubscription, keep func(id string) bool) []domain.PersonWithSubscription {
	out := people[:0:0]
	for _, p := range people {
		if keep(p.Person.ID) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) save(ctx context.Context, req Request, content domain.Content, groups []domain.ConditionGroup) (*domain.Campaign, error) {
	now := s.now().UTC()
	c := &domain.Campaign{
		Subject:   content.Subject,
		Heading:   content.Heading,
		Preheader: content.Preheader,
		Body:      content.Body,
		CTAText:   content.CTAText,
		CTAURL:    content.CTAURL,
		Segment:   strings.Join(req.Segments, ","),
		Status:    domain.CampaignSent,
		SentBy:    req.SentBy,
		SentAt:    &now,
	}
	if isUUID(req.TopicID) {
		c.TopicID = req.TopicID
	}
	if len(groups) > 0 {
		raw, err := json.Marshal(map[string]any{"groups": req.Conditions})
		if err != nil {
			return nil, fmt.Errorf("encode conditions: %w", err)
		}
		c.Conditions = raw
	}

	if isUUID(req.DraftID) {
		c.ID = req.DraftID
		if err := s.repo.ConvertDraft(ctx, c); err != nil {
			return nil, fmt.Errorf("convert draft: %w", err)
		}
		return c, nil
	}

	c.ID = uuid.New().String()
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("save campaign: %w", err)
	}
	return c, nil
}

// archiveContent stores an unpersonalized rendering and returns its key, or
// "" when archiving is off or fails.
func (s *Service) archiveContent(ctx context.Context, c *domain.Campaign, content domain.Content) string {
	if s.archive == nil || !s.archive.Enabled() || s.archiveKey == nil {
		return ""
	}
	body, err := s.renderer.Render(content, delivery.Recipient{UnsubscribeURL: s.baseURL + "/unsubscribe"})
	if err != nil {
		logger.Warn("campaign: archive render failed", "campaign_id", c.ID, "error", err)
		return ""
	}
	key := s.archiveKey(c.ID, *c.SentAt)
	if err := s.archive.Put(ctx, key, "text/html; charset=utf-8", []byte(body.HTML)); err != nil {
		logger.Warn("campaign: archive failed", "campaign_id", c.ID, "error", err)
		return ""
	}
	return key
}
