package campaign_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
	"github.com/rijksuitgaven/mailengine/internal/service/audience"
	"github.com/rijksuitgaven/mailengine/internal/service/campaign"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
)

const (
	topicID   = "7d1f1c9e-1111-4a1a-9a1a-000000000001"
	draftID   = "7d1f1c9e-2222-4a1a-9a1a-000000000002"
	oldCampID = "7d1f1c9e-3333-4a1a-9a1a-000000000003"
	unknownID = "7d1f1c9e-4444-4a1a-9a1a-000000000004"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	topics    map[string]domain.Topic
	prefs     map[string]bool // person id -> subscribed, for topicID
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: map[string]*domain.Campaign{
			draftID: {ID: draftID, Subject: "concept", Status: domain.CampaignDraft},
		},
		topics: map[string]domain.Topic{},
		prefs:  map[string]bool{},
	}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memRepo) ConvertDraft(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.campaigns[c.ID]
	if !ok || existing.Status != domain.CampaignDraft {
		return campaign.ErrDraftNotFound
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memRepo) Finish(_ context.Context, id string, sent, failed int, archiveKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	c.SentCount, c.FailedCount, c.ArchiveKey = sent, failed, archiveKey
	return nil
}

func (m *memRepo) GetTopic(_ context.Context, id string) (*domain.Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.topics[id]
	if !ok {
		return nil, campaign.ErrTopicNotFound
	}
	return &t, nil
}

func (m *memRepo) TopicPreferences(_ context.Context, _ string, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if v, ok := m.prefs[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// peopleRepo backs a real audience service.
type peopleRepo struct {
	people []domain.PersonWithSubscription
	events map[string][]string // campaign id -> person ids that opened
}

func (r *peopleRepo) EligiblePeople(context.Context) ([]domain.PersonWithSubscription, error) {
	return r.people, nil
}

func (r *peopleRepo) ActivePeople(context.Context) ([]domain.PersonWithSubscription, error) {
	return r.people, nil
}

func (r *peopleRepo) PersonIDsWithEvent(_ context.Context, campaignID string, _ domain.EventType) ([]string, error) {
	return r.events[campaignID], nil
}

func (r *peopleRepo) PersonIDsWithEngagementLevel(context.Context, domain.EngagementLevel) ([]string, error) {
	return nil, nil
}

type batchSender struct {
	mu      sync.Mutex
	batches [][]delivery.Message
	fail    bool
}

func (b *batchSender) Send(ctx context.Context, msg delivery.Message) (delivery.SendResult, error) {
	res, err := b.SendBatch(ctx, []delivery.Message{msg})
	if err != nil {
		return delivery.SendResult{}, err
	}
	return delivery.SendResult{MessageID: res.MessageIDs[0]}, nil
}

func (b *batchSender) SendBatch(_ context.Context, msgs []delivery.Message) (delivery.BatchResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return delivery.BatchResult{}, errors.New("provider unavailable")
	}
	b.batches = append(b.batches, msgs)
	ids := make([]string, len(msgs))
	for i := range msgs {
		ids[i] = "msg"
	}
	return delivery.BatchResult{MessageIDs: ids}, nil
}

func (b *batchSender) MaxBatchSize() int { return 100 }

func (b *batchSender) all() []delivery.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []delivery.Message
	for _, batch := range b.batches {
		out = append(out, batch...)
	}
	return out
}

type memArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *memArchive) Enabled() bool { return true }

func (a *memArchive) Put(_ context.Context, key, _ string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = data
	return nil
}

func (a *memArchive) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

func person(id, email, first string, stage domain.PipelineStage) domain.PersonWithSubscription {
	return domain.PersonWithSubscription{Person: domain.Person{
		ID:               id,
		Email:            email,
		FirstName:        first,
		UnsubscribeToken: "tok-" + id,
		PipelineStage:    stage,
	}}
}

type fixture struct {
	repo    *memRepo
	people  *peopleRepo
	sender  *batchSender
	archive *memArchive
	svc     *campaign.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	end := time.Now().AddDate(1, 0, 0)
	member := person("p3", "lid@example.nl", "Lid", domain.StageWon)
	member.Subscription = &domain.Subscription{PersonID: "p3", Plan: domain.PlanMonthly, EndDate: &end}

	f := &fixture{
		repo: newMemRepo(),
		people: &peopleRepo{
			people: []domain.PersonWithSubscription{
				person("p1", "ann@example.nl", "Ann", domain.StageNew),
				person("p2", "bob@example.nl", "", domain.StageInConversation),
				member,
				person("p4", "oud@example.nl", "Oud", domain.StageLost),
			},
			events: map[string][]string{},
		},
		sender:  &batchSender{},
		archive: &memArchive{objects: map[string][]byte{}},
	}

	renderer, err := delivery.NewRenderer("https://rijksuitgaven.nl")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	archiveKey := func(id string, _ time.Time) string {
		return "campaigns/" + id + ".html"
	}
	pipeline := delivery.NewPipeline(f.sender, nil).WithDelay(0)
	f.svc = campaign.NewService(f.repo, audience.NewService(f.people), pipeline, renderer, campaign.Options{
		BaseURL:    "https://rijksuitgaven.nl",
		Archive:    f.archive,
		ArchiveKey: archiveKey,
	})
	return f
}

func baseRequest() campaign.Request {
	return campaign.Request{
		Subject:  "Nieuwe cijfers",
		Heading:  "De begroting van 2026",
		Body:     "Beste lezer,\n\nDe cijfers staan online.",
		CTAText:  "Bekijk",
		CTAURL:   "https://rijksuitgaven.nl/begroting",
		Segments: []string{"nieuw", "in_gesprek", "leden_maandelijks"},
	}
}

func TestSend_SegmentsAndCounts(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Send(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !res.Success || res.Sent != 3 || res.Failed != 0 || res.Total != 3 {
		t.Fatalf("result = %+v, want 3 sent of 3", res)
	}

	msgs := f.sender.all()
	got := map[string]delivery.Message{}
	for _, m := range msgs {
		got[m.To] = m
	}
	if _, ok := got["oud@example.nl"]; ok {
		t.Error("person outside the requested segments was mailed")
	}

	ann := got["ann@example.nl"]
	if ann.Tags[domain.TagCampaignID] != res.CampaignID {
		t.Errorf("campaign tag = %q, want %q", ann.Tags[domain.TagCampaignID], res.CampaignID)
	}
	if ann.IdempotencyKey != "campaign/"+res.CampaignID+"/p1" {
		t.Errorf("idempotency key = %q", ann.IdempotencyKey)
	}
	if want := "<https://rijksuitgaven.nl/unsubscribe?token=tok-p1>"; ann.Headers[domain.HeaderListUnsubscribe] != want {
		t.Errorf("List-Unsubscribe = %q, want %q", ann.Headers[domain.HeaderListUnsubscribe], want)
	}
	if !strings.Contains(ann.HTML, "Ann") {
		t.Error("expected personalized greeting")
	}

	stored, err := f.repo.Get(context.Background(), res.CampaignID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Status != domain.CampaignSent || stored.SentCount != 3 || stored.FailedCount != 0 {
		t.Errorf("stored = %+v", stored)
	}
	if stored.Segment != "nieuw,in_gesprek,leden_maandelijks" {
		t.Errorf("segment = %q", stored.Segment)
	}
	if stored.ArchiveKey == "" {
		t.Fatal("expected an archive key")
	}

	archived, err := f.svc.Archived(context.Background(), res.CampaignID)
	if err != nil {
		t.Fatalf("Archived: %v", err)
	}
	if strings.Contains(string(archived), "tok-p") {
		t.Error("archive must not contain a recipient token")
	}
}

func TestSend_ProviderFailureCountsFailed(t *testing.T) {
	f := newFixture(t)
	f.sender.fail = true

	res, err := f.svc.Send(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Sent != 0 || res.Failed != 3 {
		t.Fatalf("result = %+v, want 3 failed", res)
	}
	stored, _ := f.repo.Get(context.Background(), res.CampaignID)
	if stored.FailedCount != 3 {
		t.Errorf("failed_count = %d, want 3", stored.FailedCount)
	}
}

func TestSend_ConditionsNegatedRelativeToSegments(t *testing.T) {
	f := newFixture(t)
	// p1 and p4 opened the earlier campaign; p4 is outside the segments.
	f.people.events[oldCampID] = []string{"p1", "p4"}

	req := baseRequest()
	req.Conditions = []audience.WireGroup{{Conditions: []audience.WireCondition{
		{Type: audience.TypeCampaignOpened, CampaignID: oldCampID, Negated: true},
	}}}

	res, err := f.svc.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("total = %d, want 2 (p2, p3)", res.Total)
	}
	for _, m := range f.sender.all() {
		if m.To == "ann@example.nl" || m.To == "oud@example.nl" {
			t.Errorf("unexpected recipient %s", m.To)
		}
	}

	stored, _ := f.repo.Get(context.Background(), res.CampaignID)
	if !strings.Contains(string(stored.Conditions), `"groups"`) {
		t.Errorf("conditions not stored: %s", stored.Conditions)
	}
}

func TestSend_TopicPreference(t *testing.T) {
	f := newFixture(t)
	f.repo.topics[topicID] = domain.Topic{ID: topicID, IsDefault: false}
	f.repo.prefs["p2"] = true
	f.repo.prefs["p3"] = false

	req := baseRequest()
	req.TopicID = topicID

	res, err := f.svc.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs := f.sender.all()
	if res.Total != 1 || len(msgs) != 1 || msgs[0].To != "bob@example.nl" {
		t.Fatalf("want only the explicitly subscribed person, got %+v", msgs)
	}
}

func TestSend_TopicDefaultOn(t *testing.T) {
	f := newFixture(t)
	f.repo.topics[topicID] = domain.Topic{ID: topicID, IsDefault: true}
	f.repo.prefs["p3"] = false

	req := baseRequest()
	req.TopicID = topicID

	res, err := f.svc.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("total = %d, want 2", res.Total)
	}
}

func TestSend_ConvertsDraft(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.DraftID = draftID

	res, err := f.svc.Send(context.Background(), req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.CampaignID != draftID {
		t.Fatalf("campaign id = %s, want the draft id", res.CampaignID)
	}
	stored, _ := f.repo.Get(context.Background(), draftID)
	if stored.Status != domain.CampaignSent || stored.Subject != "Nieuwe cijfers" {
		t.Errorf("draft not converted: %+v", stored)
	}

	// A second send with the same draft id fails before mailing anyone.
	before := len(f.sender.all())
	if _, err := f.svc.Send(context.Background(), req); !errors.Is(err, campaign.ErrDraftNotFound) {
		t.Fatalf("err = %v, want ErrDraftNotFound", err)
	}
	if len(f.sender.all()) != before {
		t.Error("no mail may go out when the draft conversion fails")
	}
}

func TestSend_EmptyAudience(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.Segments = []string{"ex_klant"}

	_, err := f.svc.Send(context.Background(), req)
	if !errors.Is(err, campaign.ErrNoRecipients) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
	if len(f.repo.campaigns) != 1 {
		t.Error("no campaign may be saved for an empty audience")
	}
}

func TestSend_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*campaign.Request)
		field  string
	}{
		{"no subject", func(r *campaign.Request) { r.Subject = "  " }, "subject"},
		{"no heading", func(r *campaign.Request) { r.Heading = "" }, "heading"},
		{"no body", func(r *campaign.Request) { r.Body = "" }, "body"},
		{"no segments", func(r *campaign.Request) { r.Segments = nil }, "segments"},
		{"unknown segment", func(r *campaign.Request) { r.Segments = []string{"gewonnen"} }, "segments"},
		{"too many segments", func(r *campaign.Request) {
			r.Segments = []string{"nieuw", "in_gesprek", "leden_maandelijks", "leden_jaarlijks", "verloren", "ex_klant", "nieuw"}
		}, "segments"},
		{"bad cta", func(r *campaign.Request) { r.CTAURL = "javascript:alert(1)" }, "cta_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := baseRequest()
			tt.mutate(&req)

			_, err := f.svc.Send(context.Background(), req)
			var ve *campaign.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("err = %v, want validation error on %s", err, tt.field)
			}
			if len(f.sender.all()) != 0 {
				t.Error("nothing may be sent on a validation error")
			}
		})
	}
}

func TestSend_InvalidConditions(t *testing.T) {
	f := newFixture(t)
	req := baseRequest()
	req.Conditions = []audience.WireGroup{{Conditions: []audience.WireCondition{{Type: "bogus"}}}}

	_, err := f.svc.Send(context.Background(), req)
	var ve *audience.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want audience.ValidationError", err)
	}
}

func TestSend_NotConfigured(t *testing.T) {
	svc := campaign.NewService(newMemRepo(), nil, nil, nil, campaign.Options{})
	if _, err := svc.Send(context.Background(), baseRequest()); !errors.Is(err, delivery.ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestArchived_Errors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Archived(context.Background(), "nope"); !errors.Is(err, campaign.ErrNotFound) {
		t.Errorf("bad id: err = %v", err)
	}
	if _, err := f.svc.Archived(context.Background(), unknownID); !errors.Is(err, campaign.ErrNotFound) {
		t.Errorf("unknown id: err = %v", err)
	}
	if _, err := f.svc.Archived(context.Background(), draftID); !errors.Is(err, campaign.ErrNotArchived) {
		t.Errorf("draft: err = %v", err)
	}
}
