package audience

import (
	"context"
	"fmt"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/domain"
)

// Service resolves audiences against the people store.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an audience service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Evaluate resolves a condition tree to a set of person ids. Conditions in a
// group are OR-ed, groups are AND-ed, and the result is intersected with
// base when base is non-nil. Negated conditions take the complement relative
// to base, or to all eligible people when base is nil. Zero groups yield the
// empty set.
func (s *Service) Evaluate(ctx context.Context, groups []domain.ConditionGroup, base Set) (Set, error) {
	if len(groups) == 0 {
		return Set{}, nil
	}
	if len(groups) > MaxGroups {
		return nil, invalidf("at most %d groups allowed", MaxGroups)
	}
	for gi, g := range groups {
		if len(g.Conditions) > MaxConditionsPerGroup {
			return nil, invalidf("group %d has more than %d conditions", gi+1, MaxConditionsPerGroup)
		}
		for _, c := range g.Conditions {
			if err := validate(c); err != nil {
				return nil, err
			}
		}
	}

	r := &resolution{svc: s, ctx: ctx, base: base, cache: make(map[domain.Condition]Set)}

	var result Set
	for _, g := range groups {
		groupSet := Set{}
		for _, c := range g.Conditions {
			set, err := r.resolve(c)
			if err != nil {
				return nil, err
			}
			groupSet = groupSet.Union(set)
		}
		if result == nil {
			result = groupSet
		} else {
			result = result.Intersect(groupSet)
		}
	}
	if base != nil {
		result = result.Intersect(base)
	}
	return result, nil
}

// ListTypeCounts counts non-archived people per list type.
func (s *Service) ListTypeCounts(ctx context.Context) (map[domain.ListType]int, error) {
	people, err := s.repo.ActivePeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("load people: %w", err)
	}
	counts := map[domain.ListType]int{
		domain.ListLeden:     0,
		domain.ListChurned:   0,
		domain.ListProspects: 0,
	}
	now := s.now()
	for _, p := range people {
		counts[Classify(p.Subscription, now)]++
	}
	return counts, nil
}

// EligibleInSegments returns the eligible people in any of the segments.
func (s *Service) EligibleInSegments(ctx context.Context, segments []domain.Segment) ([]domain.PersonWithSubscription, error) {
	people, err := s.repo.EligiblePeople(ctx)
	if err != nil {
		return nil, fmt.Errorf("load eligible people: %w", err)
	}
	return FilterBySegments(people, segments, s.now()), nil
}

// resolution holds the per-call caches of one Evaluate.
type resolution struct {
	svc      *Service
	ctx      context.Context
	base     Set
	eligible []domain.PersonWithSubscription
	universe Set
	cache    map[domain.Condition]Set
}

func (r *resolution) resolve(c domain.Condition) (Set, error) {
	positive := c
	positive.Negated = false

	set, ok := r.cache[positive]
	if !ok {
		var err error
		set, err = r.match(positive)
		if err != nil {
			return nil, err
		}
		r.cache[positive] = set
	}
	if !c.Negated {
		return set, nil
	}

	universe := r.base
	if universe == nil {
		u, err := r.allEligible()
		if err != nil {
			return nil, err
		}
		universe = u
	}
	return universe.Minus(set), nil
}

func (r *resolution) match(c domain.Condition) (Set, error) {
	switch c.Kind {
	case domain.ConditionCampaignEvent:
		ids, err := r.svc.repo.PersonIDsWithEvent(r.ctx, c.CampaignID, c.EventType)
		if err != nil {
			return nil, fmt.Errorf("campaign events %s/%s: %w", c.CampaignID, c.EventType, err)
		}
		return NewSet(ids...), nil
	case domain.ConditionEngagementLevel:
		ids, err := r.svc.repo.PersonIDsWithEngagementLevel(r.ctx, c.Level)
		if err != nil {
			return nil, fmt.Errorf("engagement level %s: %w", c.Level, err)
		}
		return NewSet(ids...), nil
	case domain.ConditionSegment:
		people, err := r.eligiblePeople()
		if err != nil {
			return nil, err
		}
		now := r.svc.now()
		out := Set{}
		for _, p := range people {
			if seg, ok := SegmentOf(p, now); ok && seg == c.Segment {
				out[p.Person.ID] = struct{}{}
			}
		}
		return out, nil
	}
	return nil, invalidf("unknown condition kind %q", c.Kind)
}

func (r *resolution) eligiblePeople() ([]domain.PersonWithSubscription, error) {
	if r.eligible == nil {
		people, err := r.svc.repo.EligiblePeople(r.ctx)
		if err != nil {
			return nil, fmt.Errorf("load eligible people: %w", err)
		}
		if people == nil {
			people = []domain.PersonWithSubscription{}
		}
		r.eligible = people
	}
	return r.eligible, nil
}

func (r *resolution) allEligible() (Set, error) {
	if r.universe == nil {
		people, err := r.eligiblePeople()
		if err != nil {
			return nil, err
		}
		r.universe = make(Set, len(people))
		for _, p := range people {
			r.universe[p.Person.ID] = struct{}{}
		}
	}
	return r.universe, nil
}
