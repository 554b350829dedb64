// Package obligations turns detected recurring patterns into stored
// obligations and answers which of them fall due soon.
package obligations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/recurring-tracker/internal/domain"
	"github.com/dvloznov/recurring-tracker/internal/logger"
	"github.com/dvloznov/recurring-tracker/internal/recurring"
)

// DefaultHorizonDays is how far ahead upcoming payments are reported.
const DefaultHorizonDays = 14

// Service runs detection for a user and keeps their obligations current.
type Service struct {
	store      Store
	source     TransactionSource
	classifier Classifier
	options    recurring.Options
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier refines obligation types with c.
func WithClassifier(c Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithTransactionSource lets the service load transactions itself.
func WithTransactionSource(src TransactionSource) Option {
	return func(s *Service) { s.source = src }
}

// WithDetectionOptions overrides the detector gates.
func WithDetectionOptions(opts recurring.Options) Option {
	return func(s *Service) { s.options = opts }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		options: recurring.DefaultOptions(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan loads a user's transactions for [start, end] and runs Detect on them.
func (s *Service) Scan(ctx context.Context, userID string, start, end time.Time) (*DetectionResult, error) {
	if s.source == nil {
		return nil, errors.New("Scan: no transaction source configured")
	}
	records, err := s.source.ListTransactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("Scan: list transactions: %w", err)
	}
	return s.Detect(ctx, userID, records)
}

// Detect finds recurring patterns in records and upserts one obligation per
// pattern with a known frequency. A pattern the store rejects is logged and
// counted in Failed; it does not stop the run.
func (s *Service) Detect(ctx context.Context, userID string, records []domain.TransactionRecord) (*DetectionResult, error) {
	if userID == "" {
		return nil, errors.New("Detect: user id is required")
	}
	log := logger.FromContext(ctx).With().Str("user", logger.MaskUserID(userID)).Logger()

	patterns := recurring.Detect(records, s.options)
	categories := dominantCategories(records)
	now := s.now()

	result := &DetectionResult{Patterns: patterns, Upserts: []UpsertResult{}}
	for i := range patterns {
		p := &patterns[i]
		if p.Frequency == recurring.FrequencyUnknown {
			result.Skipped++
			continue
		}
		p.ObligationType = s.classify(ctx, p.MerchantName)

		o := FromPattern(userID, *p, categories[p.MerchantName], now)
		res, err := s.upsert(ctx, o)
		if err != nil {
			log.Error().
				Err(err).
				Str("merchant", logger.TruncateMerchant(p.MerchantName)).
				Msg("Failed to upsert recurring obligation")
			result.Failed++
			continue
		}
		result.Upserts = append(result.Upserts, res)
	}

	log.Info().
		Int("transactions", len(records)).
		Int("patterns", len(patterns)).
		Int("upserts", len(result.Upserts)).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Recurring detection finished")

	return result, nil
}

func (s *Service) classify(ctx context.Context, merchant string) domain.ObligationType {
	if s.classifier == nil {
		return domain.ObligationOther
	}
	t, err := s.classifier.Classify(ctx, merchant)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().
			Err(err).
			Str("merchant", logger.TruncateMerchant(merchant)).
			Msg("Obligation classification failed, using default type")
		return domain.ObligationOther
	}
	return t
}

func (s *Service) upsert(ctx context.Context, o *Obligation) (UpsertResult, error) {
	existing, err := s.store.FindObligation(ctx, o.Key())
	switch {
	case errors.Is(err, ErrNotFound):
		o.ID = uuid.NewString()
		o.CreatedAt = o.UpdatedAt
		if err := s.store.InsertObligation(ctx, o); err != nil {
			return UpsertResult{}, fmt.Errorf("upsert: insert: %w", err)
		}
		return UpsertResult{ObligationID: o.ID, MerchantName: o.MerchantName, IsNew: true}, nil
	case err != nil:
		return UpsertResult{}, fmt.Errorf("upsert: find existing: %w", err)
	}

	o.ID = existing.ID
	o.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateObligation(ctx, o); err != nil {
		return UpsertResult{}, fmt.Errorf("upsert: update: %w", err)
	}
	return UpsertResult{ObligationID: o.ID, MerchantName: o.MerchantName, IsNew: false}, nil
}

// List returns a user's stored obligations.
func (s *Service) List(ctx context.Context, userID string) ([]Obligation, error) {
	list, err := s.store.ListObligations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return list, nil
}

// Upcoming returns the user's obligations whose next payment falls within
// horizonDays of today, soonest first. Stored next dates that have already
// passed are rolled forward by the obligation's interval.
func (s *Service) Upcoming(ctx context.Context, userID string, horizonDays int) ([]Upcoming, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	list, err := s.store.ListObligations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Upcoming: %w", err)
	}
	return DueWithin(list, s.now(), horizonDays), nil
}

// DueWithin selects the obligations due between today and today+horizonDays.
func DueWithin(list []Obligation, now time.Time, horizonDays int) []Upcoming {
	today := domain.CalendarDate(now)
	limit := today.AddDate(0, 0, horizonDays)

	var out []Upcoming
	for _, o := range list {
		due := NextEstimatedDate(o.LastSeenDate, o.IntervalDays, today)
		if due == nil || due.After(limit) {
			continue
		}
		out = append(out, Upcoming{
			Obligation: o,
			DueDate:    *due,
			DaysUntil:  int(due.Sub(today).Hours() / 24),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Obligation.MerchantName < out[j].Obligation.MerchantName
	})
	return out
}

// NextEstimatedDate adds intervalDays to last until the result is no longer
// before now's calendar date. It returns nil when there is no interval.
func NextEstimatedDate(last time.Time, intervalDays int, now time.Time) *time.Time {
	if intervalDays <= 0 || last.IsZero() {
		return nil
	}
	today := domain.CalendarDate(now)
	next := domain.CalendarDate(last).AddDate(0, 0, intervalDays)
	for next.Before(today) {
		next = next.AddDate(0, 0, intervalDays)
	}
	return &next
}

// FromPattern builds the obligation stored for a detected pattern.
func FromPattern(userID string, p recurring.Pattern, category string, now time.Time) *Obligation {
	return &Obligation{
		UserID:            userID,
		MerchantName:      p.MerchantName,
		Category:          category,
		ObligationType:    p.ObligationType,
		AvgAmount:         p.AvgAmount,
		AmountVariance:    p.AmountVariance,
		LastAmount:        p.LastAmount,
		Frequency:         p.Frequency,
		IntervalDays:      p.IntervalDays,
		DayOfMonth:        p.DayOfMonth,
		Weekday:           p.Weekday,
		NextEstimatedDate: NextEstimatedDate(p.LastSeenDate, p.IntervalDays, now),
		FirstSeenDate:     p.FirstSeenDate,
		LastSeenDate:      p.LastSeenDate,
		Source:            SourceTransactions,
		Confidence:        p.Confidence,
		UpdatedAt:         now.UTC(),
	}
}

// dominantCategories maps each merchant key to the category most of its
// outflows carry. Ties go to the alphabetically first category.
func dominantCategories(records []domain.TransactionRecord) map[string]string {
	counts := make(map[string]map[string]int)
	for _, r := range records {
		if !r.Direction.IsOutflow() || r.Category == "" {
			continue
		}
		key := recurring.NormalizeMerchant(r.Description)
		if counts[key] == nil {
			counts[key] = make(map[string]int)
		}
		counts[key][r.Category]++
	}

	out := make(map[string]string, len(counts))
	for key, byCategory := range counts {
		best, bestCount := "", 0
		for c, n := range byCategory {
			if n > bestCount || (n == bestCount && c < best) {
				best, bestCount = c, n
			}
		}
		out[key] = best
	}
	return out
}
