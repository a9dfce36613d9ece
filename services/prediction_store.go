package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"truthlens-api/logging"
	"truthlens-api/models"
)

const (
	PredictionKeyPrefix = "prediction_"
	PredictionsChannel  = "truthlens:predictions"
	// SummaryTextRunes bounds the text of listed and broadcast records.
	SummaryTextRunes = 200
)

var ErrPredictionNotFound = errors.New("prediction not found")

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

type PredictionStore struct {
	kv     *KVStore
	logger logging.Logger
	now    func() time.Time
}

func NewPredictionStore(kv *KVStore, logger logging.Logger) *PredictionStore {
	return &PredictionStore{kv: kv, logger: logger, now: time.Now}
}

// NewPredictionID returns prediction_<unix ms>_<6 base-36 chars>. Collisions
// are possible but unlikely.
func NewPredictionID(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			suffix[i] = base36[now.UnixNano()%int64(len(base36))]
			continue
		}
		suffix[i] = base36[n.Int64()]
	}
	return fmt.Sprintf("%s%d_%s", PredictionKeyPrefix, now.UnixMilli(), suffix)
}

// Save assigns an id and creation time, writes the record without expiry and
// announces it on the live channel.
func (s *PredictionStore) Save(ctx context.Context, rec *models.PredictionRecord) (string, error) {
	now := s.now().UTC()
	rec.ID = NewPredictionID(now)
	rec.CreatedAt = now

	if err := s.kv.Set(ctx, rec.ID, rec, 0); err != nil {
		return "", fmt.Errorf("save prediction: %w", err)
	}

	if err := s.kv.Publish(ctx, PredictionsChannel, rec.Summary(SummaryTextRunes)); err != nil {
		s.logger.WithError(err).WithField("prediction_id", rec.ID).Warn("Failed to publish prediction")
	}
	return rec.ID, nil
}

func (s *PredictionStore) Get(ctx context.Context, id string) (*models.PredictionRecord, error) {
	if !strings.HasPrefix(id, PredictionKeyPrefix) {
		return nil, ErrPredictionNotFound
	}
	var rec models.PredictionRecord
	if err := s.kv.Get(ctx, id, &rec); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ListByPrefix returns every record whose key starts with prefix, unsorted.
// Values that do not decode are skipped.
func (s *PredictionStore) ListByPrefix(ctx context.Context, prefix string) ([]models.PredictionRecord, error) {
	raw, err := s.kv.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	records := make([]models.PredictionRecord, 0, len(raw))
	for _, r := range raw {
		var rec models.PredictionRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			s.logger.WithError(err).Debug("Skipping undecodable prediction")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Recent returns up to limit records, newest first. A non-nil before keeps only
// records created strictly earlier.
func (s *PredictionStore) Recent(ctx context.Context, limit int, before *time.Time) ([]models.PredictionRecord, error) {
	return s.recent(ctx, limit, before, nil)
}

// RecentForUser is Recent restricted to records created by userID.
func (s *PredictionStore) RecentForUser(ctx context.Context, userID uint, limit int) ([]models.PredictionRecord, error) {
	return s.recent(ctx, limit, nil, func(r models.PredictionRecord) bool {
		return r.UserID == userID
	})
}

func (s *PredictionStore) recent(ctx context.Context, limit int, before *time.Time, keep func(models.PredictionRecord) bool) ([]models.PredictionRecord, error) {
	all, err := s.ListByPrefix(ctx, PredictionKeyPrefix)
	if err != nil {
		return nil, err
	}

	filtered := all[:0]
	for _, r := range all {
		if before != nil && !r.CreatedAt.Before(*before) {
			continue
		}
		if keep != nil && !keep(r) {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}
