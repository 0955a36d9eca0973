package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CreditIntel/internal/domain/models"
)

// snapshotRow is the column layout shared by the SQL snapshot tables.
type snapshotRow struct {
	ID            uuid.UUID
	ClientID      int64
	Result        []byte
	Weights       []byte
	WeightsSource string
	HealthScore   float64
	CreditLimit   float64
	Mode          string
	Version       int64
	CalculatedAt  time.Time
}

func encodeSnapshot(s models.CreditSnapshot) (snapshotRow, error) {
	res, err := json.Marshal(s.Result)
	if err != nil {
		return snapshotRow{}, fmt.Errorf("encode result: %w", err)
	}
	w, err := json.Marshal(s.Weights)
	if err != nil {
		return snapshotRow{}, fmt.Errorf("encode weights: %w", err)
	}
	id := s.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	version := s.Version
	if version <= 0 {
		version = 1
	}
	return snapshotRow{
		ID:            id,
		ClientID:      s.ClientID,
		Result:        res,
		Weights:       w,
		WeightsSource: string(s.WeightsSource),
		HealthScore:   s.Result.CreditHealthScore,
		CreditLimit:   s.Result.CreditLimit,
		Mode:          string(s.Result.Mode),
		Version:       version,
		CalculatedAt:  s.CalculatedAt.UTC(),
	}, nil
}

func (r snapshotRow) decode() (models.CreditSnapshot, error) {
	s := models.CreditSnapshot{
		ID:            r.ID,
		ClientID:      r.ClientID,
		WeightsSource: models.WeightsSource(r.WeightsSource),
		Version:       r.Version,
		CalculatedAt:  r.CalculatedAt.UTC(),
	}
	if err := json.Unmarshal(r.Result, &s.Result); err != nil {
		return models.CreditSnapshot{}, fmt.Errorf("decode result: %w", err)
	}
	if err := json.Unmarshal(r.Weights, &s.Weights); err != nil {
		return models.CreditSnapshot{}, fmt.Errorf("decode weights: %w", err)
	}
	return s, nil
}

func encodeSettings(s models.CreditSettings) (weights, learning []byte, err error) {
	if weights, err = json.Marshal(s.Weights); err != nil {
		return nil, nil, fmt.Errorf("encode weights: %w", err)
	}
	if learning, err = json.Marshal(s.Learning); err != nil {
		return nil, nil, fmt.Errorf("encode learning: %w", err)
	}
	return weights, learning, nil
}

func decodeSettings(weights, learning []byte, updatedAt time.Time, updatedBy string) (models.CreditSettings, error) {
	s := models.CreditSettings{UpdatedAt: updatedAt.UTC(), UpdatedBy: updatedBy}
	if err := json.Unmarshal(weights, &s.Weights); err != nil {
		return models.CreditSettings{}, fmt.Errorf("decode weights: %w", err)
	}
	if err := json.Unmarshal(learning, &s.Learning); err != nil {
		return models.CreditSettings{}, fmt.Errorf("decode learning: %w", err)
	}
	return s, nil
}
