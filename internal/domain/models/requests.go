package models

// Requests for the credit HTTP endpoints.

type CalculateRequest struct {
	ClientID int64          `param:"clientId" json:"-" validate:"required,gt=0"`
	Weights  *SignalWeights `json:"weights"`
}

type PreviewRequest struct {
	ClientID int64          `param:"clientId" json:"-" validate:"required,gt=0"`
	Weights  *SignalWeights `json:"weights" validate:"required"`
}

type SnapshotRequest struct {
	ClientID int64 `param:"clientId" json:"-" validate:"required,gt=0"`
}

type HistoryRequest struct {
	ClientID int64 `param:"clientId" json:"-" validate:"required,gt=0"`
	Limit    int   `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=500"`
}

type SaveWeightsRequest struct {
	Weights   *SignalWeights `json:"weights" validate:"required"`
	UpdatedBy string         `json:"updatedBy" default:"api" validate:"max=128"`
}

type RecalculateRequest struct {
	ClientIDs []int64 `json:"clientIds" validate:"max=5000,dive,gt=0"`
	Reason    string  `json:"reason" default:"manual" validate:"max=64"`
}
