package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type ModelStatus string

const (
	ModelStatusStarted   ModelStatus = "started"
	ModelStatusFinished  ModelStatus = "finished"
	ModelStatusCancelled ModelStatus = "cancelled"
)

var modelStatusOrdinals = []ModelStatus{ModelStatusStarted, ModelStatusFinished, ModelStatusCancelled}

func (s ModelStatus) Valid() bool {
	switch s {
	case ModelStatusStarted, ModelStatusFinished, ModelStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseModelStatus accepts the lower-case name or the legacy ordinal (0, 1, 2).
func ParseModelStatus(raw string) (ModelStatus, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(value); err == nil {
		if n < 0 || n >= len(modelStatusOrdinals) {
			return "", WrapError(ErrInvalidInput, "parse model status", fmt.Errorf("invalid status %d", n))
		}
		return modelStatusOrdinals[n], nil
	}
	status := ModelStatus(value)
	if !status.Valid() {
		return "", WrapError(ErrInvalidInput, "parse model status", fmt.Errorf("invalid status %q", raw))
	}
	return status, nil
}

func (s *ModelStatus) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	parsed, err := ParseModelStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s ModelStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// ClassificationModel is a trained-artifact record. It exclusively owns its Stats.
type ClassificationModel struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	StartDate        time.Time   `json:"startDate"`
	EndDate          *time.Time  `json:"endDate,omitempty"`
	Status           ModelStatus `json:"status"`
	IsActive         bool        `json:"isActive"`
	FileName         string      `json:"fileName,omitempty"`
	KeyToCategoryMap string      `json:"keyToCategoryMap,omitempty"`
	Stats            *ModelStats `json:"modelStats,omitempty"`
	ErrorMessage     string      `json:"errorMessage,omitempty"`
	Version          int64       `json:"version"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

type ModelStats struct {
	MacroAccuracy   float64          `json:"macroAccuracy"`
	MicroAccuracy   float64          `json:"microAccuracy"`
	LogLoss         float64          `json:"logLoss"`
	ConfusionMatrix *ConfusionMatrix `json:"confusionMatrix,omitempty"`
}

type ConfusionMatrix struct {
	NumberOfClasses   int              `json:"numberOfClasses"`
	Counts            []ConfusionCount `json:"counts"`
	PerClassPrecision []PerClassScore  `json:"perClassPrecision"`
	PerClassRecall    []PerClassScore  `json:"perClassRecall"`
}

// ConfusionCount is one cell of the matrix, keyed by category ids.
type ConfusionCount struct {
	RealClass      int     `json:"realClass"`
	PredictedClass int     `json:"predictedClass"`
	Count          float64 `json:"count"`
}

type PerClassScore struct {
	Class int     `json:"class"`
	Score float64 `json:"score"`
}

// Complete reports whether the stats carry a usable confusion matrix.
func (s *ModelStats) Complete() bool {
	return s != nil && s.ConfusionMatrix != nil && s.ConfusionMatrix.NumberOfClasses > 0 && len(s.ConfusionMatrix.Counts) > 0
}

// ModelPatch carries optional field overwrites. Empty strings mean "not provided".
type ModelPatch struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	StartDate   *time.Time   `json:"startDate,omitempty"`
	EndDate     *time.Time   `json:"endDate,omitempty"`
	Status      *ModelStatus `json:"status,omitempty"`
	IsActive    *bool        `json:"isActive,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
}

func (p ModelPatch) Apply(m *ClassificationModel) {
	if p.Name != "" {
		m.Name = p.Name
	}
	if p.Description != "" {
		m.Description = p.Description
	}
	if p.StartDate != nil {
		m.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		end := *p.EndDate
		m.EndDate = &end
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	if p.IsActive != nil {
		m.IsActive = *p.IsActive
	}
	if p.FileName != "" {
		m.FileName = p.FileName
	}
}

type NewModelInput struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	StartDate   *time.Time   `json:"startDate,omitempty"`
	EndDate     *time.Time   `json:"endDate,omitempty"`
	Status      *ModelStatus `json:"status,omitempty"`
	FileName    string       `json:"fileName,omitempty"`
}

const MaxPageSize = 100

type ListQuery struct {
	Take   int
	Skip   int
	Search string
}

// Normalize clamps take to [1, MaxPageSize] and skip to >= 0.
func (q ListQuery) Normalize() ListQuery {
	out := q
	if out.Take <= 0 {
		out.Take = 10
	}
	if out.Take > MaxPageSize {
		out.Take = MaxPageSize
	}
	if out.Skip < 0 {
		out.Skip = 0
	}
	out.Search = strings.ToLower(strings.TrimSpace(out.Search))
	return out
}

type ModelPage struct {
	Items        []ClassificationModel `json:"items"`
	TotalRecords int64                 `json:"totalRecords"`
	TotalPages   int                   `json:"totalPages"`
	Take         int                   `json:"take"`
}

func TotalPages(total int64, take int) int {
	if take <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(take) - 1) / int64(take))
}
