package domain

import (
	"slices"
	"strings"
	"time"
)

// Pipeline identifies one board of items.
type Pipeline string

// PipelineLeads and related constants name the supported pipelines.
const (
	PipelineLeads         Pipeline = "leads"
	PipelineOpportunities Pipeline = "opportunities"
)

var validPipelines = []Pipeline{PipelineLeads, PipelineOpportunities}

// Pipelines returns every supported pipeline in display order.
func Pipelines() []Pipeline {
	return slices.Clone(validPipelines)
}

// ParsePipeline normalizes raw input into a known pipeline.
func ParsePipeline(raw string) (Pipeline, error) {
	p := Pipeline(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validPipelines, p) {
		return "", ErrInvalidPipeline
	}
	return p, nil
}

// Item is one lead or opportunity flowing through a pipeline.
type Item struct {
	ID              string
	Pipeline        Pipeline
	Status          string
	Title           string
	Person          string
	Organization    string
	Owner           string
	Tag             string
	Value           MonetaryValue
	Probability     *int
	ExpectedCloseAt *time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ItemInput holds the values accepted by NewItem.
type ItemInput struct {
	ID              string
	Pipeline        Pipeline
	Status          string
	Title           string
	Person          string
	Organization    string
	Owner           string
	Tag             string
	Value           MonetaryValue
	Probability     *int
	ExpectedCloseAt *time.Time
	Notes           string
	CreatedAt       time.Time
}

// NewItem validates input and builds an item.
func NewItem(in ItemInput, now time.Time) (Item, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Status = normalizeStatus(in.Status)
	in.Title = strings.TrimSpace(in.Title)
	if in.ID == "" {
		return Item{}, ErrInvalidID
	}
	if !slices.Contains(validPipelines, in.Pipeline) {
		return Item{}, ErrInvalidPipeline
	}
	if in.Status == "" {
		return Item{}, ErrInvalidStatus
	}
	if in.Title == "" {
		return Item{}, ErrInvalidTitle
	}
	if in.Probability != nil && (*in.Probability < 0 || *in.Probability > 100) {
		return Item{}, ErrInvalidProbability
	}

	created := in.CreatedAt
	if created.IsZero() {
		created = now
	}
	return Item{
		ID:              in.ID,
		Pipeline:        in.Pipeline,
		Status:          in.Status,
		Title:           in.Title,
		Person:          strings.TrimSpace(in.Person),
		Organization:    strings.TrimSpace(in.Organization),
		Owner:           strings.TrimSpace(in.Owner),
		Tag:             strings.TrimSpace(in.Tag),
		Value:           MonetaryValue(strings.TrimSpace(string(in.Value))),
		Probability:     in.Probability,
		ExpectedCloseAt: normalizeOptionalTime(in.ExpectedCloseAt),
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       created.UTC(),
		UpdatedAt:       now.UTC(),
	}, nil
}

// SetStatus moves the item to another stage.
func (i *Item) SetStatus(status string, now time.Time) error {
	status = normalizeStatus(status)
	if status == "" {
		return ErrInvalidStatus
	}
	i.Status = status
	i.UpdatedAt = now.UTC()
	return nil
}

// Amount returns the numeric value used for aggregation.
func (i Item) Amount() float64 {
	return i.Value.Float()
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeOptionalTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	ts := t.UTC()
	return &ts
}
