// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRequest reports malformed or semantically invalid input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrConflict reports requests that contradict current pipeline state.
var ErrConflict = errors.New("conflict")

// Stage is one pipeline stage as returned by transports.
type Stage struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Color    string `json:"color"`
	Position int    `json:"position"`
}

// StageInput is one stage row of a full stage-list replacement.
type StageInput struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Color string `json:"color"`
}

// Item is one pipeline item as returned by transports.
type Item struct {
	ID              string     `json:"id"`
	Pipeline        string     `json:"pipeline"`
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	Person          string     `json:"person,omitempty"`
	Organization    string     `json:"organization,omitempty"`
	Owner           string     `json:"owner,omitempty"`
	Tag             string     `json:"tag,omitempty"`
	Value           string     `json:"value,omitempty"`
	Amount          float64    `json:"amount"`
	Probability     *int       `json:"probability,omitempty"`
	ExpectedCloseAt *time.Time `json:"expected_close_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Column is one rendered board column.
type Column struct {
	Stage Stage   `json:"stage"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
	Items []Item  `json:"items"`
}

// Board is the full board of one pipeline.
type Board struct {
	Pipeline string   `json:"pipeline"`
	Columns  []Column `json:"columns"`
	Unplaced []Item   `json:"unplaced,omitempty"`
	Count    int      `json:"count"`
	Total    float64  `json:"total"`
}

// MoveItemRequest moves one item into a target stage.
type MoveItemRequest struct {
	Pipeline string `json:"pipeline"`
	ItemID   string `json:"item_id"`
	Status   string `json:"status"`
}

// MoveItemResult reports the outcome of one move.
type MoveItemResult struct {
	Item    Item   `json:"item"`
	From    string `json:"from"`
	Changed bool   `json:"changed"`
}

// PipelineService is the app-facing contract consumed by every transport.
type PipelineService interface {
	Board(context.Context, string) (Board, error)
	ListStages(context.Context, string) ([]Stage, error)
	SaveStages(context.Context, string, []StageInput) ([]Stage, error)
	MoveItem(context.Context, MoveItemRequest) (MoveItemResult, error)
}
