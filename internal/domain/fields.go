package domain

import (
	"slices"
	"strings"
)

// FieldID names one item attribute a card can render.
type FieldID string

// FieldTitle and related constants are the recognized card fields.
const (
	FieldTitle         FieldID = "title"
	FieldPerson        FieldID = "person"
	FieldOrganization  FieldID = "organization"
	FieldValue         FieldID = "value"
	FieldOwner         FieldID = "owner"
	FieldTag           FieldID = "tag"
	FieldCreated       FieldID = "created"
	FieldProbability   FieldID = "probability"
	FieldExpectedClose FieldID = "expected_close"
)

// MaxVisibleCardFields caps the picker selection; stores accept any length.
const MaxVisibleCardFields = 6

var knownFields = []FieldID{
	FieldTitle,
	FieldPerson,
	FieldOrganization,
	FieldValue,
	FieldOwner,
	FieldTag,
	FieldCreated,
	FieldProbability,
	FieldExpectedClose,
}

var fieldLabels = map[FieldID]string{
	FieldTitle:         "Title",
	FieldPerson:        "Person",
	FieldOrganization:  "Organization",
	FieldValue:         "Value",
	FieldOwner:         "Owner",
	FieldTag:           "Tag",
	FieldCreated:       "Created",
	FieldProbability:   "Probability",
	FieldExpectedClose: "Expected close",
}

// DefaultCardFields returns the baseline field set.
func DefaultCardFields() []FieldID {
	return []FieldID{FieldTitle, FieldOrganization, FieldValue, FieldOwner, FieldTag}
}

// KnownFields returns every recognized field in picker order.
func KnownFields() []FieldID {
	return slices.Clone(knownFields)
}

// IsKnownField reports whether id is rendered by cards.
func IsKnownField(id FieldID) bool {
	return slices.Contains(knownFields, id)
}

// FieldLabel returns the display label for a field, or the raw id.
func FieldLabel(id FieldID) string {
	if label, ok := fieldLabels[id]; ok {
		return label
	}
	return string(id)
}

// ParseFieldIDs trims and lowercases raw ids. Unknown ids are kept.
func ParseFieldIDs(raw []string) []FieldID {
	out := make([]FieldID, 0, len(raw))
	for _, r := range raw {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		out = append(out, FieldID(r))
	}
	return out
}

// FieldStrings converts ids to plain strings.
func FieldStrings(ids []FieldID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
