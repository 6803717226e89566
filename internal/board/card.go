package board

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/evanschultz/funnel/internal/domain"
)

// DefaultActivationWindow bounds the gap between the two halves of a double activation.
const DefaultActivationWindow = 400 * time.Millisecond

// CardRow is one rendered field line of a card.
type CardRow struct {
	Field domain.FieldID
	Label string
	Value string
}

// AmountFormatter renders a monetary total or item value.
type AmountFormatter func(float64) string

// CurrencyFormatter formats amounts with dot grouping and comma decimals behind prefix.
func CurrencyFormatter(prefix string) AmountFormatter {
	prefix = strings.TrimSpace(prefix)
	return func(v float64) string {
		out := humanize.FormatFloat("#.###,##", v)
		if prefix == "" {
			return out
		}
		return prefix + " " + out
	}
}

// CardRows renders the requested fields of item in order. Unknown field ids
// and recognized fields without data produce no row.
func CardRows(item domain.Item, fields []domain.FieldID, format AmountFormatter) []CardRow {
	if format == nil {
		format = CurrencyFormatter("")
	}
	rows := make([]CardRow, 0, len(fields))
	seen := make([]domain.FieldID, 0, len(fields))
	for _, field := range fields {
		if slices.Contains(seen, field) {
			continue
		}
		seen = append(seen, field)
		value, ok := fieldValue(item, field, format)
		if !ok {
			continue
		}
		rows = append(rows, CardRow{
			Field: field,
			Label: domain.FieldLabel(field),
			Value: value,
		})
	}
	return rows
}

func fieldValue(item domain.Item, field domain.FieldID, format AmountFormatter) (string, bool) {
	switch field {
	case domain.FieldTitle:
		return nonEmpty(item.Title)
	case domain.FieldPerson:
		return nonEmpty(item.Person)
	case domain.FieldOrganization:
		return nonEmpty(item.Organization)
	case domain.FieldOwner:
		return nonEmpty(item.Owner)
	case domain.FieldTag:
		return nonEmpty(item.Tag)
	case domain.FieldValue:
		if item.Value.IsZero() {
			return "", false
		}
		return format(item.Amount()), true
	case domain.FieldCreated:
		if item.CreatedAt.IsZero() {
			return "", false
		}
		return item.CreatedAt.Local().Format(time.DateOnly), true
	case domain.FieldProbability:
		if item.Probability == nil {
			return "", false
		}
		return fmt.Sprintf("%d%%", *item.Probability), true
	case domain.FieldExpectedClose:
		if item.ExpectedCloseAt == nil {
			return "", false
		}
		return item.ExpectedCloseAt.Local().Format(time.DateOnly), true
	default:
		return "", false
	}
}

func nonEmpty(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

// ActivationDetector recognizes double activations (double click or tap) on a card.
type ActivationDetector struct {
	window time.Duration
	lastID string
	lastAt time.Time
}

// NewActivationDetector constructs a detector; a non-positive window uses the default.
func NewActivationDetector(window time.Duration) *ActivationDetector {
	if window <= 0 {
		window = DefaultActivationWindow
	}
	return &ActivationDetector{window: window}
}

// Activate records one activation and reports whether it completes a double
// activation on the same item. Activations during a drag never fire.
func (d *ActivationDetector) Activate(itemID string, at time.Time, dragging bool) bool {
	if dragging {
		d.Reset()
		return false
	}
	if itemID != "" && itemID == d.lastID && !d.lastAt.IsZero() {
		gap := at.Sub(d.lastAt)
		if gap >= 0 && gap <= d.window {
			d.Reset()
			return true
		}
	}
	d.lastID = itemID
	d.lastAt = at
	return false
}

// Reset forgets the pending first activation.
func (d *ActivationDetector) Reset() {
	d.lastID = ""
	d.lastAt = time.Time{}
}
