package domain

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

// DefaultStageColor is applied when a stage has no color of its own.
const DefaultStageColor = "#E5E7EB"

// DefaultNewStageTitle names stages added without an explicit title.
const DefaultNewStageTitle = "New Stage"

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Stage describes one column of a pipeline. ID matches item status values.
type Stage struct {
	ID        string
	Pipeline  Pipeline
	Title     string
	Color     string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewStage validates and builds a stage.
func NewStage(id string, pipeline Pipeline, title, color string, position int, now time.Time) (Stage, error) {
	id = normalizeStatus(id)
	title = strings.TrimSpace(title)
	if id == "" {
		return Stage{}, ErrInvalidID
	}
	if !slices.Contains(validPipelines, pipeline) {
		return Stage{}, ErrInvalidPipeline
	}
	if title == "" {
		return Stage{}, ErrInvalidTitle
	}
	color, err := NormalizeColor(color)
	if err != nil {
		return Stage{}, err
	}
	if position < 0 {
		return Stage{}, ErrInvalidPosition
	}
	return Stage{
		ID:        id,
		Pipeline:  pipeline,
		Title:     title,
		Color:     color,
		Position:  position,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// NormalizeColor upper-cases a #RRGGBB color; empty input yields the default.
func NormalizeColor(color string) (string, error) {
	color = strings.TrimSpace(color)
	if color == "" {
		return DefaultStageColor, nil
	}
	if !strings.HasPrefix(color, "#") {
		color = "#" + color
	}
	if !hexColorPattern.MatchString(color) {
		return "", ErrInvalidColor
	}
	return strings.ToUpper(color), nil
}

// StageList is an ordered stage set edited by the stage-management flow.
// Every editing method returns a new list with positions re-indexed.
type StageList []Stage

// SortedStages returns a copy ordered by position, then id.
func SortedStages(stages []Stage) StageList {
	out := slices.Clone(stages)
	slices.SortStableFunc(out, func(a, b Stage) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// IDs returns stage ids in list order.
func (l StageList) IDs() []string {
	out := make([]string, 0, len(l))
	for _, s := range l {
		out = append(out, s.ID)
	}
	return out
}

// Index returns the position of id in the list or -1.
func (l StageList) Index(id string) int {
	id = normalizeStatus(id)
	return slices.IndexFunc(l, func(s Stage) bool { return s.ID == id })
}

// Contains reports whether id names a stage in the list.
func (l StageList) Contains(id string) bool {
	return l.Index(id) >= 0
}

// Normalize re-indexes positions to 0..n-1 following list order.
func (l StageList) Normalize() StageList {
	out := slices.Clone(l)
	for i := range out {
		out[i].Position = i
	}
	return out
}

// Add appends a stage whose id is derived from the title.
func (l StageList) Add(pipeline Pipeline, title, color string, now time.Time) (StageList, Stage, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultNewStageTitle
	}
	id := l.uniqueID(stageSlug(title))
	stage, err := NewStage(id, pipeline, title, color, len(l), now)
	if err != nil {
		return nil, Stage{}, err
	}
	out := append(slices.Clone(l), stage)
	return out.Normalize(), stage, nil
}

// Rename changes the title of one stage.
func (l StageList) Rename(id, title string, now time.Time) (StageList, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	return l.update(id, now, func(s *Stage) error {
		s.Title = title
		return nil
	})
}

// Recolor changes the accent color of one stage.
func (l StageList) Recolor(id, color string, now time.Time) (StageList, error) {
	color, err := NormalizeColor(color)
	if err != nil {
		return nil, err
	}
	return l.update(id, now, func(s *Stage) error {
		s.Color = color
		return nil
	})
}

// Remove drops one stage.
func (l StageList) Remove(id string) (StageList, error) {
	idx := l.Index(id)
	if idx < 0 {
		return nil, ErrStageNotFound
	}
	out := slices.Delete(slices.Clone(l), idx, idx+1)
	return out.Normalize(), nil
}

// Move places one stage at index, clamped to the list bounds.
func (l StageList) Move(id string, index int, now time.Time) (StageList, error) {
	idx := l.Index(id)
	if idx < 0 {
		return nil, ErrStageNotFound
	}
	out := slices.Clone(l)
	stage := out[idx]
	out = slices.Delete(out, idx, idx+1)
	index = max(0, min(index, len(out)))
	out = slices.Insert(out, index, stage)
	for i := range out {
		if out[i].Position != i {
			out[i].UpdatedAt = now.UTC()
		}
	}
	return out.Normalize(), nil
}

// Validate checks ids are unique and every stage is well formed.
func (l StageList) Validate() error {
	seen := map[string]struct{}{}
	for _, s := range l {
		if _, err := NewStage(s.ID, s.Pipeline, s.Title, s.Color, max(0, s.Position), s.CreatedAt); err != nil {
			return err
		}
		id := normalizeStatus(s.ID)
		if _, ok := seen[id]; ok {
			return ErrDuplicateStage
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (l StageList) update(id string, now time.Time, fn func(*Stage) error) (StageList, error) {
	idx := l.Index(id)
	if idx < 0 {
		return nil, ErrStageNotFound
	}
	out := slices.Clone(l)
	if err := fn(&out[idx]); err != nil {
		return nil, err
	}
	out[idx].UpdatedAt = now.UTC()
	return out.Normalize(), nil
}

func (l StageList) uniqueID(base string) string {
	if base == "" {
		base = "stage"
	}
	id := base
	for n := 2; l.Contains(id); n++ {
		id = base + "_" + strconv.Itoa(n)
	}
	return id
}

// stageSlug lowercases a title into an id made of [a-z0-9_].
func stageSlug(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	prevSep := false
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevSep = false
		default:
			if !prevSep {
				b.WriteByte('_')
				prevSep = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// StageTemplate seeds a pipeline that has no stored stages yet.
type StageTemplate struct {
	ID    string
	Title string
	Color string
}

// DefaultStageTemplates returns the stock stages for a pipeline.
func DefaultStageTemplates(p Pipeline) []StageTemplate {
	switch p {
	case PipelineLeads:
		return []StageTemplate{
			{ID: "new", Title: "Novo Lead", Color: "#9CA3AF"},
			{ID: "contacted", Title: "Contatado", Color: "#FACC15"},
			{ID: "qualified", Title: "Qualificado", Color: "#3B82F6"},
			{ID: "needs_defined", Title: "Necessidades Definidas", Color: "#A855F7"},
			{ID: "costs_estimated", Title: "Custos Estimados", Color: "#EC4899"},
			{ID: "proposal_sent", Title: "Proposta Enviada", Color: "#22C55E"},
			{ID: "negotiation", Title: "Em Negociação", Color: "#F97316"},
			{ID: "won", Title: "Ganho", Color: "#10B981"},
			{ID: "lost", Title: "Perdido", Color: "#EF4444"},
		}
	case PipelineOpportunities:
		return []StageTemplate{
			{ID: "aberta", Title: "Em Aberto", Color: "#3B82F6"},
			{ID: "ganha", Title: "Ganhas", Color: "#22C55E"},
			{ID: "perdida", Title: "Perdidas", Color: "#EF4444"},
		}
	default:
		return nil
	}
}

// StagesFromTemplates materializes templates in order.
func StagesFromTemplates(p Pipeline, templates []StageTemplate, now time.Time) (StageList, error) {
	out := make(StageList, 0, len(templates))
	for idx, tpl := range templates {
		stage, err := NewStage(tpl.ID, p, tpl.Title, tpl.Color, idx, now)
		if err != nil {
			return nil, err
		}
		out = append(out, stage)
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
