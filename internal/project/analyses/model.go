package analyses

import (
	"github.com/rencana-app/rencana/internal/ahsp"
)

// ProjectAnalysis is an analysis owned by a project. Either a frozen
// copy of a master analysis (SourceID set, editable only through an
// explicit sync) or a project-owned custom analysis (SourceID nil,
// freely editable).
type ProjectAnalysis struct {
	ID        int64                   `json:"id"`
	ProjectID int64                   `json:"project_id"`
	SourceID  *int64                  `json:"source_id,omitempty"`
	Code      string                  `json:"code"`
	Name      string                  `json:"name"`
	UnitID    int64                   `json:"unit_id"`
	UnitCode  string                  `json:"unit_code,omitempty"`
	Entries   []ahsp.CompositionEntry `json:"entries,omitempty"`
}

// Custom reports whether the analysis is project-owned rather than a
// master copy.
func (a ProjectAnalysis) Custom() bool {
	return a.SourceID == nil
}
