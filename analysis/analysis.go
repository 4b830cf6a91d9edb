// Package analysis tracks website-security analyses. Scan execution is
// simulated: an analysis completes a fixed delay after creation and receives
// a generated report with a severity tier and a set of detections drawn
// from a catalog of leaked-information types.
package analysis

import (
	"errors"
	"time"
)

// Analysis states.
const (
	StateInProgress = "en_proceso"
	StateCompleted  = "completado"
)

// Severity is the report-level tier.
type Severity string

const (
	SeveritySafe     Severity = "seguro"
	SeverityWarning  Severity = "advertencia"
	SeverityCritical Severity = "critico"
)

// Criticality grades a single detection.
type Criticality string

const (
	CriticalityLow    Criticality = "baja"
	CriticalityMedium Criticality = "media"
	CriticalityHigh   Criticality = "critica"
)

// Analysis is one tracked scan of a URL.
type Analysis struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	State         string    `json:"estado"`
	GroupID       string    `json:"grupoId,omitempty"`
	CreatedAt     time.Time `json:"fechaCreacion"`
	CommentsCount int       `json:"comentariosCount"`
}

// Detection is a single piece of exposed information found by a scan.
type Detection struct {
	Number      int         `json:"numero"`
	InfoType    string      `json:"tipoInformacion"`
	FilePath    string      `json:"rutaArchivo"`
	Location    string      `json:"filaColumna"`
	Criticality Criticality `json:"criticidad"`
}

// Report is the outcome of a completed analysis.
type Report struct {
	AnalysisID      string      `json:"analysisId"`
	URL             string      `json:"url"`
	TotalDetections int         `json:"totalDetecciones"`
	Severity        Severity    `json:"nivelCriticidad"`
	Detections      []Detection `json:"detecciones"`
}

// Comment is a discussion entry attached to an analysis.
type Comment struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysisId"`
	AuthorID   string    `json:"userId"`
	AuthorName string    `json:"userName"`
	Content    string    `json:"contenido"`
	CreatedAt  time.Time `json:"fechaCreacion"`
	EditedAt   time.Time `json:"fechaEdicion,omitzero"`
}

var (
	// ErrNotFound is returned for unknown analysis or comment IDs.
	ErrNotFound = errors.New("analysis: not found")

	// ErrReportNotReady is returned when a report is requested for an
	// analysis still in progress.
	ErrReportNotReady = errors.New("analysis: report not ready")

	// ErrCommentLocked is returned when a comment may no longer be edited
	// by the caller.
	ErrCommentLocked = errors.New("analysis: comment locked")
)
