package api

import (
	"encoding/json"
	"time"

	"github.com/picis-sec/picis/approval"
	"github.com/picis-sec/picis/roster"
)

// ErrorResponse is the generic error body. Code is set for gates the client
// must react to, like read-only mode.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// OKResponse is the original wire shape for mutations: {ok, message} plus
// the created document ID where one exists.
type OKResponse struct {
	OK        bool   `json:"ok"`
	DetalleID string `json:"detalleId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// EntidadResponse is an entity document with its ID lifted in.
type EntidadResponse struct {
	ID string `json:"id"`
	// Doc carries the stored fields (nombre, nivel, descripcion, ...)
	// inline.
	Doc map[string]any `json:"-"`
}

// MarshalJSON inlines the document fields next to the ID, matching the
// spread shape `{id, ...data}` clients expect.
func (e EntidadResponse) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Doc)+1)
	for k, v := range e.Doc {
		out[k] = v
	}
	out["id"] = e.ID
	return json.Marshal(out)
}

// SolicitudResponse is the approval request wire shape.
type SolicitudResponse struct {
	ID                    string          `json:"id"`
	Tipo                  string          `json:"tipoSolicitud"`
	Estado                string          `json:"estado"`
	GestorID              string          `json:"gestorId"`
	GestorNombre          string          `json:"gestorNombre"`
	Timestamp             time.Time       `json:"timestamp"`
	Detalle               json.RawMessage `json:"detalle"`
	SupervisoresAprobados []string        `json:"supervisoresAprobados"`
	SupervisoresRechazos  []string        `json:"supervisoresRechazados"`
	ResponsablesAprobados []string        `json:"responsablesAprobados"`
	ResponsablesRechazos  []string        `json:"responsablesRechazados"`
}

func solicitudResponse(req *approval.Request) SolicitudResponse {
	return SolicitudResponse{
		ID:                    req.ID,
		Tipo:                  string(req.Type),
		Estado:                string(req.Status),
		GestorID:              req.RequesterID,
		GestorNombre:          req.RequesterName,
		Timestamp:             req.CreatedAt,
		Detalle:               req.Payload,
		SupervisoresAprobados: setMembers(req.SupervisorsApproved),
		SupervisoresRechazos:  setMembers(req.SupervisorsRejected),
		ResponsablesAprobados: setMembers(req.ResponsiblesApproved),
		ResponsablesRechazos:  setMembers(req.ResponsiblesRejected),
	}
}

func setMembers(s approval.VoteSet) []string {
	raw, _ := json.Marshal(s)
	var out []string
	_ = json.Unmarshal(raw, &out)
	if out == nil {
		out = []string{}
	}
	return out
}

// CreateSolicitudRequest is the body for POST /solicitudes.
type CreateSolicitudRequest struct {
	Tipo    string          `json:"tipoSolicitud"`
	Detalle json.RawMessage `json:"detalle"`
}

// UserResponse is the authenticated principal for GET /api/user.
type UserResponse struct {
	ID     string      `json:"id"`
	Nombre string      `json:"nombre"`
	Correo string      `json:"correo"`
	Rol    roster.Role `json:"rol"`
}

// ReauthStatusResponse reports the re-authentication state of the current
// session.
type ReauthStatusResponse struct {
	Authenticated     bool       `json:"authenticated"`
	ReauthenticatedAt *time.Time `json:"reauthenticatedAt,omitempty"`
}

// CreateAnalysisRequest is the body for POST /analyses.
type CreateAnalysisRequest struct {
	URL string `json:"url"`
}

// CommentRequest is the body for creating or editing a comment.
type CommentRequest struct {
	Contenido string `json:"contenido"`
}
