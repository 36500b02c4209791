package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/target/mmk-bol-sync/internal/domain/model"
)

// WriteJSON encodes v before touching the response so an encoding failure can
// still become a clean 500.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}

// ErrorParams describes an error response. Report is attached when a run
// failed after producing partial results.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
	Report  *model.RunReport
}

type errorBody struct {
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Report  *model.RunReport `json:"report,omitempty"`
}

// WriteError writes {"error": code, "message": text} plus the partial report
// when one is present.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	body := errorBody{Error: p.ErrCode, Report: p.Report}
	if p.Err != nil {
		body.Message = p.Err.Error()
	}
	WriteJSON(w, p.Code, body)
}
