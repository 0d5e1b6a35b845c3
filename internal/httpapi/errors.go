package httpapi

import (
	"encoding/json"
	"net/http"

	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeStructureError maps err onto the HTTP status its error kind carries
// in the registry, falling back to UpdateError for anything unclassified.
func writeStructureError(w http.ResponseWriter, err error, requestID string) {
	env := errs.FromError(err, errs.UpdateError, requestID)
	errs.WriteHTTP(w, errs.HTTPStatusFor(env.Error.Code), env)
}

func writeInternalError(w http.ResponseWriter) {
	errs.WriteHTTP(w, http.StatusInternalServerError, errs.NewEnvelope(errs.Internal, "internal server error", "", nil))
}
