// Package errors defines the error kind registry for the virtual structure
// service and the JSON envelope used to surface them over HTTP.
package errors

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Code is a stable error code. Once published, treat codes as API-stable.
type Code string

// CodeMeta provides metadata useful for HTTP mapping, retry decisions, and documentation.
type CodeMeta struct {
	HTTPStatus  int    `json:"http_status"`
	Retryable   bool   `json:"retryable"`
	Kind        string `json:"kind"`        // client|server|security|dependency
	Description string `json:"description"` // human description
}

// The ten error kinds named by the error handling design: malformed input,
// invariant violations, missing entities, database failures of various
// shapes, authorization, wiring resolution, and startup ingestion.
const (
	ParseError           Code = "structure.parse_error"
	ValidationError      Code = "structure.validation_error"
	NotFound             Code = "structure.not_found"
	IntegrityError       Code = "structure.integrity_error"
	UpdateError          Code = "structure.update_error"
	ConnectionError      Code = "structure.connection_error"
	AssociationError     Code = "structure.association_error"
	AuthorizationError   Code = "structure.authorization_error"
	AdapterHandlingError Code = "structure.adapter_handling_error"
	PrepopulationError   Code = "structure.prepopulation_error"

	Internal Code = "internal"
)

// registry is intentionally unexported; use Meta/Known/List/ExportJSON.
var registry = map[Code]CodeMeta{
	ParseError:           {HTTPStatus: 422, Retryable: false, Kind: "client", Description: "request or structure document is not well-formed JSON"},
	ValidationError:      {HTTPStatus: 422, Retryable: false, Kind: "client", Description: "structure document violates an invariant"},
	NotFound:             {HTTPStatus: 404, Retryable: false, Kind: "client", Description: "referenced entity does not exist"},
	IntegrityError:       {HTTPStatus: 500, Retryable: false, Kind: "dependency", Description: "unique or foreign key violation at the database"},
	UpdateError:          {HTTPStatus: 500, Retryable: false, Kind: "dependency", Description: "non-integrity database write failure"},
	ConnectionError:      {HTTPStatus: 503, Retryable: true, Kind: "dependency", Description: "database unreachable"},
	AssociationError:     {HTTPStatus: 500, Retryable: false, Kind: "dependency", Description: "association rebuild failed"},
	AuthorizationError:   {HTTPStatus: 403, Retryable: false, Kind: "security", Description: "maintenance secret mismatch"},
	AdapterHandlingError: {HTTPStatus: 500, Retryable: false, Kind: "client", Description: "wiring resolution could not find a referenced source or sink"},
	PrepopulationError:   {HTTPStatus: 500, Retryable: false, Kind: "server", Description: "startup ingestion failed"},
	Internal:             {HTTPStatus: 500, Retryable: true, Kind: "server", Description: "internal error"},
}

// Meta returns metadata for a code.
func Meta(code Code) (CodeMeta, bool) {
	m, ok := registry[code]
	return m, ok
}

func Known(code Code) bool {
	_, ok := registry[code]
	return ok
}

// List returns all known codes sorted.
func List() []Code {
	out := make([]Code, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExportJSON returns stable JSON of all codes + meta.
func ExportJSON() []byte {
	type row struct {
		Code Code     `json:"code"`
		Meta CodeMeta `json:"meta"`
	}
	codes := List()
	rows := make([]row, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, row{Code: c, Meta: registry[c]})
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return []byte("[]")
	}
	var buf bytes.Buffer
	_, _ = buf.Write(b)
	return buf.Bytes()
}
