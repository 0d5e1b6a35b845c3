package model

import (
	"regexp"
	"strings"

	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// FilterType is the closed enum of filter kinds. Presently only free_text.
type FilterType string

const FilterTypeFreeText FilterType = "free_text"

// Filter declares a runtime-settable parameter on a Source or Sink.
type Filter struct {
	Name         string     `json:"name"`
	InternalName string     `json:"internal_name"`
	Type         FilterType `json:"type"`
	Required     bool       `json:"required"`
}

var (
	filterNamePattern         = regexp.MustCompile(`^[A-Za-z0-9_\s]+$`)
	filterInternalNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// normalizeAndValidate derives InternalName when absent and checks both
// name fields against their allowed character sets. It mutates f in place,
// mirroring the source document's own "fill in the derived default" step.
func (f *Filter) normalizeAndValidate() error {
	if strings.TrimSpace(f.Name) == "" || !filterNamePattern.MatchString(f.Name) {
		return errs.New(errs.ValidationError,
			"The name of the filter must be set to a non-empty string, that only "+
				"contains alphanumeric characters, underscores and spaces.")
	}
	if f.InternalName == "" {
		f.InternalName = deriveInternalName(f.Name)
	}
	if !filterInternalNamePattern.MatchString(f.InternalName) {
		return errs.New(errs.ValidationError,
			"The internal_name of the filter can only contain alphanumeric characters and underscores.")
	}
	if f.Type != FilterTypeFreeText {
		return errs.New(errs.ValidationError, "unknown filter type: "+string(f.Type))
	}
	return nil
}

// deriveInternalName implements the deterministic derivation rule: strip,
// lowercase, split on whitespace, join with underscores.
func deriveInternalName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), "_")
}
