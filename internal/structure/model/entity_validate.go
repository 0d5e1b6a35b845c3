package model

import (
	"fmt"

	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

func checkCommonFieldsNotEmpty(externalID, stakeholderKey, name string) error {
	switch {
	case externalID == "":
		return errs.New(errs.ValidationError, "The field external_id cannot be empty.")
	case stakeholderKey == "":
		return errs.New(errs.ValidationError, "The field stakeholder_key cannot be empty.")
	case name == "":
		return errs.New(errs.ValidationError, "The field name cannot be empty.")
	}
	return nil
}

// Validate checks this entity's own fields, independent of the document it
// belongs to.
func (e *ElementType) Validate() error {
	return checkCommonFieldsNotEmpty(e.ExternalID, e.StakeholderKey, e.Name)
}

func (n *ThingNode) Validate() error {
	return checkCommonFieldsNotEmpty(n.ExternalID, n.StakeholderKey, n.Name)
}

// Validate checks Source's own fields: common fields, the external-type
// enum, and every passthrough filter (deriving internal_name where absent
// and rejecting duplicate internal_name values).
func (s *Source) Validate() error {
	if err := checkCommonFieldsNotEmpty(s.ExternalID, s.StakeholderKey, s.Name); err != nil {
		return err
	}
	if s.PresetFilters == nil {
		s.PresetFilters = map[string]any{}
	}
	if !s.Type.Valid() {
		return errs.New(errs.ValidationError, fmt.Sprintf("unknown source type: %q", s.Type))
	}
	return validatePassthroughFilters(s.PassthroughFilters, "source", s.ExternalID)
}

func (s *Sink) Validate() error {
	if err := checkCommonFieldsNotEmpty(s.ExternalID, s.StakeholderKey, s.Name); err != nil {
		return err
	}
	if s.PresetFilters == nil {
		s.PresetFilters = map[string]any{}
	}
	if !s.Type.Valid() {
		return errs.New(errs.ValidationError, fmt.Sprintf("unknown sink type: %q", s.Type))
	}
	return validatePassthroughFilters(s.PassthroughFilters, "sink", s.ExternalID)
}

func validatePassthroughFilters(filters []Filter, ownerKind, ownerExternalID string) error {
	seen := make(map[string]bool, len(filters))
	for i := range filters {
		if err := filters[i].normalizeAndValidate(); err != nil {
			return err
		}
		if seen[filters[i].InternalName] {
			return errs.New(errs.ValidationError, fmt.Sprintf(
				"The internal_name %s is shared by at least two filters, provided for this %s, it must be unique.",
				filters[i].InternalName, ownerKind))
		}
		seen[filters[i].InternalName] = true
	}
	return nil
}
