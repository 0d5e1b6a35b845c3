package model

import "regexp"

// ExternalType is the closed (with one parametric family) enum of wire
// formats a Source/Sink may carry.
type ExternalType string

const (
	ExternalTypeTimeseriesFloat   ExternalType = "timeseries(float)"
	ExternalTypeTimeseriesInt     ExternalType = "timeseries(int)"
	ExternalTypeTimeseriesString  ExternalType = "timeseries(string)"
	ExternalTypeTimeseriesBool    ExternalType = "timeseries(bool)"
	ExternalTypeTimeseriesNumeric ExternalType = "timeseries(numeric)"
	ExternalTypeTimeseriesAny     ExternalType = "timeseries(any)"
	ExternalTypeMultiTSFrame      ExternalType = "multitsframe"
	ExternalTypeDataframe         ExternalType = "dataframe"
	ExternalTypeMetadataAny       ExternalType = "metadata(any)"
)

var fixedExternalTypes = map[ExternalType]bool{
	ExternalTypeTimeseriesFloat:   true,
	ExternalTypeTimeseriesInt:     true,
	ExternalTypeTimeseriesString:  true,
	ExternalTypeTimeseriesBool:    true,
	ExternalTypeTimeseriesNumeric: true,
	ExternalTypeTimeseriesAny:     true,
	ExternalTypeMultiTSFrame:      true,
	ExternalTypeDataframe:         true,
}

// metadata(*) is a parametric family (metadata(any), metadata(int), ...);
// metadata(any) is the only member with resolver-visible behavior.
var metadataTypePattern = regexp.MustCompile(`^metadata\([A-Za-z0-9_]+\)$`)

// Valid reports whether t is one of the fixed wire-format kinds or a
// well-formed metadata(*) member.
func (t ExternalType) Valid() bool {
	if fixedExternalTypes[t] {
		return true
	}
	return metadataTypePattern.MatchString(string(t))
}

// IsMetadataAny reports whether t is exactly metadata(any), the member the
// wiring resolver treats specially when rewriting wirings.
func (t ExternalType) IsMetadataAny() bool {
	return t == ExternalTypeMetadataAny
}
