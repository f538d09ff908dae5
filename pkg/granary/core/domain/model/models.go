// Package model defines the domain records Granary coordinates across its
// stores: granules (with file sub-records), executions, and PDRs, plus the
// shared status vocabulary and the structured error attached to failed
// records.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a granule, execution, or PDR.
type Status string

const (
	StatusRunning   Status = "running"
	StatusQueued    Status = "queued"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal checks whether the status is terminal. File sub-records are
// only persisted once the owning granule reaches a terminal status, and a
// terminal record cannot regress to running without a new execution
// reference.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsValid checks whether the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusRunning, StatusQueued, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// CollectionKey is the natural key of a collection.
type CollectionKey struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// String renders the key in the canonical "name___version" form used by the
// document store and the search index.
func (k CollectionKey) String() string {
	return k.Name + "___" + k.Version
}

// IsZero reports whether the key is unset.
func (k CollectionKey) IsZero() bool {
	return k.Name == "" && k.Version == ""
}

// GranuleKey is the natural key of a granule: the granule id is unique
// only within its collection.
type GranuleKey struct {
	GranuleID  string
	Collection CollectionKey
}

// String renders a stable identifier for logging and document-store addressing.
func (k GranuleKey) String() string {
	return k.GranuleID + "|" + k.Collection.String()
}

// RecordError is the structured cause attached to a failed record.
// It is persisted as a JSON column in the relational store and carried
// verbatim into the mirror and the index.
type RecordError struct {
	Error string `json:"Error"`
	Cause string `json:"Cause"`
}

// Value implements driver.Valuer, serializing the error to JSON.
func (e *RecordError) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, deserializing the error from JSON.
func (e *RecordError) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type for RecordError: %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, e)
}

// QueryFields is the opaque temporal/query metadata passed through with a
// granule. Granary never interprets it; it is stored as a JSON column.
type QueryFields map[string]interface{}

// Value implements driver.Valuer, converting the fields to a JSON string.
func (q QueryFields) Value() (driver.Value, error) {
	if q == nil {
		return "{}", nil
	}
	data, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, converting a JSON string to QueryFields.
func (q *QueryFields) Scan(value interface{}) error {
	if value == nil {
		*q = make(QueryFields)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type for QueryFields: %T", value)
	}
	if len(b) == 0 {
		*q = make(QueryFields)
		return nil
	}
	return json.Unmarshal(b, q)
}

// File is a sub-record of exactly one granule; it is owned, not
// independently addressable. Files are created or updated only when the
// owning granule's write reaches a terminal status, and are pruned when
// superseded by a reconciliation pass or when the granule is deleted.
type File struct {
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
	FileName     string `json:"fileName"`
	Size         int64  `json:"size"`
	Checksum     string `json:"checksum,omitempty"`
	ChecksumType string `json:"checksumType,omitempty"`
}

// Granule is one physical data unit tracked through one workflow run.
//
// CreatedAt carries the workflow start time of the run that created (or
// last reset) this record, not the row insertion time; it is the ordering
// pivot of the merge policy and is monotonically non-decreasing across
// accepted writes for the same natural key.
type Granule struct {
	GranuleID  string
	Collection CollectionKey
	Status     Status
	// ExecutionARN identifies the run that last touched this granule.
	// Optional: queued granules have no execution yet.
	ExecutionARN string
	ProviderName string
	PdrName      string
	Published    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// Timestamp is the last-touched time reported by the pipeline,
	// distinct from UpdatedAt for audit.
	Timestamp time.Time
	Error     *RecordError
	Files     []File

	// Derived metrics.
	Duration      float64
	ProductVolume int64
	TimeToArchive float64
	TimeToProcess float64

	QueryFields QueryFields
}

// Key returns the granule's natural key.
func (g *Granule) Key() GranuleKey {
	return GranuleKey{GranuleID: g.GranuleID, Collection: g.Collection}
}

// Validate checks the fields required before any store is touched.
func (g *Granule) Validate() error {
	if g.GranuleID == "" {
		return errMissing("granuleId")
	}
	if g.Collection.IsZero() {
		return errMissing("collection")
	}
	if !g.Status.IsValid() {
		return fmt.Errorf("granule '%s': unknown status '%s'", g.GranuleID, g.Status)
	}
	return nil
}

// Payload is the large, independently purgeable input or output document
// of an execution.
type Payload map[string]interface{}

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Payload: %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, p)
}

// Execution is one workflow run, identified by its ARN.
type Execution struct {
	ARN    string
	Status Status
	// ParentARN is the ARN of the execution that spawned this one, if any.
	ParentARN        string
	Collection       CollectionKey
	AsyncOperationID string
	OriginalPayload  Payload
	FinalPayload     Payload
	Duration         float64
	Error            *RecordError
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Timestamp        time.Time
}

// Validate checks the fields required before any store is touched.
func (e *Execution) Validate() error {
	if e.ARN == "" {
		return errMissing("arn")
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("execution '%s': unknown status '%s'", e.ARN, e.Status)
	}
	return nil
}

// PdrStats holds the progress counters of a PDR.
type PdrStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Processing int `json:"processing"`
}

// Value implements driver.Valuer.
func (s PdrStats) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (s *PdrStats) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type for PdrStats: %T", value)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, s)
}

// Progress returns the fraction of the PDR's granules in a terminal state,
// in percent.
func (s PdrStats) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed+s.Failed) / float64(s.Total) * 100
}

// Pdr is a product delivery record, structurally analogous to an
// execution: name as natural id, status, progress stats.
type Pdr struct {
	Name         string
	Status       Status
	Collection   CollectionKey
	ProviderName string
	ExecutionARN string
	Stats        PdrStats
	PanSent      bool
	PanMessage   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Timestamp    time.Time
}

// Validate checks the fields required before any store is touched.
func (p *Pdr) Validate() error {
	if p.Name == "" {
		return errMissing("pdrName")
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("pdr '%s': unknown status '%s'", p.Name, p.Status)
	}
	return nil
}

func errMissing(field string) error {
	return fmt.Errorf("required field '%s' is missing", field)
}

// EpochMillis converts an epoch-millisecond timestamp from an inbound
// event into a time.Time. Zero input yields the zero time.
func EpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
