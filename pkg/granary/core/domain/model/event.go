package model

import (
	"github.com/mitchellh/mapstructure"

	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

// GranuleEvent is the inbound per-granule status event emitted by the
// workflow pipeline. Timestamps arrive as epoch milliseconds; absent
// optional fields stay zero.
type GranuleEvent struct {
	GranuleID         string        `json:"granuleId" mapstructure:"granuleId"`
	Collection        CollectionKey `json:"collection" mapstructure:"collection"`
	Status            Status        `json:"status" mapstructure:"status"`
	ExecutionARN      string        `json:"execution,omitempty" mapstructure:"execution"`
	Provider          string        `json:"provider,omitempty" mapstructure:"provider"`
	PdrName           string        `json:"pdrName,omitempty" mapstructure:"pdrName"`
	Published         bool          `json:"published,omitempty" mapstructure:"published"`
	WorkflowStartTime int64         `json:"workflowStartTime" mapstructure:"workflowStartTime"`
	Timestamp         int64         `json:"timestamp,omitempty" mapstructure:"timestamp"`
	Files             []File        `json:"files,omitempty" mapstructure:"files"`
	Error             *RecordError  `json:"error,omitempty" mapstructure:"error"`
	Duration          float64       `json:"duration,omitempty" mapstructure:"duration"`
	ProductVolume     int64         `json:"productVolume,omitempty" mapstructure:"productVolume"`
	TimeToArchive     float64       `json:"timeToArchive,omitempty" mapstructure:"timeToArchive"`
	TimeToProcess     float64       `json:"timeToProcess,omitempty" mapstructure:"timeToProcess"`
	QueryFields       QueryFields   `json:"queryFields,omitempty" mapstructure:"queryFields"`
}

// ToGranule translates the event into a domain granule record.
// An absent event timestamp falls back to the workflow start time, so the
// record always carries a last-touched time.
func (e *GranuleEvent) ToGranule() *Granule {
	ts := e.Timestamp
	if ts == 0 {
		ts = e.WorkflowStartTime
	}
	return &Granule{
		GranuleID:     e.GranuleID,
		Collection:    e.Collection,
		Status:        e.Status,
		ExecutionARN:  e.ExecutionARN,
		ProviderName:  e.Provider,
		PdrName:       e.PdrName,
		Published:     e.Published,
		CreatedAt:     EpochMillis(e.WorkflowStartTime),
		UpdatedAt:     EpochMillis(ts),
		Timestamp:     EpochMillis(ts),
		Error:         e.Error,
		Files:         e.Files,
		Duration:      e.Duration,
		ProductVolume: e.ProductVolume,
		TimeToArchive: e.TimeToArchive,
		TimeToProcess: e.TimeToProcess,
		QueryFields:   e.QueryFields,
	}
}

// ExecutionEvent is the inbound status event for one workflow run.
type ExecutionEvent struct {
	ARN               string        `json:"arn" mapstructure:"arn"`
	Status            Status        `json:"status" mapstructure:"status"`
	ParentARN         string        `json:"parentArn,omitempty" mapstructure:"parentArn"`
	Collection        CollectionKey `json:"collection" mapstructure:"collection"`
	AsyncOperationID  string        `json:"asyncOperationId,omitempty" mapstructure:"asyncOperationId"`
	OriginalPayload   Payload       `json:"originalPayload,omitempty" mapstructure:"originalPayload"`
	FinalPayload      Payload       `json:"finalPayload,omitempty" mapstructure:"finalPayload"`
	Error             *RecordError  `json:"error,omitempty" mapstructure:"error"`
	WorkflowStartTime int64         `json:"workflowStartTime" mapstructure:"workflowStartTime"`
	Timestamp         int64         `json:"timestamp,omitempty" mapstructure:"timestamp"`
}

// ToExecution translates the event into a domain execution record.
// Duration is derived from the workflow start time and the event
// timestamp once the run has reached a terminal status.
func (e *ExecutionEvent) ToExecution() *Execution {
	ts := e.Timestamp
	if ts == 0 {
		ts = e.WorkflowStartTime
	}
	var duration float64
	if e.Status.IsTerminal() && ts > e.WorkflowStartTime {
		duration = float64(ts-e.WorkflowStartTime) / 1000.0
	}
	return &Execution{
		ARN:              e.ARN,
		Status:           e.Status,
		ParentARN:        e.ParentARN,
		Collection:       e.Collection,
		AsyncOperationID: e.AsyncOperationID,
		OriginalPayload:  e.OriginalPayload,
		FinalPayload:     e.FinalPayload,
		Duration:         duration,
		Error:            e.Error,
		CreatedAt:        EpochMillis(e.WorkflowStartTime),
		UpdatedAt:        EpochMillis(ts),
		Timestamp:        EpochMillis(ts),
	}
}

// PdrEvent is the inbound status event for one product delivery record.
type PdrEvent struct {
	Name              string        `json:"pdrName" mapstructure:"pdrName"`
	Status            Status        `json:"status" mapstructure:"status"`
	Collection        CollectionKey `json:"collection" mapstructure:"collection"`
	Provider          string        `json:"provider,omitempty" mapstructure:"provider"`
	ExecutionARN      string        `json:"execution,omitempty" mapstructure:"execution"`
	Stats             PdrStats      `json:"stats,omitempty" mapstructure:"stats"`
	PanSent           bool          `json:"panSent,omitempty" mapstructure:"panSent"`
	PanMessage        string        `json:"panMessage,omitempty" mapstructure:"panMessage"`
	WorkflowStartTime int64         `json:"workflowStartTime" mapstructure:"workflowStartTime"`
	Timestamp         int64         `json:"timestamp,omitempty" mapstructure:"timestamp"`
}

// ToPdr translates the event into a domain PDR record.
func (e *PdrEvent) ToPdr() *Pdr {
	ts := e.Timestamp
	if ts == 0 {
		ts = e.WorkflowStartTime
	}
	return &Pdr{
		Name:         e.Name,
		Status:       e.Status,
		Collection:   e.Collection,
		ProviderName: e.Provider,
		ExecutionARN: e.ExecutionARN,
		Stats:        e.Stats,
		PanSent:      e.PanSent,
		PanMessage:   e.PanMessage,
		CreatedAt:    EpochMillis(e.WorkflowStartTime),
		UpdatedAt:    EpochMillis(ts),
		Timestamp:    EpochMillis(ts),
	}
}

// WorkflowMessage is one inbound pipeline event: the execution that ran,
// the granules it touched, and optionally the PDR the granules belong to.
// The batch dispatcher fans the granule list out to independent
// coordinator invocations.
type WorkflowMessage struct {
	Execution *ExecutionEvent `json:"execution,omitempty" mapstructure:"execution"`
	Granules  []GranuleEvent  `json:"granules,omitempty" mapstructure:"granules"`
	Pdr       *PdrEvent       `json:"pdr,omitempty" mapstructure:"pdr"`
}

// DecodeWorkflowMessage decodes a raw message body (as delivered by the
// queue consumer) into a WorkflowMessage and propagates message-level
// fields to granules that did not set their own.
func DecodeWorkflowMessage(raw map[string]interface{}) (*WorkflowMessage, error) {
	var msg WorkflowMessage
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &msg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, exception.NewWriteError("model", "failed to build message decoder", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, exception.NewWriteError("model", "failed to decode workflow message", err)
	}
	msg.propagateDefaults()
	return &msg, nil
}

// propagateDefaults copies the execution identity and workflow start time
// onto granules that arrived without their own.
func (m *WorkflowMessage) propagateDefaults() {
	if m.Execution == nil {
		return
	}
	for i := range m.Granules {
		g := &m.Granules[i]
		if g.ExecutionARN == "" && g.Status != StatusQueued {
			g.ExecutionARN = m.Execution.ARN
		}
		if g.WorkflowStartTime == 0 {
			g.WorkflowStartTime = m.Execution.WorkflowStartTime
		}
		if g.Collection.IsZero() {
			g.Collection = m.Execution.Collection
		}
	}
	if m.Pdr != nil {
		if m.Pdr.ExecutionARN == "" {
			m.Pdr.ExecutionARN = m.Execution.ARN
		}
		if m.Pdr.WorkflowStartTime == 0 {
			m.Pdr.WorkflowStartTime = m.Execution.WorkflowStartTime
		}
	}
}
