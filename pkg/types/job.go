// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"strings"
)

// JobState is a step in the per-job state machine:
// received -> detected -> extracted -> rendered -> done, or failed.
type JobState string

const (
	JobReceived  JobState = "received"
	JobDetected  JobState = "detected"
	JobExtracted JobState = "extracted"
	JobRendered  JobState = "rendered"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// Artifact is a named document buffer.
type Artifact struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
	Data []byte `json:"-" yaml:"-"`
}

// ContentType returns the MIME type for the artifact.
func (a Artifact) ContentType() string {
	if strings.EqualFold(filepath.Ext(a.Name), ".zip") {
		return "application/zip"
	}
	return a.Kind.ContentType()
}

// ConversionJob carries one input through the pipeline.
type ConversionJob struct {
	// ID uniquely identifies the job within the process.
	ID string `json:"id" yaml:"id"`

	// Input is the uploaded artifact with its declared kind.
	Input Artifact `json:"input" yaml:"input"`

	// Output is set only when State is JobDone.
	Output Artifact `json:"output" yaml:"output"`

	// State is the current step. History records every step taken.
	State   JobState   `json:"state" yaml:"state"`
	History []JobState `json:"history" yaml:"history"`

	// Err is set only when State is JobFailed. Reason and Message are
	// its serializable form.
	Err     error  `json:"-" yaml:"-"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Empty is set when extraction produced no content. The output is
	// still a valid, contentless document.
	Empty bool `json:"empty" yaml:"empty"`

	// Pages is the number of pages in the output or input page document.
	Pages int `json:"pages" yaml:"pages"`
}

// NewJob creates a job in the received state.
func NewJob(id, name string, kind Kind, data []byte) *ConversionJob {
	return &ConversionJob{
		ID:      id,
		Input:   Artifact{Name: name, Kind: kind, Data: data},
		State:   JobReceived,
		History: []JobState{JobReceived},
	}
}

// Advance moves the job to s. Transitions out of a terminal state are ignored.
func (j *ConversionJob) Advance(s JobState) {
	if j.State.Terminal() {
		return
	}
	j.State = s
	j.History = append(j.History, s)
}

// Fail moves the job to JobFailed and discards any partial output.
func (j *ConversionJob) Fail(err error) {
	if j.State.Terminal() {
		return
	}
	j.Err = err
	j.Reason = Reason(err)
	if err != nil {
		j.Message = err.Error()
	}
	j.Output = Artifact{}
	j.Advance(JobFailed)
}

// Succeeded reports whether the job finished with a non-empty artifact.
func (j *ConversionJob) Succeeded() bool {
	return j.State == JobDone && len(j.Output.Data) > 0
}

// OutputName swaps the extension of name for the target kind's extension.
// "report.docx" becomes "report.pdf".
func OutputName(name string, target Kind) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = "document"
	}
	return base + target.Extension()
}
