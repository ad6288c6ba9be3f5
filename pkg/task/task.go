// Package task defines the unit of work flowing through the routing engine.
package task

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies a category of work.
type Type string

// Known task types. Callers may submit other values; the router treats
// unknown types as general-purpose work.
const (
	TypeAnalyze        Type = "analyze"
	TypeClassify       Type = "classify"
	TypeDraftReply     Type = "draft_reply"
	TypeSummarize      Type = "summarize"
	TypePatternExtract Type = "pattern_extract"
)

// ErrInvalid marks a malformed request rejected before any work begins.
var ErrInvalid = errors.New("invalid task request")

// Flags carry situational hints supplied by the caller alongside the text.
type Flags struct {
	// ExternalSystem indicates the task depends on an external system of record.
	ExternalSystem bool
	// CrossEntity indicates the task requires a cross-entity lookup.
	CrossEntity bool
	// HasEntityData indicates related CRM entity data accompanies the task.
	HasEntityData bool
	// HasHistory indicates prior conversation context exists for the task.
	HasHistory bool
}

// Request is one unit of work submitted for processing. Immutable once created.
type Request struct {
	ID            string
	TenantID      string
	CallerID      string
	Type          Type
	Text          string
	Subject       string
	Sender        string
	ModelOverride string
	Flags         Flags
}

// SenderDomain returns the domain portion of the sender address, or "" if
// the sender has no domain.
func (r *Request) SenderDomain() string {
	at := strings.LastIndex(r.Sender, "@")
	if at < 0 || at == len(r.Sender)-1 {
		return ""
	}
	return strings.ToLower(r.Sender[at+1:])
}

// Validate rejects malformed requests. Empty text is allowed (it scores as
// trivially simple); missing identity fields are not.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalid)
	}
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("%w: missing task id", ErrInvalid)
	}
	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("%w: missing tenant id", ErrInvalid)
	}
	if r.Type == "" {
		return fmt.Errorf("%w: missing task type", ErrInvalid)
	}
	return nil
}
