// Package models defines the core data structures for the Apiverde diagnostic service.
//
// It includes the wire contract shared between the completion gateway and the
// diagnostic endpoint, the validated diagnostic result record, and the API
// response envelope shared across modules.
package models

import (
	"errors"
	"strings"
)

// Concern identifies a top-level wellness category. Each concern selects which
// scripted content tables and product set apply.
type Concern string

const (
	ConcernSleep  Concern = "sleep"
	ConcernPain   Concern = "pain"
	ConcernStress Concern = "stress"
	ConcernEnergy Concern = "energy"
	ConcernVibes  Concern = "vibes"
)

// Concerns lists all supported concerns in display order.
func Concerns() []Concern {
	return []Concern{ConcernSleep, ConcernPain, ConcernStress, ConcernEnergy, ConcernVibes}
}

// IsValidConcern checks if the given concern is supported.
func IsValidConcern(c Concern) bool {
	switch c {
	case ConcernSleep, ConcernPain, ConcernStress, ConcernEnergy, ConcernVibes:
		return true
	default:
		return false
	}
}

// Error variables shared across modules for error handling and testability.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownConcern  = errors.New("unknown concern")

	ErrEmptySystemInstruction = errors.New("system instruction cannot be empty")
	ErrEmptyUserMessage       = errors.New("user message cannot be empty")
)

// ProfileType is one of the sleep driver type tags the completion service is
// instructed to choose among when classifying a user's diagnostic answers.
type ProfileType string

const (
	ProfileStressDominant         ProfileType = "Stress-Dominant"
	ProfileCircadianMisaligned    ProfileType = "Circadian-Misaligned"
	ProfileMetabolicDisrupted     ProfileType = "Metabolic-Disrupted"
	ProfileCognitiveHypervigilant ProfileType = "Cognitive-Hypervigilant"
)

// IsKnownProfileType reports whether pt matches one of the enumerated driver
// types. Unknown values are advisory metadata downstream, not hard failures.
func IsKnownProfileType(pt ProfileType) bool {
	switch pt {
	case ProfileStressDominant, ProfileCircadianMisaligned, ProfileMetabolicDisrupted, ProfileCognitiveHypervigilant:
		return true
	default:
		return false
	}
}

// DiagnosticResult is the validated record parsed from the completion
// service's reply. It is constructed only by the response parser and is
// immutable once constructed.
type DiagnosticResult struct {
	ProfileType              ProfileType `json:"profileType"`
	ProfileSummary           string      `json:"profileSummary"`
	CannabinoidName          string      `json:"cannabinoidName"`
	CannabinoidReasoning     string      `json:"cannabinoidReasoning"`
	LifestyleRecommendations []string    `json:"lifestyleRecs"`
	PersonalNote             string      `json:"personalNote"`
}

// PromptPayload is an ephemeral, request-scoped value: the fixed system
// instruction plus the interpolated session answers. It is never persisted
// and is discarded after the completion request finishes.
type PromptPayload struct {
	System      string
	UserMessage string
}

// Validate checks the payload invariants before dispatch.
func (p PromptPayload) Validate() error {
	if strings.TrimSpace(p.System) == "" {
		return ErrEmptySystemInstruction
	}
	if strings.TrimSpace(p.UserMessage) == "" {
		return ErrEmptyUserMessage
	}
	return nil
}
