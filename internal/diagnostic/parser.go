package diagnostic

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// MalformedResponseError indicates the completion service returned a payload
// that could not be parsed into a diagnostic result. It retains the raw text
// for diagnostics; end users see the same generic message as for gateway
// failures.
type MalformedResponseError struct {
	Raw string // fence-stripped text that failed to parse or validate
	Err error  // underlying cause, may be nil for validation failures
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed completion response: %v", e.Err)
	}
	return "malformed completion response"
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// stripFences removes leading and trailing code fence markers, with or
// without a language tag, that the model may wrap around the JSON payload
// despite being instructed not to.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
			trimmed = trimmed[idx+1:]
		} else {
			// A lone fence line, possibly with a language tag glued on.
			trimmed = strings.TrimPrefix(trimmed, "```json")
			trimmed = strings.TrimPrefix(trimmed, "```")
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	if strings.HasSuffix(trimmed, "```") {
		trimmed = trimmed[:len(trimmed)-3]
	}
	return strings.TrimSpace(trimmed)
}

// rawResult mirrors the wire JSON with pointer fields so that missing and
// wrong-typed required fields are both detectable.
type rawResult struct {
	ProfileType          *string   `json:"profileType"`
	ProfileSummary       *string   `json:"profileSummary"`
	CannabinoidName      *string   `json:"cannabinoidName"`
	CannabinoidReasoning *string   `json:"cannabinoidReasoning"`
	LifestyleRecs        *[]string `json:"lifestyleRecs"`
	PersonalNote         *string   `json:"personalNote"`
}

// ParseResult turns a completion envelope into a validated DiagnosticResult,
// or fails with MalformedResponseError. No partial results are ever returned.
func ParseResult(envelope models.CompletionEnvelope) (*models.DiagnosticResult, error) {
	raw := stripFences(envelope.JoinedText())
	if raw == "" {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("no text content")}
	}

	var parsed rawResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		slog.Error("diagnostic.ParseResult: invalid JSON", "error", err)
		return nil, &MalformedResponseError{Raw: raw, Err: err}
	}

	required := map[string]*string{
		"profileType":          parsed.ProfileType,
		"profileSummary":       parsed.ProfileSummary,
		"cannabinoidName":      parsed.CannabinoidName,
		"cannabinoidReasoning": parsed.CannabinoidReasoning,
		"personalNote":         parsed.PersonalNote,
	}
	for field, value := range required {
		if value == nil {
			slog.Error("diagnostic.ParseResult: missing required field", "field", field)
			return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("missing required field %q", field)}
		}
	}
	if parsed.LifestyleRecs == nil {
		slog.Error("diagnostic.ParseResult: missing required field", "field", "lifestyleRecs")
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("missing required field %q", "lifestyleRecs")}
	}

	result := &models.DiagnosticResult{
		ProfileType:              models.ProfileType(*parsed.ProfileType),
		ProfileSummary:           *parsed.ProfileSummary,
		CannabinoidName:          *parsed.CannabinoidName,
		CannabinoidReasoning:     *parsed.CannabinoidReasoning,
		LifestyleRecommendations: *parsed.LifestyleRecs,
		PersonalNote:             *parsed.PersonalNote,
	}

	// An unrecognized profile type is advisory metadata used for icon
	// selection downstream; accept it and surface the anomaly in logs.
	if !models.IsKnownProfileType(result.ProfileType) {
		slog.Warn("diagnostic.ParseResult: unrecognized profile type, accepting as-is", "profileType", result.ProfileType)
	}

	return result, nil
}
