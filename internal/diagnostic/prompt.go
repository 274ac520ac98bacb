// Package diagnostic implements the sleep diagnostic flow: the session
// state machine, prompt assembly, and parsing of the completion service's
// structured reply.
package diagnostic

import (
	"fmt"
	"strings"

	"github.com/Apiverde/ApiverdeDemo/internal/content"
	"github.com/Apiverde/ApiverdeDemo/internal/models"
)

// NoContextPlaceholder replaces empty or whitespace-only freeform context in
// the stored session and the assembled prompt.
const NoContextPlaceholder = "No additional context provided."

// noAvoidancesPlaceholder enters the prompt when no constraints were selected.
const noAvoidancesPlaceholder = "No specific avoidances noted."

// systemInstruction is the fixed instruction template sent with every
// diagnostic submission. It pins the driver-type taxonomy and the exact JSON
// output contract the parser expects.
const systemInstruction = `You are the diagnostic intelligence behind Apiverde Health, a science-backed cannabinoid wellness platform. You specialize in sleep system analysis.

There are 4 primary sleep driver types:
1. Stress-Dominant: cortisol-driven, racing mind, nervous system won't stand down
2. Circadian-Misaligned: internal clock out of sync with life schedule
3. Metabolic-Disrupted: blood sugar, late eating, stimulants affecting sleep architecture
4. Cognitive-Hypervigilant: light sleeper, hyperarousal, brain treats sleep as vulnerability

Based on the user's responses, determine their most likely sleep driver type and provide personalized guidance.

IMPORTANT: This is an abbreviated public demo. The full diagnostic considers 12+ variables. You are working with limited data, so be confident in your assessment but acknowledge that the full version would be more precise.

IMPORTANT: Reference their specific answers and free-text context directly. Do not give generic advice. Make the person feel like you actually listened.

IMPORTANT: The user has specified things they want to avoid. These are hard constraints. Your cannabinoid recommendation and lifestyle recommendations MUST respect these constraints. If they want to avoid morning grogginess, don't recommend something that causes it. If they want to avoid feeling altered, don't recommend THC. Explicitly acknowledge their constraints in your reasoning.

Respond ONLY in this exact JSON format with no preamble, no markdown backticks, and no other text:
{
  "profileType": "Stress-Dominant" or "Circadian-Misaligned" or "Metabolic-Disrupted" or "Cognitive-Hypervigilant",
  "profileSummary": "2-3 sentences explaining their specific situation and why it maps to this driver type. Reference their actual answers.",
  "cannabinoidName": "The recommended cannabinoid or combination",
  "cannabinoidReasoning": "2-3 sentences explaining why this cannabinoid targets their specific driver type. Be mechanistic, not marketing.",
  "lifestyleRecs": ["3 specific lifestyle recommendations tailored to their situation. Reference their context where possible. Each should be 1-2 sentences with the reasoning built in."],
  "personalNote": "1 sentence that references something specific from their free-text input, connecting it to the assessment. If no additional context was provided, make a brief observation about their scenario selections instead."
}`

// userMessageTemplate interpolates the session answers into the single user
// message of the completion request.
const userMessageTemplate = `Here are my sleep assessment responses:

SCENARIO 1: %q
Selected: %s

SCENARIO 2: %q
Selected: %s

ADDITIONAL CONTEXT:
%s

THINGS TO AVOID (hard constraints, recommendations must respect these):
%s`

// NormalizeContext trims freeform context and substitutes the placeholder
// for empty input.
func NormalizeContext(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return NoContextPlaceholder
	}
	return trimmed
}

// BuildPayload assembles the ephemeral prompt payload from the accumulated
// session answers. The choices must already be validated; an identifier that
// no longer resolves against the content tables is an input error.
func BuildPayload(primaryID, secondaryID, freeformContext string, constraints []string) (models.PromptPayload, error) {
	primary, ok := content.PrimaryOption(primaryID)
	if !ok {
		return models.PromptPayload{}, fmt.Errorf("%w: unknown primary choice %q", models.ErrInvalidInput, primaryID)
	}
	secondary, ok := content.SecondaryOption(primaryID, secondaryID)
	if !ok {
		return models.PromptPayload{}, fmt.Errorf("%w: unknown secondary choice %q for primary %q", models.ErrInvalidInput, secondaryID, primaryID)
	}

	avoidances := noAvoidancesPlaceholder
	if len(constraints) > 0 {
		avoidances = strings.Join(constraints, ", ")
	}

	scenarioSet := content.Scenarios()
	userMessage := fmt.Sprintf(userMessageTemplate,
		scenarioSet.Primary.Prompt, content.OptionText(primary),
		scenarioSet.Secondary.Prompt, content.OptionText(secondary),
		NormalizeContext(freeformContext),
		avoidances,
	)

	payload := models.PromptPayload{System: systemInstruction, UserMessage: userMessage}
	if err := payload.Validate(); err != nil {
		return models.PromptPayload{}, err
	}
	return payload, nil
}
