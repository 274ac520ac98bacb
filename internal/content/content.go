// Package content holds the scripted content tables for the Apiverde demo:
// the product catalog, the per-concern quiz and conversation flows, and the
// sleep diagnostic scenarios. Tables are embedded as YAML and parsed once at
// startup into immutable mappings.
//
// Lookups of an unknown concern fail with models.ErrUnknownConcern. There is
// deliberately no fallback to another concern's tables: serving a different
// concern's copy would be a correctness hazard, not robustness.
package content

import (
	"fmt"

	"github.com/Apiverde/ApiverdeDemo/internal/models"
	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed catalog.yaml
var catalogYAML []byte

//go:embed quiz_flows.yaml
var quizFlowsYAML []byte

//go:embed conversation_flows.yaml
var conversationFlowsYAML []byte

//go:embed scenarios.yaml
var scenariosYAML []byte

// Product is one catalog entry for a concern.
type Product struct {
	ID     string   `yaml:"id" json:"id"`
	Name   string   `yaml:"name" json:"name"`
	Brand  string   `yaml:"brand" json:"brand"`
	Desc   string   `yaml:"desc" json:"desc"`
	Why    string   `yaml:"why" json:"why"`
	Retail float64  `yaml:"retail" json:"retail"`
	Member float64  `yaml:"member" json:"member"`
	Tags   []string `yaml:"tags" json:"tags"`
	Match  int      `yaml:"match" json:"match"`
}

// QuizQuestion is a single scripted quiz step with its ordered options.
type QuizQuestion struct {
	Question string   `yaml:"question" json:"question"`
	Sub      string   `yaml:"sub" json:"sub"`
	Options  []string `yaml:"options" json:"options"`
}

// QuizFlow is the scripted quiz for one concern: two follow-up questions and
// an acknowledgement line per answer to the final question.
type QuizFlow struct {
	Q2   QuizQuestion      `yaml:"q2" json:"q2"`
	Q3   QuizQuestion      `yaml:"q3" json:"q3"`
	Acks map[string]string `yaml:"acks" json:"acks"`
}

// ConversationStep is one step in a scripted concierge conversation. Steps
// with role "ai" carry text; steps with role "options" carry choices.
type ConversationStep struct {
	Role    string   `yaml:"role" json:"role"`
	Text    string   `yaml:"text,omitempty" json:"text,omitempty"`
	Choices []string `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// Conversation step roles.
const (
	StepRoleAI      = "ai"
	StepRoleOptions = "options"
)

// ScenarioOption is one selectable diagnostic answer.
type ScenarioOption struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Desc  string `yaml:"desc" json:"desc"`
}

// ScenarioQuestion is a diagnostic question with a flat option list.
type ScenarioQuestion struct {
	Prompt  string           `yaml:"prompt" json:"prompt"`
	Options []ScenarioOption `yaml:"options" json:"options"`
}

// KeyedScenarioQuestion is a diagnostic question whose available options are
// keyed by the answer to the preceding question.
type KeyedScenarioQuestion struct {
	Prompt  string                      `yaml:"prompt" json:"prompt"`
	Options map[string][]ScenarioOption `yaml:"options" json:"options"`
}

// ConstraintOption is one selectable avoidance constraint. The label, not the
// id, is what enters the assembled prompt as a hard constraint.
type ConstraintOption struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
	Desc  string `yaml:"desc" json:"desc"`
}

// ScenarioSet bundles the diagnostic questions and constraint options.
type ScenarioSet struct {
	Primary     ScenarioQuestion      `yaml:"primary" json:"primary"`
	Secondary   KeyedScenarioQuestion `yaml:"secondary" json:"secondary"`
	Constraints []ConstraintOption    `yaml:"constraints" json:"constraints"`
}

var (
	catalog           map[models.Concern][]Product
	quizFlows         map[models.Concern]QuizFlow
	conversationFlows map[models.Concern][]ConversationStep
	scenarios         ScenarioSet
)

func init() {
	if err := yaml.Unmarshal(catalogYAML, &catalog); err != nil {
		panic(fmt.Sprintf("content: failed to parse embedded catalog: %v", err))
	}
	if err := yaml.Unmarshal(quizFlowsYAML, &quizFlows); err != nil {
		panic(fmt.Sprintf("content: failed to parse embedded quiz flows: %v", err))
	}
	if err := yaml.Unmarshal(conversationFlowsYAML, &conversationFlows); err != nil {
		panic(fmt.Sprintf("content: failed to parse embedded conversation flows: %v", err))
	}
	if err := yaml.Unmarshal(scenariosYAML, &scenarios); err != nil {
		panic(fmt.Sprintf("content: failed to parse embedded scenarios: %v", err))
	}
	for _, c := range models.Concerns() {
		if _, ok := catalog[c]; !ok {
			panic(fmt.Sprintf("content: catalog missing concern %q", c))
		}
		if _, ok := quizFlows[c]; !ok {
			panic(fmt.Sprintf("content: quiz flows missing concern %q", c))
		}
		if _, ok := conversationFlows[c]; !ok {
			panic(fmt.Sprintf("content: conversation flows missing concern %q", c))
		}
	}
}

// Products returns the ordered product list for a concern.
func Products(c models.Concern) ([]Product, error) {
	products, ok := catalog[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownConcern, c)
	}
	out := make([]Product, len(products))
	copy(out, products)
	return out, nil
}

// Quiz returns the scripted quiz flow for a concern.
func Quiz(c models.Concern) (QuizFlow, error) {
	flow, ok := quizFlows[c]
	if !ok {
		return QuizFlow{}, fmt.Errorf("%w: %q", models.ErrUnknownConcern, c)
	}
	return flow, nil
}

// Conversation returns the scripted conversation steps for a concern.
func Conversation(c models.Concern) ([]ConversationStep, error) {
	steps, ok := conversationFlows[c]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownConcern, c)
	}
	out := make([]ConversationStep, len(steps))
	copy(out, steps)
	return out, nil
}

// Scenarios returns the diagnostic question set and constraint options.
func Scenarios() ScenarioSet {
	return scenarios
}

// PrimaryOption looks up a primary scenario option by identifier.
func PrimaryOption(id string) (ScenarioOption, bool) {
	for _, opt := range scenarios.Primary.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ScenarioOption{}, false
}

// SecondaryOptions returns the secondary option set determined by the given
// primary choice. The second question's choices only exist relative to a
// primary answer.
func SecondaryOptions(primaryID string) ([]ScenarioOption, bool) {
	opts, ok := scenarios.Secondary.Options[primaryID]
	if !ok {
		return nil, false
	}
	out := make([]ScenarioOption, len(opts))
	copy(out, opts)
	return out, true
}

// SecondaryOption looks up a secondary scenario option within the option set
// determined by the primary choice.
func SecondaryOption(primaryID, id string) (ScenarioOption, bool) {
	for _, opt := range scenarios.Secondary.Options[primaryID] {
		if opt.ID == id {
			return opt, true
		}
	}
	return ScenarioOption{}, false
}

// OptionText renders a scenario option the way it enters the assembled
// prompt: title and description joined by a colon.
func OptionText(opt ScenarioOption) string {
	return fmt.Sprintf("%s: %s", opt.Title, opt.Desc)
}

// ConstraintOptions returns the selectable avoidance constraints.
func ConstraintOptions() []ConstraintOption {
	out := make([]ConstraintOption, len(scenarios.Constraints))
	copy(out, scenarios.Constraints)
	return out
}
