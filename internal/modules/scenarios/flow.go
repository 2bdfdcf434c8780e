// Package scenarios turns a product's terms and trigger state into "what happens if"
// decision flows. Worked examples are always produced by the payout calculator from
// labelled sample inputs; live state only appears in meta chips.
package scenarios

import (
	"github.com/aristath/noteengine/internal/domain"
)

// Tone hints how a meta chip should be presented.
type Tone string

const (
	ToneNeutral  Tone = "neutral"
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

// MetaChip is a short label/value pair attached to a decision node.
type MetaChip struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Tone  Tone   `json:"tone"`
}

// Outcome describes one branch of a decision node.
type Outcome struct {
	Title   string   `json:"title"`
	Bullets []string `json:"bullets"`
	Example string   `json:"example"`
}

// DecisionNode is a yes/no question with an outcome per answer.
type DecisionNode struct {
	ID       string     `json:"id"`
	Question string     `json:"question"`
	Yes      Outcome    `json:"yes"`
	No       Outcome    `json:"no"`
	Meta     []MetaChip `json:"meta,omitempty"`
}

// ScenarioFlow is the ordered set of decision nodes for one product.
type ScenarioFlow struct {
	Bucket domain.Bucket  `json:"bucket"`
	Title  string         `json:"title"`
	Nodes  []DecisionNode `json:"nodes"`
}

// Node returns the decision node with the given id.
func (f *ScenarioFlow) Node(id string) (DecisionNode, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return DecisionNode{}, false
}

// Node identifiers.
const (
	NodeAutocall      = "autocall"
	NodeProtection    = "protection"
	NodeIssuerCall    = "issuer_call"
	NodeParticipation = "participation"
	NodeKnockIn       = "knock_in"
	NodeBarrier       = "barrier"
	NodeUpside        = "upside"
)
