package risk

import (
	"strings"

	"github.com/samber/lo"
)

// Assessment is the outcome of running the rule set over one Input.
type Assessment struct {
	Score   int
	Fired   []string
	Factors []string

	APIDetected bool
	ISPFlagged  bool
	IsVPN       bool
}

// Reason joins the labels of the rules that fired.
func (a Assessment) Reason() string {
	return strings.Join(a.Factors, ", ")
}

// Has reports whether the named rule fired.
func (a Assessment) Has(rule string) bool {
	return lo.Contains(a.Fired, rule)
}

type Scorer struct {
	rules     []Rule
	threshold int
}

func NewScorer(w Weights) *Scorer {
	return &Scorer{rules: Rules(w), threshold: w.VPNThreshold}
}

// Threshold returns the score at which a visitor is treated as a VPN user.
func (s *Scorer) Threshold() int {
	return s.threshold
}

// Score evaluates every rule. The score is exactly the sum of the weights of
// the rules that fired.
func (s *Scorer) Score(in Input) Assessment {
	fired := lo.Filter(s.rules, func(r Rule, _ int) bool {
		return r.Eval(in)
	})

	a := Assessment{
		Score: lo.Reduce(fired, func(sum int, r Rule, _ int) int {
			return sum + r.Weight
		}, 0),
		Fired:   lo.Map(fired, func(r Rule, _ int) string { return r.Name }),
		Factors: lo.Map(fired, func(r Rule, _ int) string { return r.Label }),
	}
	a.APIDetected = a.Has(RuleAPIDetectedVPN)
	a.ISPFlagged = a.Has(RuleSuspiciousISP)
	a.IsVPN = a.Score >= s.threshold || a.APIDetected || a.ISPFlagged
	return a
}
