package assessment

import (
	"strings"
)

// Fixed disclaimers. Whatever the model returns in a disclaimer field is
// replaced by these.
const (
	CompatibilityDisclaimer = "This app is not a substitute for medical advice. Always consult with a qualified healthcare professional before making any decisions about your health, medication, or diet."
	AdviceDisclaimer        = "This is NOT medical advice. If you have taken something you are concerned about, contact your doctor, pharmacist, or local emergency services immediately."
	TipsDisclaimer          = "These are general tips and not medical advice. Always consult with a qualified healthcare professional for personalized guidance regarding your health and wellness."
)

const (
	MaxSuggestions  = 5
	MaxAlternatives = 3
	MaxTips         = 5
)

// ValidationResult says whether a candidate profile entry is a real term
type ValidationResult struct {
	IsValid bool `json:"isValid"`
}

// SuggestionsResult holds autocomplete candidates
type SuggestionsResult struct {
	Suggestions []string `json:"suggestions"`
}

// Normalize trims entries, drops blanks and case-insensitive repeats, and
// caps the list.
func (r *SuggestionsResult) Normalize() {
	seen := make(map[string]struct{}, len(r.Suggestions))
	out := make([]string, 0, MaxSuggestions)
	for _, s := range r.Suggestions {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) == MaxSuggestions {
			break
		}
	}
	r.Suggestions = out
}

// CompatibilityResult is the outcome of a compatibility check
type CompatibilityResult struct {
	IsValidItem bool      `json:"isValidItem"`
	RiskLevel   RiskLevel `json:"riskLevel,omitempty"`
	Analysis    string    `json:"analysis,omitempty"`
	Disclaimer  string    `json:"disclaimer"`
}

// Finalize enforces the result shape: an invalid item carries neither risk
// level nor analysis, a valid one carries exactly one known level and a
// non-empty analysis. The fixed disclaimer is always applied.
func (r *CompatibilityResult) Finalize() error {
	r.Disclaimer = CompatibilityDisclaimer
	if !r.IsValidItem {
		r.RiskLevel = ""
		r.Analysis = ""
		return nil
	}

	if r.RiskLevel == "" {
		return ErrMissingRiskLevel
	}
	level, err := ParseRiskLevel(string(r.RiskLevel))
	if err != nil {
		return err
	}
	r.RiskLevel = level

	r.Analysis = strings.TrimSpace(r.Analysis)
	if r.Analysis == "" {
		return ErrMissingAnalysis
	}
	return nil
}

// OffersFollowUp reports whether alternatives and advice apply
func (r CompatibilityResult) OffersFollowUp() bool {
	return r.IsValidItem && r.RiskLevel.WarrantsFollowUp()
}

// Alternative is a safer option with a profile-specific reason
type Alternative struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// AlternativesResult lists safer alternatives
type AlternativesResult struct {
	Alternatives []Alternative `json:"alternatives"`
}

// Finalize requires at least one complete alternative and caps the list
func (r *AlternativesResult) Finalize() error {
	if len(r.Alternatives) == 0 {
		return ErrNoAlternatives
	}
	for i := range r.Alternatives {
		a := &r.Alternatives[i]
		a.Name = strings.TrimSpace(a.Name)
		a.Reason = strings.TrimSpace(a.Reason)
		if a.Name == "" || a.Reason == "" {
			return ErrIncompleteAlternative
		}
	}
	if len(r.Alternatives) > MaxAlternatives {
		r.Alternatives = r.Alternatives[:MaxAlternatives]
	}
	return nil
}

// AdviceResult is post-ingestion safety information
type AdviceResult struct {
	Advice     string `json:"advice"`
	Disclaimer string `json:"disclaimer"`
}

// Finalize requires advice text and applies the fixed disclaimer
func (r *AdviceResult) Finalize() error {
	r.Disclaimer = AdviceDisclaimer
	r.Advice = strings.TrimSpace(r.Advice)
	if r.Advice == "" {
		return ErrMissingAdvice
	}
	return nil
}

// LifestyleTip is one categorised tip
type LifestyleTip struct {
	Category string `json:"category"`
	Tip      string `json:"tip"`
}

// LifestyleTipsResult lists general wellness tips
type LifestyleTipsResult struct {
	Tips       []LifestyleTip `json:"tips"`
	Disclaimer string         `json:"disclaimer"`
}

// Finalize requires at least one complete tip, caps the list and applies
// the fixed disclaimer.
func (r *LifestyleTipsResult) Finalize() error {
	r.Disclaimer = TipsDisclaimer
	if len(r.Tips) == 0 {
		return ErrNoTips
	}
	for i := range r.Tips {
		t := &r.Tips[i]
		t.Category = strings.TrimSpace(t.Category)
		t.Tip = strings.TrimSpace(t.Tip)
		if t.Category == "" || t.Tip == "" {
			return ErrIncompleteTip
		}
	}
	if len(r.Tips) > MaxTips {
		r.Tips = r.Tips[:MaxTips]
	}
	return nil
}
