package capabilities

import "net/url"

// Provenance tells where an effective capability value currently comes from.
type Provenance string

const (
	// ProvenanceRole means the value is the forum role default.
	ProvenanceRole Provenance = "role"
	// ProvenanceUser means a per-user override supersedes the role default.
	ProvenanceUser Provenance = "user"
)

// Decision is one operator choice for a capability.
type Decision string

const (
	// DecisionAllow grants the capability explicitly.
	DecisionAllow Decision = "allow"
	// DecisionDeny denies the capability explicitly.
	DecisionDeny Decision = "deny"
	// DecisionDefault clears any override and falls back to the role.
	DecisionDefault Decision = "default"
)

// Resolution describes the effective state of one capability for one user.
type Resolution struct {
	Capability string     `json:"capability"`
	Title      string     `json:"title"`
	Allowed    bool       `json:"allowed"`
	Provenance Provenance `json:"provenance"`
	Changed    bool       `json:"changed"`
	// Options lists the explicit decisions the operator may choose next.
	// Clearing back to the role default is always available and not listed.
	Options []Decision `json:"options"`
	// Selected is the pre-selected decision, DecisionDefault when none.
	Selected Decision `json:"selected"`
}

// GroupView is one catalog group resolved for display.
type GroupView struct {
	Group Group        `json:"group"`
	Title string       `json:"title"`
	Rows  []Resolution `json:"rows"`
}

// Submission is one parsed capability form post.
type Submission struct {
	// Reset requests a full reset to the role defaults. When set, the
	// per-capability decisions are ignored entirely.
	Reset     bool
	Decisions map[string]Decision
}

// Form field values and names used by the submission surface.
const (
	FormValueAllow = "yes"
	FormValueDeny  = "no"
	ResetFormField = "reset_defaults"
)

// ParseSubmission reads a capability form. Each capability arrives as one
// field keyed by the capability identifier with value "yes", "no" or empty;
// absent or empty fields mean "default". Unknown values are ignored.
func ParseSubmission(values url.Values) Submission {
	sub := Submission{Decisions: make(map[string]Decision)}
	if values.Get(ResetFormField) != "" {
		sub.Reset = true
		return sub
	}
	for key := range values {
		if key == ResetFormField {
			continue
		}
		switch values.Get(key) {
		case FormValueAllow:
			sub.Decisions[key] = DecisionAllow
		case FormValueDeny:
			sub.Decisions[key] = DecisionDeny
		}
	}
	return sub
}
