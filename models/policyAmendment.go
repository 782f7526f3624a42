package models

import "time"

const (
	AmendmentPending  = "pending"
	AmendmentApproved = "approved"
	AmendmentRejected = "rejected"
)

const (
	ChangeAddition     = "addition"
	ChangeModification = "modification"
	ChangeRemoval      = "removal"
)

// PolicyAmendment is a proposed edit to policy text intended to close a gap.
type PolicyAmendment struct {
	ID            string     `gorm:"primaryKey" json:"id" yaml:"id"`
	RegulationID  string     `gorm:"index" json:"regulationId" yaml:"regulationId"`
	GapID         string     `json:"gapId,omitempty" yaml:"gapId"`
	PolicySection string     `json:"policySection" yaml:"policySection"`
	OriginalText  string     `json:"originalText" yaml:"originalText"`
	ProposedText  string     `json:"proposedText" yaml:"proposedText"`
	ChangeType    string     `json:"changeType" yaml:"changeType"`
	Status        string     `gorm:"default:pending" json:"status" yaml:"status"`
	Edited        bool       `json:"edited" yaml:"-"`
	Rationale     string     `json:"rationale" yaml:"rationale"`
	DecidedBy     string     `json:"decidedBy,omitempty" yaml:"-"`
	DecidedAt     *time.Time `json:"decidedAt,omitempty" yaml:"-"`
	CreatedAt     time.Time  `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time  `json:"updatedAt" yaml:"-"`
}

// amendmentTransitions lists the statuses reachable from each status.
// approved and rejected are terminal.
var amendmentTransitions = map[string][]string{
	AmendmentPending: {AmendmentApproved, AmendmentRejected},
}

// CanTransition reports whether an amendment may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range amendmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further action is allowed on the amendment.
func (a *PolicyAmendment) IsTerminal() bool {
	return len(amendmentTransitions[a.Status]) == 0
}

// IsValidChangeType reports whether t is addition, modification or removal.
func IsValidChangeType(t string) bool {
	return t == ChangeAddition || t == ChangeModification || t == ChangeRemoval
}
