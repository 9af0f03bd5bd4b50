package models

import (
	"strings"
	"time"
)

// RequirementKind distinguishes one-off documents from those needing renewal.
type RequirementKind string

const (
	RequirementKindFixed    RequirementKind = "FIXED"
	RequirementKindPeriodic RequirementKind = "PERIODIC"
)

// RequirementTemplate defines a document every applicable student must provide.
type RequirementTemplate struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Description  string          `db:"description" json:"description"`
	Kind         RequirementKind `db:"kind" json:"kind"`
	ValidityDays *int            `db:"validity_days" json:"validityDays,omitempty"`
	Mandatory    bool            `db:"mandatory" json:"mandatory"`
	AppliesTo    *string         `db:"applies_to" json:"appliesTo,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// IsPeriodic reports whether approvals of this template expire.
func (t RequirementTemplate) IsPeriodic() bool {
	return t.Kind == RequirementKindPeriodic && t.ValidityDays != nil && *t.ValidityDays > 0
}

// AppliesToPopulation reports whether students of the population must provide it.
func (t RequirementTemplate) AppliesToPopulation(population string) bool {
	if t.AppliesTo == nil || strings.TrimSpace(*t.AppliesTo) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(*t.AppliesTo), strings.TrimSpace(population))
}

// RequirementFilter narrows catalog listings.
type RequirementFilter struct {
	Kind      RequirementKind
	Mandatory *bool
	Search    string
}
