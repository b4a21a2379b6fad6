package models

import (
	"strings"
	"time"
)

// SyntheticKind marks a line item that adjusts a category total without being a real course.
type SyntheticKind string

const (
	KindNone            SyntheticKind = ""
	KindEthicsCredit    SyntheticKind = "ethics-credit"
	KindEthicsDeduction SyntheticKind = "ethics-deduction"
	KindAnchorCredit    SyntheticKind = "anchor-credit"
)

// Reserved item keys. Real courses use their course id as the item key.
const (
	EthicsCreditKey       = "ethics-credit"
	AnchorCreditKey       = "anchor-credit"
	EthicsDeductionPrefix = "ethics-deduction-"
)

// IsSyntheticKey reports whether itemKey names a synthetic line item.
func IsSyntheticKey(itemKey string) bool {
	return itemKey == EthicsCreditKey ||
		itemKey == AnchorCreditKey ||
		strings.HasPrefix(itemKey, EthicsDeductionPrefix)
}

// CourseAssignment places one course, real or synthetic, into one requirement category
// of a user's plan. A user holds at most one row per item key.
type CourseAssignment struct {
	ID        string        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string        `gorm:"type:uuid;not null;uniqueIndex:idx_assignment_user_item" json:"user_id"`
	User      User          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ItemKey   string        `gorm:"size:64;not null;uniqueIndex:idx_assignment_user_item" json:"item_key"`
	CourseID  *string       `gorm:"type:uuid;index" json:"course_id"`
	Course    *Course       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"course,omitempty"`
	Category  CategoryKey   `gorm:"size:40;not null" json:"category"`
	Credits   int           `gorm:"not null" json:"credits"` // negative for deductions
	Kind      SyntheticKind `gorm:"size:20" json:"kind,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (a CourseAssignment) IsSynthetic() bool {
	return a.Kind != KindNone
}

// RequirementType names a special program rule.
type RequirementType string

const (
	RequirementEthics RequirementType = "ethics_course"
	RequirementAnchor RequirementType = "anchor_course"
)

// SpecialRequirement is the persisted state of a rule: the rule is On while the row exists.
type SpecialRequirement struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	UserID               string          `gorm:"type:uuid;not null;uniqueIndex:idx_special_req_user_type" json:"user_id"`
	User                 User            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	RequirementType      RequirementType `gorm:"size:20;not null;uniqueIndex:idx_special_req_user_type" json:"requirement_type"`
	SelectedCourseID     *string         `gorm:"type:uuid" json:"selected_course_id"`
	DeductedFromCategory *CategoryKey    `gorm:"size:40" json:"deducted_from_category"`
	CreditAmount         int             `json:"credit_amount"`
	AddedToCategory      *CategoryKey    `gorm:"size:40" json:"added_to_category"`
	CreatedAt            time.Time       `json:"created_at"`
}
