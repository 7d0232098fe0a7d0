package enums

import "fmt"

// BusinessCategory maps to the business_category enum in Postgres.
type BusinessCategory string

const (
	BusinessCategoryRestaurant BusinessCategory = "restaurant"
	BusinessCategoryClinic     BusinessCategory = "clinic"
	BusinessCategoryBank       BusinessCategory = "bank"
	BusinessCategorySalon      BusinessCategory = "salon"
	BusinessCategoryPharmacy   BusinessCategory = "pharmacy"
	BusinessCategoryGovernment BusinessCategory = "government"
	BusinessCategoryOther      BusinessCategory = "other"
)

var validBusinessCategories = []BusinessCategory{
	BusinessCategoryRestaurant,
	BusinessCategoryClinic,
	BusinessCategoryBank,
	BusinessCategorySalon,
	BusinessCategoryPharmacy,
	BusinessCategoryGovernment,
	BusinessCategoryOther,
}

// String implements fmt.Stringer.
func (c BusinessCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known BusinessCategory.
func (c BusinessCategory) IsValid() bool {
	for _, candidate := range validBusinessCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseBusinessCategory converts raw input into a BusinessCategory.
func ParseBusinessCategory(value string) (BusinessCategory, error) {
	for _, candidate := range validBusinessCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid business category %q", value)
}

// BusinessStatus captures whether a business is accepting new queue entries.
type BusinessStatus string

const (
	BusinessStatusOpen   BusinessStatus = "open"
	BusinessStatusClosed BusinessStatus = "closed"
)

var validBusinessStatuses = []BusinessStatus{
	BusinessStatusOpen,
	BusinessStatusClosed,
}

// String implements fmt.Stringer.
func (s BusinessStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical enum.
func (s BusinessStatus) IsValid() bool {
	for _, candidate := range validBusinessStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBusinessStatus converts raw input into a BusinessStatus.
func ParseBusinessStatus(value string) (BusinessStatus, error) {
	for _, candidate := range validBusinessStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid business status %q", value)
}

// ApprovalStatus captures the admin review workflow for a business.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

var validApprovalStatuses = []ApprovalStatus{
	ApprovalStatusPending,
	ApprovalStatusApproved,
	ApprovalStatusRejected,
}

// String implements fmt.Stringer.
func (s ApprovalStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches the canonical enum.
func (s ApprovalStatus) IsValid() bool {
	for _, candidate := range validApprovalStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the approval workflow can still move.
// Rejection is one-way: a rejected business stays rejected and blocks
// further edits.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusRejected
}

// ParseApprovalStatus converts raw input into an ApprovalStatus.
func ParseApprovalStatus(value string) (ApprovalStatus, error) {
	for _, candidate := range validApprovalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid approval status %q", value)
}
