package entity

import (
	"regexp"
	"strings"
	"time"
)

// Region is an administrative region owning a set of HEIs
type Region struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// HEI is a higher-education institution receiving funds
type HEI struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	RegionID   int64  `json:"region_id"`
}

// Program is a funding program; its code drives the control number prefix
type Program struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// AcademicYear is identified by a label such as "2024-2025"
type AcademicYear struct {
	ID        int64      `json:"id"`
	Label     string     `json:"label"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

// Semester codes
const (
	SemesterFirst  = "first"
	SemesterSecond = "second"
	SemesterSummer = "summer"
)

// Semester is a term within an academic year
type Semester struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// DocumentRequirement lists a document HEIs are expected to attach
type DocumentRequirement struct {
	ID         int64  `json:"id"`
	ProgramID  *int64 `json:"program_id,omitempty"`
	Name       string `json:"name"`
	IsRequired bool   `json:"is_required"`
}

// ComplianceStatus codes
const (
	ComplianceStatusPending  = "pending"
	ComplianceStatusComplied = "complied"
)

// ComplianceStatus is a lookup for compliance progress
type ComplianceStatus struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeSemesterLabel maps free-text labels ("1st Sem", "Second Semester",
// "midyear") onto a semester code. Anything unrecognized is the first semester.
func NormalizeSemesterLabel(label string) string {
	words := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(label), " "))
	for _, w := range words {
		switch w {
		case "1", "1st", "first", "i":
			return SemesterFirst
		case "2", "2nd", "second", "ii":
			return SemesterSecond
		case "summer", "midyear", "mid", "3", "3rd", "third":
			return SemesterSummer
		}
	}
	return SemesterFirst
}

// ReferenceKind names a reference table, used for deletes and cache invalidation
type ReferenceKind string

const (
	ReferenceRegion              ReferenceKind = "region"
	ReferenceHEI                 ReferenceKind = "hei"
	ReferenceProgram             ReferenceKind = "program"
	ReferenceAcademicYear        ReferenceKind = "academic_year"
	ReferenceSemester            ReferenceKind = "semester"
	ReferenceComplianceStatus    ReferenceKind = "compliance_status"
	ReferenceDocumentRequirement ReferenceKind = "document_requirement"
)
