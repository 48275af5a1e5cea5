package models

import (
	"fmt"
	"sort"
	"strings"
)

// GeneratedArtifact is the output of one generation attempt. Each attempt
// replaces the previous artifact entirely.
type GeneratedArtifact struct {
	Files   map[string]string `json:"files"`
	Summary string            `json:"summary"`
}

// Paths returns the file paths in lexical order.
func (a *GeneratedArtifact) Paths() []string {
	paths := make([]string, 0, len(a.Files))
	for p := range a.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Render concatenates every file under a path header.
func (a *GeneratedArtifact) Render() string {
	var b strings.Builder
	for i, p := range a.Paths() {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "// file: %s\n", p)
		b.WriteString(a.Files[p])
		if !strings.HasSuffix(a.Files[p], "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// SubjectKind tells whether a discrepancy refers to an entity or a relation.
type SubjectKind string

const (
	SubjectEntity   SubjectKind = "entity"
	SubjectRelation SubjectKind = "relation"
)

type Discrepancy struct {
	Subject     SubjectKind `json:"subject"`
	Entity      *Entity     `json:"entity,omitempty"`
	Relation    *Relation   `json:"relation,omitempty"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
}

type ValidationReport struct {
	Discrepancies []Discrepancy `json:"discrepancies"`
	Verdict       Verdict       `json:"verdict"`
}

// Blocking returns only the blocking discrepancies, in report order.
func (r *ValidationReport) Blocking() []Discrepancy {
	var out []Discrepancy
	for _, d := range r.Discrepancies {
		if d.Severity == SeverityBlocking {
			out = append(out, d)
		}
	}
	return out
}

func (r *ValidationReport) Passed() bool { return r.Verdict == VerdictPass }

// NewValidationReport derives the verdict from the discrepancies: pass iff none is blocking.
func NewValidationReport(ds []Discrepancy) ValidationReport {
	report := ValidationReport{Discrepancies: ds, Verdict: VerdictPass}
	if report.Discrepancies == nil {
		report.Discrepancies = []Discrepancy{}
	}
	for _, d := range ds {
		if d.Severity == SeverityBlocking {
			report.Verdict = VerdictFail
			break
		}
	}
	return report
}
