// Package render turns a record and its children into a stored report
// document. Layout is intentionally minimal; the contract is what matters to
// the workflow, which treats rendering as a synchronous collaborator whose
// failure aborts the submission.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Renderer produces the report document bytes for a record.
type Renderer interface {
	Render(ctx context.Context, data ReportData) ([]byte, error)
}

// Store persists rendered documents and returns their storage path.
type Store interface {
	Save(name string, data []byte) (string, error)
}

// ReportData is the flattened view of a record handed to the renderer.
type ReportData struct {
	ID                  string
	Category            string
	ProblemShort        string
	ProblemDetail       string
	LlcType             string
	Customer            string
	ProductFamily       string
	ProductType         string
	QualityDetection    string
	ApplicationLabel    string
	ProductLineLabel    string
	PartOrMachineNumber string
	Editor              string
	Plant               string
	FailureMode         string
	Conclusions         string
	DistributionTo      []string
	CreatedAt           string
	RootCauses          []ReportRootCause
}

// ReportRootCause is one causal-analysis row in the report.
type ReportRootCause struct {
	Index                    int
	RootCause                string
	DetailedCauseDescription string
	SolutionDescription      string
	Conclusion               string
	Process                  string
	Origin                   string
	EvidenceName             string
}

// DiskStore writes documents under a base directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the base directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating document dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

var unsafeName = regexp.MustCompile(`[^\w.\-]+`)

// Save writes data under a sanitized file name and returns the path.
func (s *DiskStore) Save(name string, data []byte) (string, error) {
	safe := unsafeName.ReplaceAllString(name, "_")
	path := filepath.Join(s.dir, safe)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing document: %w", err)
	}
	return path, nil
}
