package converters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/feichai0017/deck-recovery/internal/recovery"
)

// RecoveryManifest 定义一次恢复运行的结果清单
type RecoveryManifest struct {
	TaskID      string            `json:"taskId,omitempty" yaml:"task_id,omitempty"`
	Status      string            `json:"status" yaml:"status"`
	Input       string            `json:"input" yaml:"input"`
	TextSource  string            `json:"textSource,omitempty" yaml:"text_source,omitempty"`
	Counts      ManifestCounts    `json:"counts" yaml:"counts"`
	Archives    []ManifestArchive `json:"archives" yaml:"archives"`
	Failures    []ManifestFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	ProcessedAt time.Time         `json:"processedAt" yaml:"processed_at"`
}

type ManifestCounts struct {
	Images    int `json:"images" yaml:"images"`
	Rejected  int `json:"rejected" yaml:"rejected"`
	Fragments int `json:"fragments" yaml:"fragments"`
	Slides    int `json:"slides" yaml:"slides"`
}

// ManifestArchive 描述一个输出文件; Name is the archive's base filename.
type ManifestArchive struct {
	Name             string `json:"name" yaml:"name"`
	recovery.Archive `yaml:",inline"`
}

type ManifestFailure struct {
	Part  int    `json:"part" yaml:"part"`
	Error string `json:"error" yaml:"error"`
}

const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusEmpty     = "empty"
	StatusFailed    = "failed"
)

// NewManifest summarizes a run. res may be nil when the run failed early.
func NewManifest(input, textSource string, res *recovery.Result, runErr error) *RecoveryManifest {
	m := &RecoveryManifest{
		Input:       filepath.Base(input),
		Archives:    []ManifestArchive{},
		ProcessedAt: time.Now().UTC(),
	}
	if textSource != "" {
		m.TextSource = filepath.Base(textSource)
	}
	if res != nil {
		m.Counts = ManifestCounts{
			Images:    res.Images,
			Rejected:  res.Rejected,
			Fragments: res.Fragments,
			Slides:    len(res.Slides),
		}
		for _, a := range res.Archives {
			m.Archives = append(m.Archives, ManifestArchive{Name: filepath.Base(a.Path), Archive: a})
		}
		for _, f := range res.Failures {
			m.Failures = append(m.Failures, ManifestFailure{Part: f.Part, Error: f.Err.Error()})
		}
	}

	switch {
	case errors.Is(runErr, recovery.ErrNoSlideContent):
		m.Status = StatusEmpty
	case runErr != nil:
		m.Status = StatusFailed
	case len(m.Failures) > 0:
		m.Status = StatusPartial
	default:
		m.Status = StatusCompleted
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	return m
}

func (m *RecoveryManifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

func (m *RecoveryManifest) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// SaveYAML writes the manifest to path.
func (m *RecoveryManifest) SaveYAML(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create manifest: %w", err)
	}
	if err := m.WriteYAML(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return f.Close()
}

func ParseJSON(r io.Reader) (*RecoveryManifest, error) {
	var m RecoveryManifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
