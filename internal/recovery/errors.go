package recovery

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSlideContent 输入中没有可恢复的幻灯片内容
	ErrNoSlideContent = errors.New("no slide content could be recovered; supply a pre-extracted text file")
	// ErrUndecodableText is returned when a text source fails every supported encoding.
	ErrUndecodableText = errors.New("text source could not be decoded")
	// ErrNoArchives is returned when every archive in a batch failed.
	ErrNoArchives = errors.New("no archive could be written")
)

// ArchiveFailure records one archive that could not be built or serialized.
type ArchiveFailure struct {
	Part int
	Err  error
}

func (f ArchiveFailure) Error() string {
	return fmt.Sprintf("part %d: %v", f.Part, f.Err)
}

func (f ArchiveFailure) Unwrap() error {
	return f.Err
}
