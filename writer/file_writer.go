package writer

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/magolch/plogd/pkg/dir"
	"github.com/magolch/plogd/pkg/logger"
)

// FileMode is the fixed permission mode for created log files.
const FileMode = 0644

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrMissingPath     = errors.New("missing path, check directory exists and permissions")
	ErrPermission      = errors.New("permission denied")
	ErrNoSpace         = errors.New("no space left")
	ErrShortWrite      = errors.New("short write")
)

// Write appends message to the file at filepath in a single write call,
// creating the file when absent. An empty message is skipped, not an error.
// The file handle is closed on every return path.
func Write(message, filepath string) error {
	if !dir.IsValidPath(filepath) {
		return fmt.Errorf("%w: file path empty or too long", ErrInvalidArgument)
	}

	if len(message) == 0 {
		logger.Warnf("empty message, skipping write to %s", filepath)
		return nil
	}

	f, err := os.OpenFile(filepath, os.O_RDWR|os.O_CREATE|os.O_APPEND, FileMode)
	if err != nil {
		return classifyOpenErr(filepath, err)
	}
	defer f.Close()

	// O_APPEND already positions every write at EOF; seeking keeps the
	// current offset observable for the short-write report below.
	pos, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek %s: %w", filepath, err)
	}

	n, err := f.WriteString(message)
	if err != nil {
		return fmt.Errorf("write %s at %d: %w", filepath, pos, err)
	}
	if n != len(message) {
		return fmt.Errorf("%w: %d of %d bytes at %s", ErrShortWrite, n, len(message), filepath)
	}
	return nil
}

func classifyOpenErr(filepath string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: open %s: %v", ErrMissingPath, filepath, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: open %s: %v", ErrPermission, filepath, err)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: open %s: %v", ErrNoSpace, filepath, err)
	default:
		return fmt.Errorf("open %s: %w", filepath, err)
	}
}
