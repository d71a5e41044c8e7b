package dir

import (
	"errors"
	"os"
)

// MaxPathLen mirrors PATH_MAX-1, the longest path accepted as a write target.
const MaxPathLen = 4096 - 1

func EnsurePathExist(p string) error {
	dirInfo, err := os.Stat(p)
	if os.IsNotExist(err) {
		if err = os.MkdirAll(p, os.ModePerm); err != nil {
			return err
		}
	} else if err != nil {
		return err
	} else if !dirInfo.IsDir() {
		return errors.New(p + " exist,but is not dir")
	}
	return nil
}

func PathExist(p string) (bool, error) {
	_, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsValidPath reports whether p can serve as a write target path, non-empty
// and within MaxPathLen.
func IsValidPath(p string) bool {
	return len(p) > 0 && len(p) <= MaxPathLen
}
