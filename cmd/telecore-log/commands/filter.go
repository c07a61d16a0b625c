package commands

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/telecore/telecore-go/pkg/log"
)

// ErrSameFile is returned when the filter output would overwrite its input.
var ErrSameFile = errors.New("output is the input capture")

// RunFilter copies the selected events into a capture at output, appending
// when output already is a capture. It returns the number of events copied.
func RunFilter(path, output string, sel Selector) (int, error) {
	if sameFile(path, output) {
		return 0, ErrSameFile
	}
	if _, err := sel.Filter(); err != nil {
		return 0, err
	}

	dst, err := log.NewFileLogger(output)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	_, err = each(path, sel, func(e log.Event) error {
		dst.Log(e)
		return nil
	})
	return int(dst.Written()), err
}

func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ai, bi)
}
