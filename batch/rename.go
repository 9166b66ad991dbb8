package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// renameChecked moves oldpath to newpath unless newpath exists. The check and
// the move are two system calls, so a file created in between is overwritten
// on platforms whose rename replaces existing targets.
func renameChecked(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return fmt.Errorf("%w: %s", ErrCollision, newpath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(oldpath, newpath)
}
