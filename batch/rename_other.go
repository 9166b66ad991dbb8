//go:build !linux

package batch

func renameNoReplace(oldpath, newpath string) error {
	return renameChecked(oldpath, newpath)
}
