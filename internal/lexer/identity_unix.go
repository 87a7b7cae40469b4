//go:build !windows

package lexer

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// fileIdentity returns the (device, inode) pair used for Include
// cycle detection.
func fileIdentity(f *os.File) (dev, ino uint64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, errors.Wrapf(err, "stat %s", f.Name())
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, errors.Errorf("cannot determine file identity for %s", f.Name())
	}
	return uint64(st.Dev), uint64(st.Ino), nil
}
