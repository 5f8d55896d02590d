// Package permissions checks filesystem modes on files that hold secret
// material: the store database and exported bundles. Loose modes are
// reported as warnings, never hard failures; the vault still works on
// filesystems that can't express POSIX permissions.
package permissions

import (
	"fmt"
	"io/fs"
	"os"
	"runtime"
)

// Finding describes one permission problem on a checked file.
type Finding struct {
	Path    string
	Mode    fs.FileMode
	Problem string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s (%s): %s", f.Path, f.Mode.Perm(), f.Problem)
}

// CheckSecretFile inspects the mode of a file expected to be private to the
// current user. A missing file produces no findings.
func CheckSecretFile(path string) ([]Finding, error) {
	if runtime.GOOS == "windows" {
		// POSIX mode bits are meaningless under NTFS ACLs.
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var findings []Finding
	mode := info.Mode()

	if mode&0o040 != 0 || mode&0o004 != 0 {
		findings = append(findings, Finding{
			Path:    path,
			Mode:    mode,
			Problem: "readable by group or others; run chmod 600",
		})
	}
	if mode&0o020 != 0 || mode&0o002 != 0 {
		findings = append(findings, Finding{
			Path:    path,
			Mode:    mode,
			Problem: "writable by group or others; run chmod 600",
		})
	}

	return findings, nil
}

// Tighten sets a secret file to owner read/write only.
func Tighten(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
