// Package remediate repairs the permission problems that make an entry
// undeletable: read-only bits and attributes, and on Windows ownership and
// ACLs.
package remediate

// Remediator makes path removable by the current user. isDir selects
// whether the whole tree under path is repaired.
type Remediator interface {
	Remediate(path string, isDir bool) error
}

// Options tune the platform remediator.
type Options struct {
	// SkipOwnership disables the takeown step on Windows.
	SkipOwnership bool
}

// New returns the remediator for the running platform.
func New(opts Options) Remediator {
	return newPlatform(opts)
}

// Nop never changes anything and always succeeds.
type Nop struct{}

func (Nop) Remediate(string, bool) error { return nil }

// Func adapts a plain function to the Remediator interface.
type Func func(path string, isDir bool) error

func (f Func) Remediate(path string, isDir bool) error { return f(path, isDir) }
