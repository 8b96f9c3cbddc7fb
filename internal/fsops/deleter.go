package fsops

// Deleter abstracts filesystem delete operations
// Enables fault injection in tests for the retry and remediation paths
type Deleter interface {
	Remove(path string) error
	RemoveAll(path string) error
}

// RemoveMatch removes a single entry with the primitive suited to its kind
func RemoveMatch(d Deleter, path string, isDir bool) error {
	if isDir {
		return d.RemoveAll(path)
	}
	return d.Remove(path)
}
