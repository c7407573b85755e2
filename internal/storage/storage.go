package storage

// FileStore is the receipt storage collaborator. Implementations are
// expected to be bounded, possibly-failing calls; callers treat failures
// per the workflow's cleanup policy.
type FileStore interface {
	Store(data []byte, namePrefix string, originalName string) (storedName string, err error)
	Load(storedName string) ([]byte, error)
	Delete(storedName string) error
}
