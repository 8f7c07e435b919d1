package index

// ImageIndex defines the interface for image indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ImageIndex interface {
	UpsertImage(img ImageRow) error
	DeleteImage(path string) error
	GetImage(path string) (*ImageRow, error)
	ListImages(q ListQuery) ([]ImageRow, int, error)
	AllFingerprints() (map[string]string, error)
	Count() (int, error)
	Ping() error
	Close() error
}

// Verify *DB satisfies ImageIndex at compile time.
var _ ImageIndex = (*DB)(nil)
