package storage

// sliceScanner serves pre-collected entries through the DirScanner
// contract. Backends that enumerate eagerly wrap their results with it.
type sliceScanner struct {
	entries []*FileInfo
	pos     int
	err     error
}

// NewSliceScanner returns a DirScanner over the given entries. The error,
// if non-nil, is reported by Err after the entries are exhausted.
func NewSliceScanner(entries []*FileInfo, err error) DirScanner {
	return &sliceScanner{entries: entries, pos: -1, err: err}
}

func (s *sliceScanner) Next() bool {
	if s.pos+1 >= len(s.entries) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceScanner) Entry() *FileInfo {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return nil
	}
	return s.entries[s.pos]
}

func (s *sliceScanner) Err() error {
	return s.err
}

func (s *sliceScanner) Close() error {
	s.entries = nil
	return nil
}

// CollectEntries drains a scanner into a slice, closing it afterwards.
// Mostly useful in tests and CLI output paths.
func CollectEntries(sc DirScanner) ([]*FileInfo, error) {
	defer func() { _ = sc.Close() }()

	var entries []*FileInfo
	for sc.Next() {
		entries = append(entries, sc.Entry())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
