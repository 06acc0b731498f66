package checkpointer

import "fmt"

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	object   Serializable // Object to save

	// filename returns the string filename of the file to save the object
	// in.
	//
	// If each serialized object should be saved in a separate file with
	// each file having an incremented number as a suffix (e.g.
	// file1.bin, file2.bin, ..., fileK.bin), then use FilenameEnumerator.
	// If the filename does not matter, use FileTimer:
	//
	//	n, err := NewNStep(10, object, FileTimer("filename", ".bin"))
	//
	// To overwrite a single file, return a constant filename.
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps.
func NewNStep(n int, object Serializable,
	filename func() string) (Checkpointer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("newnstep: interval must be positive"+
			"\n\thave(%v)", n)
	}
	if object == nil || filename == nil {
		return nil, fmt.Errorf("newnstep: object and filename must be " +
			"non-nil")
	}

	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the tracked object if step is a multiple of the
// checkpointing interval
func (n *nStep) Checkpoint(step int) error {
	if step%n.interval == 0 {
		if err := Save(n.filename(), n.object); err != nil {
			return fmt.Errorf("checkpoint: step %v: %w", step, err)
		}
	}
	return nil
}
