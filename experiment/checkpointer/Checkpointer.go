// Package checkpointer saves and restores gob-serializable networks to
// and from files.
package checkpointer

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints/saves serializable objects based on the
// number of training steps taken
type Checkpointer interface {
	Checkpoint(step int) error
}

// Save serializes obj into the file at path, creating any missing
// parent directories and replacing an existing file.
func Save(path string, obj Serializable) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(obj); err != nil {
		return fmt.Errorf("save: could not encode %T: %w", obj, err)
	}

	log.Debug().Str("path", path).Msgf("saved %T", obj)
	return file.Close()
}

// Load deserializes the file at path into obj
func Load(path string, obj Serializable) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	defer file.Close()

	if err := gob.NewDecoder(file).Decode(obj); err != nil {
		return fmt.Errorf("load: could not decode %T: %w", obj, err)
	}

	log.Debug().Str("path", path).Msgf("loaded %T", obj)
	return nil
}
