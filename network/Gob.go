package network

import (
	"encoding/gob"
	"fmt"
)

// field is a single named value of a gob-encoded network
type field struct {
	name  string
	value interface{}
}

// encodeFields encodes each field in order
func encodeFields(enc *gob.Encoder, fields []field) error {
	for _, f := range fields {
		if err := enc.Encode(f.value); err != nil {
			return fmt.Errorf("could not encode %v: %v", f.name, err)
		}
	}
	return nil
}

// decodeFields decodes each field in order. Each field value must be a
// pointer.
func decodeFields(dec *gob.Decoder, fields []field) error {
	for _, f := range fields {
		if err := dec.Decode(f.value); err != nil {
			return fmt.Errorf("could not decode %v: %v", f.name, err)
		}
	}
	return nil
}
