package registry

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// File is the YAML layout of a variants file:
//
//	variants:
//	  - discriminator: partner
//	    fields:
//	      - {name: name, kind: text, required: true}
type File struct {
	Variants   []types.VariantSchema `yaml:"variants"`
	Dependents []types.VariantSchema `yaml:"dependents"`
}

// Load parses a variants file from rd.
func Load(rd io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("parsing variants: %w", err)
	}
	return &f, nil
}

// LoadFile parses the variants file at path.
func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening variants file: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

// Apply registers the file's variants into variants and its dependent kinds
// into dependents.
func (f *File) Apply(variants, dependents *Registry) error {
	if err := variants.RegisterAll(f.Variants); err != nil {
		return err
	}
	return dependents.RegisterAll(f.Dependents)
}
