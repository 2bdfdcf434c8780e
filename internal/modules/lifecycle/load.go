package lifecycle

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadProductInput decodes one YAML term sheet. Unknown keys are rejected so a
// misspelled level does not silently fall back to zero.
func LoadProductInput(r io.Reader) (ProductInput, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var in ProductInput
	if err := dec.Decode(&in); err != nil {
		return ProductInput{}, fmt.Errorf("failed to decode term sheet: %w", err)
	}
	return in, nil
}

// LoadProductFile reads a YAML term sheet from path.
func LoadProductFile(path string) (ProductInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return ProductInput{}, fmt.Errorf("failed to open term sheet: %w", err)
	}
	defer f.Close()
	return LoadProductInput(f)
}
