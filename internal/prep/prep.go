// Package prep loads the tab-separated preparation information file
// associated with an artifact. The plugin only needs the run_prefix
// column (one prefix per sample, used to glob the input fastq files);
// everything else is passed through to the merge step untouched.
package prep

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// Sample is one row of the preparation information.
type Sample struct {
	SampleName string `csv:"sample_name"`
	RunPrefix  string `csv:"run_prefix"`
}

// Preparation is the parsed preparation information file.
type Preparation struct {
	// Path is the on-disk location of the original file, forwarded to
	// woltka_merge in the merge script.
	Path    string
	Samples []Sample
}

// Load parses the preparation file at path and enforces the run_prefix
// requirements: the column must be present and its values non-empty and
// unique per sample. Violations are fatal before anything is submitted.
func Load(path string) (*Preparation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening prep information: %w", err)
	}

	tsv := func() *csv.Reader {
		reader := csv.NewReader(bytes.NewReader(data))
		reader.Comma = '\t'
		reader.LazyQuotes = true
		return reader
	}

	header, err := tsv().Read()
	if err != nil {
		return nil, fmt.Errorf("parsing prep information %s: %w", path, err)
	}
	hasRunPrefix := false
	for _, column := range header {
		if column == "run_prefix" {
			hasRunPrefix = true
			break
		}
	}
	if !hasRunPrefix {
		return nil, fmt.Errorf(
			"prep information is missing the required run_prefix column")
	}

	var samples []Sample
	if err := gocsv.UnmarshalCSV(tsv(), &samples); err != nil {
		return nil, fmt.Errorf("parsing prep information %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("prep information %s has no samples", path)
	}

	seen := map[string]string{}
	for _, s := range samples {
		if s.RunPrefix == "" {
			return nil, fmt.Errorf(
				"prep information sample %s has an empty run_prefix value", s.SampleName)
		}
		if other, dup := seen[s.RunPrefix]; dup {
			return nil, fmt.Errorf(
				"the run_prefix values are not unique for each sample: %q used by %s and %s",
				s.RunPrefix, other, s.SampleName)
		}
		seen[s.RunPrefix] = s.SampleName
	}

	return &Preparation{Path: path, Samples: samples}, nil
}

// InputPaths returns one path per sample, formed from the artifact
// directory and the sample's run_prefix. The generated array script
// globs these prefixes to pick up the R1/R2 fastq files.
func (p *Preparation) InputPaths(dir string) []string {
	paths := make([]string, 0, len(p.Samples))
	for _, s := range p.Samples {
		paths = append(paths, filepath.Join(dir, s.RunPrefix))
	}
	return paths
}
