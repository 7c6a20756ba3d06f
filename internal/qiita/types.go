package qiita

// JobInfo describes a processing job as reported by the Qiita server.
// Parameters are declared at command registration time; values arrive as
// whatever JSON type the server stored, so accessors normalize them.
type JobInfo struct {
	ID         string         `json:"job_id"`
	Command    string         `json:"command"`
	Status     string         `json:"status"`
	Message    string         `json:"msg"`
	Parameters map[string]any `json:"parameters"`
}

// Parameter returns the string form of a job parameter, or "" when absent.
// Numeric values are common for artifact ids, so they are stringified.
func (j *JobInfo) Parameter(key string) string {
	return anyToString(j.Parameters[key])
}

// FileRecord is a single file belonging to an artifact.
type FileRecord struct {
	Path string `json:"filepath"`
	Size int64  `json:"size"`
}

// ArtifactFiles maps a file-type tag (raw_forward_seqs, raw_reverse_seqs,
// biom, ...) to the ordered files registered under that tag.
type ArtifactFiles map[string][]FileRecord

// PrepInfo references the preparation information associated with an
// artifact. The file itself is tab-separated per-sample metadata; this
// component passes it through to the submission templates untouched.
type PrepInfo struct {
	ID   int    `json:"prep_id"`
	Path string `json:"prep_filepath"`
}

// ArtifactInfo is one output artifact to register when completing a job.
type ArtifactInfo struct {
	Name  string     `json:"artifact_name"`
	Type  string     `json:"artifact_type"`
	Files [][]string `json:"files"`
}

// NewArtifactInfo builds an ArtifactInfo from (path, type) pairs.
func NewArtifactInfo(name, artifactType string, files ...[2]string) ArtifactInfo {
	ai := ArtifactInfo{Name: name, Type: artifactType}
	for _, f := range files {
		ai.Files = append(ai.Files, []string{f[0], f[1]})
	}
	return ai
}
