package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSummary(t *testing.T, html string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "summary.html")
	require.NoError(t, os.WriteFile(path, []byte(html), 0644))
	return path
}

func TestParseSummary(t *testing.T) {
	path := writeSummary(t, `<html><body>
		<table>
			<tr><th>file</th><th>reads</th></tr>
			<tr><td>S1_R1.fastq.gz</td><td>1,204,559</td></tr>
			<tr><td>S2_R1.fastq.gz</td><td>988210</td></tr>
		</table>
	</body></html>`)

	summary, err := ParseSummary(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1204559), summary.Reads["S1_R1.fastq.gz"])
	assert.Equal(t, int64(988210), summary.Reads["S2_R1.fastq.gz"])
	assert.Equal(t, int64(2192769), summary.TotalReads())
}

func TestParseSummaryNoTable(t *testing.T) {
	path := writeSummary(t, `<html><body><p>nothing here</p></body></html>`)

	_, err := ParseSummary(path)
	assert.Error(t, err)
}

func TestParseSummaryMissingFile(t *testing.T) {
	_, err := ParseSummary(filepath.Join(t.TempDir(), "absent.html"))
	assert.Error(t, err)
}
