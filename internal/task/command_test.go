package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		want   Command
		direct bool
	}{
		{"Woltka v0.1.7", CommandWoltka, false},
		{"SynDNA Woltka", CommandSynDNA, false},
		{"Calculate Cell Counts", CommandCellCounts, true},
		{"Calculate RNA Copy Counts", CommandRNACopyCounts, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Classify(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.direct, got.Direct())
			assert.Equal(t, tc.name, got.String())
		})
	}
}

func TestClassifyUnknown(t *testing.T) {
	for _, name := range []string{"", "Woltka", "woltka v0.1.7", "Split libraries"} {
		_, err := Classify(name)
		require.ErrorIs(t, err, ErrUnsupportedCommand, "command %q", name)
	}
}
