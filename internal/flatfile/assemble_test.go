package flatfile_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnshuhailey/ppa-sap/internal/flatfile"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

func fixedClock() time.Time {
	return time.Date(2024, 9, 9, 11, 25, 3, 470_000_000, time.UTC)
}

func records(n int) []flatfile.Record {
	out := make([]flatfile.Record, n)
	for i := range out {
		key := fmt.Sprintf("PA-2024-%08d", i+1)
		out[i] = flatfile.Record{
			Key:   key,
			Lines: []string{"1|" + key, "2|001|S", "2|002|K"},
		}
	}

	return out
}

func TestAssembler_Assemble(t *testing.T) {
	type testCase struct {
		name       string
		total      int
		chunkSize  int
		wantCounts []int
		wantErr    error
	}

	tests := []testCase{
		{name: "ChunkBoundary", total: 2500, chunkSize: 1000, wantCounts: []int{1000, 1000, 500}},
		{name: "ExactMultiple", total: 4, chunkSize: 2, wantCounts: []int{2, 2}},
		{name: "SingleFile", total: 3, chunkSize: 1000, wantCounts: []int{3}},
		{name: "NoRecords", total: 0, chunkSize: 1000, wantErr: flatfile.ErrNothingToDo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := flatfile.NewAssembler(sap.FI09, "", tt.chunkSize, 3, fixedClock)

			files, err := a.Assemble(records(tt.total))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Len(t, files, len(tt.wantCounts))

			names := make(map[string]bool)

			for i, f := range files {
				assert.Len(t, f.Records, tt.wantCounts[i])
				assert.NoError(t, f.Validate(3))

				content := string(f.Content())
				lines := strings.Split(content, "\n")

				assert.Equal(t, fmt.Sprintf("0|FI09|%s|PPA||%d", f.Stamp, tt.wantCounts[i]), lines[0])
				assert.Len(t, lines, 1+3*tt.wantCounts[i])
				assert.False(t, strings.HasSuffix(content, "\n"))
				assert.Equal(t, "FI09_"+f.Stamp+".txt", f.Name)

				names[f.Name] = true
			}

			assert.Len(t, names, len(files))
		})
	}
}

func TestAssembler_StampsAdvance(t *testing.T) {
	a := flatfile.NewAssembler(sap.FI10, "PPA", 1, 3, fixedClock)

	files, err := a.Assemble(records(3))
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "2024090911250347", files[0].Stamp)
	assert.Equal(t, "2024090911250348", files[1].Stamp)
	assert.Equal(t, "2024090911250349", files[2].Stamp)
}

func TestAssembler_Build(t *testing.T) {
	a := flatfile.NewAssembler(sap.FI15, "PPA", 10, 3, fixedClock)

	_, err := a.Build(nil)
	assert.ErrorIs(t, err, flatfile.ErrNothingToDo)

	short := []flatfile.Record{{Key: "CI-2024-0001", Lines: []string{"1|x"}}}
	_, err = a.Build(short)
	assert.ErrorIs(t, err, flatfile.ErrBadHeader)

	f, err := a.Build(records(2))
	require.NoError(t, err)
	assert.Equal(t, []string{"PA-2024-00000001", "PA-2024-00000002"}, f.Keys())
	assert.True(t, strings.HasPrefix(string(f.Content()), "0|FI15|2024090911250347|PPA||2\n1|PA-2024-00000001\n"))
}

func TestFile_ValidateRejectsMismatch(t *testing.T) {
	f := &flatfile.File{Name: "FI09_x.txt", Doc: sap.FI09, Stamp: "x", Sender: "PPA", Records: records(2)}

	assert.NoError(t, f.Validate(3))
	assert.ErrorIs(t, f.Validate(2), flatfile.ErrBadHeader)
}
