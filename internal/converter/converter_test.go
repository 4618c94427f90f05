package converter

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mindstream/mindstream/internal/config"
	"github.com/mindstream/mindstream/internal/sanitize"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock pins row timestamps so CSV output is deterministic.
type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time                           { return f.now }
func (f fakeClock) Sleep(_ context.Context, _ time.Duration) {}

var testTime = time.Date(2024, 11, 5, 12, 30, 45, 0, time.UTC)

func newConverter(t *testing.T, inputDir, outputDir string, maxBytes int64) *Converter {
	t.Helper()
	cfg := config.ConverterConfig{
		InputDir:     inputDir,
		OutputDir:    outputDir,
		MaxFileBytes: maxBytes,
	}
	return New(cfg, sanitize.New(zap.NewNop()), fakeClock{now: testTime}, zap.NewNop())
}

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func readBatch(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestConvertDropsEmptyContentRows(t *testing.T) {
	t.Parallel()

	inputDir, outputDir := t.TempDir(), t.TempDir()
	writeInput(t, inputDir, "data.json", `[
		{"content": "", "url": "https://example.org/a"},
		{"content": null, "url": "https://example.org/b"},
		{"content": "<p>ok</p>", "url": "https://example.org/c", "metadata": {"title": "C"}}
	]`)

	files, err := newConverter(t, inputDir, outputDir, 100*1024*1024).Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)

	records := readBatch(t, files[0])
	require.Len(t, records, 2, "header plus exactly one data row")
	require.Equal(t, []string{"content", "id", "last_updated", "title", "url"}, records[0])
	require.Equal(t, []string{
		"<p>ok</p>",
		"https://example.org/c",
		"2024-11-05T12:30:45Z",
		"C",
		"https://example.org/c",
	}, records[1])
}

func TestConvertDropsLiteralNoneContent(t *testing.T) {
	t.Parallel()

	inputDir, outputDir := t.TempDir(), t.TempDir()
	writeInput(t, inputDir, "data.json", `[
		{"content": "None", "url": "https://example.org/none"},
		{"content": "<p>real</p>", "url": "https://example.org/real"}
	]`)

	files, err := newConverter(t, inputDir, outputDir, 100*1024*1024).Convert(context.Background())
	require.NoError(t, err)

	records := readBatch(t, files[0])
	require.Len(t, records, 2)
	require.Equal(t, "https://example.org/real", records[1][4])
}

func TestConvertRollsOverAtSizeCeiling(t *testing.T) {
	t.Parallel()

	inputDir, outputDir := t.TempDir(), t.TempDir()

	const docCount = 10
	docs := "["
	for i := 0; i < docCount; i++ {
		if i > 0 {
			docs += ","
		}
		docs += fmt.Sprintf(`{"content": "<p>row number %02d padding padding</p>", "url": "https://example.org/%02d"}`, i, i)
	}
	docs += "]"
	writeInput(t, inputDir, "data.json", docs)

	const maxBytes = 200
	files, err := newConverter(t, inputDir, outputDir, maxBytes).Convert(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(files), 2, "expected the ceiling to force a rollover")

	var allRows [][]string
	for i, path := range files {
		require.Equal(t, filepath.Join(outputDir, fmt.Sprintf("data_%d.csv", i+1)), path)
		records := readBatch(t, path)
		require.NotEmpty(t, records)
		require.Equal(t, []string{"content", "id", "last_updated", "title", "url"}, records[0],
			"every batch file starts with its own header")
		allRows = append(allRows, records[1:]...)

		if i < len(files)-1 {
			info, err := os.Stat(path)
			require.NoError(t, err)
			require.GreaterOrEqual(t, info.Size(), int64(maxBytes), "sealed files reached the ceiling")
		}
	}

	require.Len(t, allRows, docCount, "no rows lost across rollovers")
	for i, row := range allRows {
		require.Equal(t, fmt.Sprintf("https://example.org/%02d", i), row[4], "row order preserved")
	}
}

func TestConvertSkipsNonArrayFile(t *testing.T) {
	t.Parallel()

	inputDir, outputDir := t.TempDir(), t.TempDir()
	writeInput(t, inputDir, "bad.json", `{"not": "a list"}`)
	writeInput(t, inputDir, "good.json", `[{"content": "<p>survives</p>", "url": "https://example.org"}]`)
	writeInput(t, inputDir, "notes.txt", "ignored entirely")

	files, err := newConverter(t, inputDir, outputDir, 100*1024*1024).Convert(context.Background())
	require.NoError(t, err)

	records := readBatch(t, files[0])
	require.Len(t, records, 2, "bad file skipped, good file converted")
}

func TestConvertMalformedDocumentDoesNotAbortFile(t *testing.T) {
	t.Parallel()

	inputDir, outputDir := t.TempDir(), t.TempDir()
	writeInput(t, inputDir, "data.json", `[
		{"content": 42, "url": "https://example.org/bad"},
		{"content": "<p>fine</p>", "url": "https://example.org/good"}
	]`)

	files, err := newConverter(t, inputDir, outputDir, 100*1024*1024).Convert(context.Background())
	require.NoError(t, err)

	records := readBatch(t, files[0])
	require.Len(t, records, 2)
	require.Equal(t, "https://example.org/good", records[1][4])
}

func TestConvertEmptyInputStillWritesHeaderFile(t *testing.T) {
	t.Parallel()

	inputDir, outputDir := t.TempDir(), t.TempDir()

	files, err := newConverter(t, inputDir, outputDir, 100*1024*1024).Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)

	records := readBatch(t, files[0])
	require.Len(t, records, 1, "header only")
}
