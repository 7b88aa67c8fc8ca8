package benchmark

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

// columnMapping describes how to read one dataset's rows.
type columnMapping struct {
	promptColumn string
	labelColumn  string
}

// Known datasets with fixed column layouts. Everything else goes through
// column inference.
var datasetMappings = map[string]columnMapping{
	"jackhhao/jailbreak-classification": {promptColumn: "prompt", labelColumn: "type"},
	"jackhhao/jailbreak_llms":           {promptColumn: "prompt", labelColumn: "type"},
}

var (
	promptColumns = []string{"prompt", "text", "input", "question", "query"}
	labelColumns  = []string{"label", "type", "category", "class", "target"}
)

// Loader reads benchmark datasets from the dataset directory and from
// uploaded bytes, normalizing rows into replayable samples.
type Loader struct {
	fs         afero.Fs
	datasetDir string
	logger     *slog.Logger
}

func NewLoader(fs afero.Fs, datasetDir string, logger *slog.Logger) *Loader {
	return &Loader{fs: fs, datasetDir: datasetDir, logger: logger}
}

// Load resolves the dataset file for (source, split) and parses it. The
// file is looked up as {source}_{split} then {source}, with the source's
// slashes flattened, in both CSV and JSON flavours.
func (l *Loader) Load(ctx context.Context, source, split string, limit int) ([]domain.DatasetSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flat := strings.ReplaceAll(source, "/", "_")
	candidates := []string{
		flat + "_" + split + ".csv",
		flat + "_" + split + ".json",
		flat + ".csv",
		flat + ".json",
	}

	for _, name := range candidates {
		path := filepath.Join(l.datasetDir, name)
		data, err := afero.ReadFile(l.fs, path)
		if err != nil {
			continue
		}
		l.logger.Info("dataset file resolved", "source", source, "split", split, "path", path)

		fileType := domain.DatasetTypeCSV
		if strings.HasSuffix(name, ".json") {
			fileType = domain.DatasetTypeJSON
		}
		samples, err := l.parse(data, fileType, mappingFor(source))
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", path, err)
		}
		return truncateSamples(samples, limit), nil
	}

	return nil, &domain.NotFoundError{Kind: "dataset", ID: source}
}

// LoadBytes parses uploaded dataset content.
func (l *Loader) LoadBytes(content []byte, fileType string) ([]domain.DatasetSample, error) {
	return l.parse(content, fileType, nil)
}

func mappingFor(source string) *columnMapping {
	if m, ok := datasetMappings[source]; ok {
		return &m
	}
	return nil
}

func (l *Loader) parse(content []byte, fileType string, mapping *columnMapping) ([]domain.DatasetSample, error) {
	switch fileType {
	case domain.DatasetTypeCSV:
		return parseCSV(content, mapping)
	case domain.DatasetTypeJSON:
		return parseJSON(content, mapping)
	default:
		return nil, &domain.ValidationError{Field: "file_type", Reason: fmt.Sprintf("unsupported type %q", fileType)}
	}
}

func parseCSV(content []byte, mapping *columnMapping) ([]domain.DatasetSample, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return nil, &domain.ValidationError{Field: "dataset", Reason: "no data rows"}
	}

	header := records[0]
	promptIdx, labelIdx := -1, -1
	if mapping != nil {
		for i, col := range header {
			if col == mapping.promptColumn {
				promptIdx = i
			}
			if col == mapping.labelColumn {
				labelIdx = i
			}
		}
	}
	if promptIdx < 0 {
		promptIdx = inferColumn(header, promptColumns)
	}
	if labelIdx < 0 {
		labelIdx = inferColumn(header, labelColumns)
	}
	if promptIdx < 0 || labelIdx < 0 {
		return nil, &domain.ValidationError{
			Field:  "dataset",
			Reason: fmt.Sprintf("could not infer columns from header %v", header),
		}
	}

	samples := make([]domain.DatasetSample, 0, len(records)-1)
	for i, row := range records[1:] {
		if promptIdx >= len(row) || labelIdx >= len(row) {
			continue
		}
		prompt := row[promptIdx]
		label := normalizeLabel(row[labelIdx])
		if prompt == "" || label == "" {
			continue
		}
		samples = append(samples, domain.DatasetSample{Prompt: prompt, ExpectedLabel: label, Index: i})
	}
	return samples, nil
}

func parseJSON(content []byte, mapping *columnMapping) ([]domain.DatasetSample, error) {
	parsed := gjson.ParseBytes(content)
	if !parsed.IsArray() {
		return nil, &domain.ValidationError{Field: "dataset", Reason: "expected a JSON array of objects"}
	}

	rows := parsed.Array()
	if len(rows) == 0 {
		return nil, &domain.ValidationError{Field: "dataset", Reason: "no data rows"}
	}

	promptKey, labelKey := "", ""
	if mapping != nil {
		promptKey, labelKey = mapping.promptColumn, mapping.labelColumn
	}
	if promptKey == "" || labelKey == "" {
		var keys []string
		rows[0].ForEach(func(k, _ gjson.Result) bool {
			keys = append(keys, k.String())
			return true
		})
		if promptKey == "" {
			promptKey = inferKey(keys, promptColumns)
		}
		if labelKey == "" {
			labelKey = inferKey(keys, labelColumns)
		}
	}
	if promptKey == "" || labelKey == "" {
		return nil, &domain.ValidationError{Field: "dataset", Reason: "could not infer prompt and label keys"}
	}

	samples := make([]domain.DatasetSample, 0, len(rows))
	for i, row := range rows {
		prompt := row.Get(promptKey).String()
		label := normalizeLabel(row.Get(labelKey).String())
		if prompt == "" || label == "" {
			continue
		}
		samples = append(samples, domain.DatasetSample{Prompt: prompt, ExpectedLabel: label, Index: i})
	}
	return samples, nil
}

func inferColumn(header []string, candidates []string) int {
	for i, col := range header {
		for _, c := range candidates {
			if strings.EqualFold(col, c) {
				return i
			}
		}
	}
	return -1
}

func inferKey(keys []string, candidates []string) string {
	for _, k := range keys {
		for _, c := range candidates {
			if strings.EqualFold(k, c) {
				return k
			}
		}
	}
	return ""
}

// normalizeLabel folds dataset-specific label vocabulary onto the two
// expected classes.
func normalizeLabel(label string) string {
	lower := strings.ToLower(strings.TrimSpace(label))
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "jailbreak"), strings.Contains(lower, "attack"), strings.Contains(lower, "malicious"):
		return domain.LabelJailbreak
	case strings.Contains(lower, "benign"), strings.Contains(lower, "safe"), strings.Contains(lower, "normal"):
		return domain.LabelBenign
	default:
		return domain.LabelBenign
	}
}

func truncateSamples(samples []domain.DatasetSample, limit int) []domain.DatasetSample {
	if limit > 0 && len(samples) > limit {
		return samples[:limit]
	}
	return samples
}
