package workbook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
)

// Output sheet names.
const (
	SheetLong            = "long"
	SheetPivoted         = "pivoted"
	SheetSummedAndRanked = "summed_and_ranked"
	SheetWeights         = "weights"
	SheetWeightsOverall  = "weights_overall"
	SheetConsistency     = "consistency"

	ResultFile = "results.xlsx"
	timeLayout = "2006_01_02-15_04_05"
)

// ResolvePath places a relative output path under root. Absolute paths and
// an empty root leave path unchanged.
func ResolvePath(root, path string) string {
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Writer saves results into a uniquely tagged run folder
// <root>/<path>/<version>_<timestamp>_<shortid>/. It is a pipeline.Sink.
type Writer struct {
	Root    string
	Path    string
	Version string
	// Source, when set, is copied into the run folder next to the results.
	Source string
	Logger *slog.Logger

	now func() time.Time
}

// RunDir returns the run folder for res.
func (w *Writer) RunDir(res *pipeline.Result) string {
	now := time.Now
	if w.now != nil {
		now = w.now
	}
	version := w.Version
	if version == "" {
		version = "v"
	}
	tag := fmt.Sprintf("%s_%s_%s", version, now().Format(timeLayout), strings.SplitN(res.ID.String(), "-", 2)[0])
	return filepath.Join(ResolvePath(w.Root, w.Path), tag)
}

// Save writes the result workbook, and a copy of the source workbook if
// configured, into a new run folder.
func (w *Writer) Save(_ context.Context, res *pipeline.Result) error {
	dir := w.RunDir(res)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run folder: %w", err)
	}
	out := filepath.Join(dir, ResultFile)
	if err := WriteResult(out, res); err != nil {
		return err
	}
	if w.Source != "" {
		if err := copyFile(w.Source, filepath.Join(dir, "input_"+filepath.Base(w.Source))); err != nil {
			return fmt.Errorf("copy input: %w", err)
		}
	}
	if w.Logger != nil {
		w.Logger.Info("results written", "run_id", res.ID, "path", out)
	}
	return nil
}

// WriteResult writes every result view into one workbook at path.
func WriteResult(path string, res *pipeline.Result) error {
	f, err := Build(res)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	return nil
}

// Build lays out every result view as one sheet of a new workbook.
func Build(res *pipeline.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	sheets := []struct {
		name   string
		header []any
		rows   [][]any
	}{
		{SheetLong, longHeader, longRows(res)},
		{SheetPivoted, pivotHeader(res), pivotRows(res)},
		{SheetSummedAndRanked, rankedHeader, rankedRows(res)},
		{SheetWeights, weightsHeader, weightsRows(res)},
		{SheetWeightsOverall, overallHeader, overallRows(res)},
		{SheetConsistency, consistencyHeader, consistencyRows(res)},
	}
	for i, s := range sheets {
		var err error
		if i == 0 {
			err = f.SetSheetName("Sheet1", s.name)
		} else {
			_, err = f.NewSheet(s.name)
		}
		if err == nil {
			err = writeTable(f, s.name, s.header, s.rows)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("write %s: %w", s.name, err)
		}
	}
	return f, nil
}

func writeTable(f *excelize.File, sheet string, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

var (
	longHeader        = []any{"Scenario", "View", "Group", "Characteristic", "Option", "Raw", "Score", "Final Score", "Excluded", "Reason", "Priority Weight", "Weighted Score"}
	rankedHeader      = []any{"Scenario", "View", "Option", "Total", "Rank", "Bin", "Coverage", "Excluded"}
	weightsHeader     = []any{"Stakeholder", "Group", "Characteristic", "Stakeholder Weight", "Group Weight", "Characteristic Weight", "Priority Weight", "Final Priority Weight"}
	overallHeader     = []any{"Characteristic", "Final Priority Weight"}
	consistencyHeader = []any{"Node", "Label", "Priority Score", "Priority Weight", "Lambda Max", "Consistency Index", "Consistency Ratio"}
)

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func longRows(res *pipeline.Result) [][]any {
	out := make([][]any, 0, len(res.Long))
	for _, r := range res.Long {
		out = append(out, []any{
			string(r.Scenario), r.View, r.Group, r.Characteristic, string(r.Option),
			optional(r.Raw), r.Score, r.Final, r.Excluded, r.Reason, r.Weight, r.Weighted,
		})
	}
	return out
}

func pivotHeader(res *pipeline.Result) []any {
	h := []any{"View", "Scenario", "Option"}
	for _, c := range res.Pivoted.Characteristics {
		h = append(h, c)
	}
	return h
}

func pivotRows(res *pipeline.Result) [][]any {
	out := make([][]any, 0, len(res.Pivoted.Rows))
	for _, r := range res.Pivoted.Rows {
		line := []any{r.View, string(r.Scenario), string(r.Option)}
		for _, v := range r.Values {
			line = append(line, optional(v))
		}
		out = append(out, line)
	}
	return out
}

func rankedRows(res *pipeline.Result) [][]any {
	out := make([][]any, 0, len(res.SummedAndRanked))
	for _, r := range res.SummedAndRanked {
		out = append(out, []any{string(r.Scenario), r.View, string(r.Option), r.Total, r.Rank, r.Bin, r.Coverage, r.Excluded})
	}
	return out
}

func weightsRows(res *pipeline.Result) [][]any {
	out := make([][]any, 0, len(res.Weights))
	for _, w := range res.Weights {
		out = append(out, []any{w.Stakeholder, w.Group, w.Characteristic, w.StakeholderWeight, w.GroupWeight, w.CharacteristicWeight, w.PerStakeholder, w.Overall})
	}
	return out
}

func overallRows(res *pipeline.Result) [][]any {
	out := make([][]any, 0, len(res.OverallWeights))
	for _, w := range res.OverallWeights {
		out = append(out, []any{w.Characteristic, w.Weight})
	}
	return out
}

func consistencyRows(res *pipeline.Result) [][]any {
	var out [][]any
	for _, d := range res.Consistency {
		for i, l := range d.Labels {
			out = append(out, []any{d.Node, l, d.Scores[i], d.Weights[i], d.LambdaMax, d.ConsistencyIndex, d.ConsistencyRatio})
		}
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
