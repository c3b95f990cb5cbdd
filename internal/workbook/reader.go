// Package workbook reads the standardized input workbook and writes run
// results into tagged output folders.
package workbook

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MikeSquared-Agency/Prioritizer/internal/ahp"
	"github.com/MikeSquared-Agency/Prioritizer/internal/model"
	"github.com/MikeSquared-Agency/Prioritizer/internal/pipeline"
	"github.com/MikeSquared-Agency/Prioritizer/internal/scoring"
)

// Sheet names and column headers of the input workbook.
const (
	SheetScoring       = "scoring"
	SheetScoreRange    = "score_range"
	SheetRandomIndex   = "random_index"
	SheetRunParameters = "run_parameters"
	layerSheetPrefix   = "layer_"

	colScenario     = "Scenario"
	colLowFilter    = "Low Filter"
	colHighFilter   = "High Filter"
	colGlobalWeight = "Global Weights"
	colDirection    = "Direction"
	colMinScore     = "Min Score"
	colMaxScore     = "Max Score"
	colMatrixOrder  = "Priority Matrix Order"
	colAvgCI        = "Average Consistency Index"
)

// Workbook is the parsed content of one input workbook.
type Workbook struct {
	Input pipeline.Input
	// Parameters holds run_parameters and score_range values by key.
	Parameters map[string]string
	// RandomIndex is the optional average consistency index by matrix order.
	RandomIndex map[int]float64
	// CharacteristicLabel is the layer 0 category label, e.g. "Layer 0".
	CharacteristicLabel string
}

// Read opens and parses the workbook at path.
func Read(path string) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse extracts the input tables from an open workbook.
func Parse(f *excelize.File) (*Workbook, error) {
	wb := &Workbook{Parameters: make(map[string]string)}

	var layerSheets []string
	for _, name := range f.GetSheetList() {
		if strings.HasPrefix(strings.ToLower(name), layerSheetPrefix) {
			layerSheets = append(layerSheets, name)
		}
	}
	sort.Strings(layerSheets)
	if len(layerSheets) == 0 {
		return nil, model.DataErrorf(layerSheetPrefix+"*", "", "workbook has no rating sheets")
	}
	for _, name := range layerSheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		t, label, err := parseRatingSheet(name, rows)
		if err != nil {
			return nil, err
		}
		if t.Layer == model.LayerCharacteristic && wb.CharacteristicLabel == "" {
			wb.CharacteristicLabel = label
		}
		wb.Input.Ratings = append(wb.Input.Ratings, t)
	}
	if wb.CharacteristicLabel == "" {
		return nil, model.DataErrorf(layerSheetPrefix+"0", "", "workbook has no characteristic rating sheet")
	}

	rows, err := f.GetRows(SheetScoring)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SheetScoring, err)
	}
	if err := wb.parseScoring(rows); err != nil {
		return nil, err
	}

	if err := wb.parseOptional(f, SheetScoreRange, func(rows [][]string) error {
		return wb.parseKeyedRow(SheetScoreRange, rows, map[string]string{colMinScore: "min_score", colMaxScore: "max_score"})
	}); err != nil {
		return nil, err
	}
	if err := wb.parseOptional(f, SheetRunParameters, func(rows [][]string) error {
		return wb.parseKeyedRow(SheetRunParameters, rows, nil)
	}); err != nil {
		return nil, err
	}
	if err := wb.parseOptional(f, SheetRandomIndex, wb.parseRandomIndex); err != nil {
		return nil, err
	}
	return wb, nil
}

func (wb *Workbook) parseOptional(f *excelize.File, sheet string, parse func([][]string) error) error {
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		return nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read %s: %w", sheet, err)
	}
	return parse(rows)
}

// parseRatingSheet reads one layer_* sheet. The corner cell names the layer
// category followed by the parent path from the nearest parent upwards, e.g.
// "Layer 0/A Layer 1/A Layer 2".
func parseRatingSheet(sheet string, rows [][]string) (ahp.RatingTable, string, error) {
	if len(rows) < 2 || len(rows[0]) < 2 {
		return ahp.RatingTable{}, "", model.DataErrorf(sheet, "", "rating sheet needs a header row and at least one rating row")
	}
	parts := strings.Split(strings.TrimSpace(rows[0][0]), "/")
	label := strings.TrimSpace(parts[0])
	depth := len(parts) - 1
	if depth > 2 {
		return ahp.RatingTable{}, "", model.DataErrorf(sheet, "A1", "corner cell %q has more than two parents", rows[0][0])
	}
	path := make([]string, 0, depth)
	for i := len(parts) - 1; i >= 1; i-- {
		path = append(path, strings.TrimSpace(parts[i]))
	}

	labels := trimAll(rows[0][1:])
	n := len(labels)
	t := ahp.RatingTable{
		Name:    sheet,
		Layer:   model.Layer(2 - depth),
		Path:    path,
		Ratings: ahp.Ratings{Labels: labels},
	}

	data := nonEmptyRows(rows[1:])
	if len(data) == 1 && n > 1 {
		vec, err := parseCells(sheet, 2, data[0], n)
		if err != nil {
			return ahp.RatingTable{}, "", err
		}
		t.Ratings.Vector = vec
		return t, label, nil
	}
	// A lone child reads the same as a 1×1 matrix or a one-value vector;
	// keep both so either rating mode accepts it.
	if len(data) == 1 && n == 1 {
		vals, err := parseCells(sheet, 2, data[0], n)
		if err != nil {
			return ahp.RatingTable{}, "", err
		}
		if vals[0] == 0 {
			vals[0] = 1
		}
		t.Ratings.Vector = vals
		t.Ratings.Matrix = [][]float64{{1}}
		return t, label, nil
	}
	for i, row := range data {
		if i < n && strings.TrimSpace(row[0]) != labels[i] {
			return ahp.RatingTable{}, "", model.DataErrorf(sheet, fmt.Sprintf("A%d", i+2),
				"row label %q does not match column label %q", row[0], labels[i])
		}
		vals, err := parseCells(sheet, i+2, row, n)
		if err != nil {
			return ahp.RatingTable{}, "", err
		}
		t.Ratings.Matrix = append(t.Ratings.Matrix, vals)
	}
	return t, label, nil
}

// parseCells reads the n cells after the row label; blanks become 0.
func parseCells(sheet string, rowNum int, row []string, n int) ([]float64, error) {
	out := make([]float64, n)
	for j := 0; j < n; j++ {
		if j+1 >= len(row) {
			break
		}
		v, err := parseNumber(row[j+1])
		if err != nil {
			cell, _ := excelize.CoordinatesToCellName(j+2, rowNum)
			return nil, model.DataErrorf(sheet, cell, "%v", err)
		}
		if v != nil {
			out[j] = *v
		}
	}
	return out, nil
}

func (wb *Workbook) parseScoring(rows [][]string) error {
	if len(rows) < 2 {
		return model.DataErrorf(SheetScoring, "", "scoring sheet needs a header row and at least one data row")
	}
	header := trimAll(rows[0])
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, required := range []string{colScenario, wb.CharacteristicLabel, colLowFilter, colHighFilter} {
		if _, ok := col[required]; !ok {
			return model.DataErrorf(SheetScoring, "", "missing column %q", required)
		}
	}

	reserved := map[string]bool{
		colScenario: true, wb.CharacteristicLabel: true, colLowFilter: true,
		colHighFilter: true, colGlobalWeight: true, colDirection: true,
	}
	var optionCols []int
	for i, h := range header {
		if h != "" && !reserved[h] {
			optionCols = append(optionCols, i)
			wb.Input.Options = append(wb.Input.Options, model.Option(h))
		}
	}
	if len(optionCols) == 0 {
		return model.DataErrorf(SheetScoring, "", "no option columns")
	}

	charIdx := make(map[string]int)
	seenScenario := make(map[model.Scenario]bool)
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for r, row := range rows[1:] {
		rowNum := r + 2
		name := cell(row, wb.CharacteristicLabel)
		scenario := model.Scenario(cell(row, colScenario))
		if name == "" && scenario == "" {
			continue
		}
		if name == "" || scenario == "" {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum), "scenario and characteristic are required")
		}
		if !seenScenario[scenario] {
			seenScenario[scenario] = true
			wb.Input.Scenarios = append(wb.Input.Scenarios, scenario)
		}

		low, err := scoring.ParseLimit(cell(row, colLowFilter))
		if err != nil {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum), "low filter: %v", err)
		}
		high, err := scoring.ParseLimit(cell(row, colHighFilter))
		if err != nil {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum), "high filter: %v", err)
		}
		dir, err := scoring.ParseDirection(cell(row, colDirection))
		if err != nil {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum), "%v", err)
		}
		gw, err := parseNumber(cell(row, colGlobalWeight))
		if err != nil {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum), "global weight: %v", err)
		}

		filter := scoring.Filter{Low: low, High: high}
		i, ok := charIdx[name]
		if !ok {
			i = len(wb.Input.Characteristics)
			charIdx[name] = i
			wb.Input.Characteristics = append(wb.Input.Characteristics, scoring.Characteristic{
				Name:            name,
				Direction:       dir,
				Filter:          filter,
				ScenarioFilters: make(map[model.Scenario]scoring.Filter),
				GlobalWeight:    gw,
			})
		}
		c := &wb.Input.Characteristics[i]
		if c.Direction != dir || !sameWeight(c.GlobalWeight, gw) {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum),
				"characteristic %q changes direction or global weight between scenarios", name)
		}
		if _, dup := c.ScenarioFilters[scenario]; dup {
			return model.DataErrorf(SheetScoring, fmt.Sprintf("row %d", rowNum), "duplicate row for %s/%s", name, scenario)
		}
		c.ScenarioFilters[scenario] = filter

		for k, ci := range optionCols {
			raw := ""
			if ci < len(row) {
				raw = row[ci]
			}
			v, err := parseNumber(raw)
			if err != nil {
				ref, _ := excelize.CoordinatesToCellName(ci+1, rowNum)
				return model.DataErrorf(SheetScoring, ref, "%v", err)
			}
			wb.Input.Measurements = append(wb.Input.Measurements, model.Measurement{
				Option:         wb.Input.Options[k],
				Characteristic: name,
				Scenario:       scenario,
				Value:          v,
			})
		}
	}
	return nil
}

// parseKeyedRow reads a table whose header holds parameter names and whose
// first data row holds their values. rename maps headers to parameter keys;
// nil keeps the headers as keys.
func (wb *Workbook) parseKeyedRow(sheet string, rows [][]string, rename map[string]string) error {
	if len(rows) < 2 {
		return model.DataErrorf(sheet, "", "needs a header row and a value row")
	}
	for i, h := range rows[0] {
		h = strings.TrimSpace(h)
		if h == "" || i >= len(rows[1]) {
			continue
		}
		key := h
		if rename != nil {
			k, ok := rename[h]
			if !ok {
				continue
			}
			key = k
		}
		wb.Parameters[key] = strings.TrimSpace(rows[1][i])
	}
	return nil
}

func (wb *Workbook) parseRandomIndex(rows [][]string) error {
	if len(rows) < 2 {
		return nil
	}
	header := trimAll(rows[0])
	orderCol, ciCol := -1, -1
	for i, h := range header {
		switch h {
		case colMatrixOrder:
			orderCol = i
		case colAvgCI:
			ciCol = i
		}
	}
	if orderCol < 0 || ciCol < 0 {
		return model.DataErrorf(SheetRandomIndex, "", "needs %q and %q columns", colMatrixOrder, colAvgCI)
	}
	wb.RandomIndex = make(map[int]float64)
	for r, row := range rows[1:] {
		if orderCol >= len(row) || ciCol >= len(row) || strings.TrimSpace(row[orderCol]) == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(row[orderCol]))
		if err != nil {
			return model.DataErrorf(SheetRandomIndex, fmt.Sprintf("row %d", r+2), "matrix order %q is not an integer", row[orderCol])
		}
		ci, err := strconv.ParseFloat(strings.TrimSpace(row[ciCol]), 64)
		if err != nil {
			return model.DataErrorf(SheetRandomIndex, fmt.Sprintf("row %d", r+2), "consistency index %q is not a number", row[ciCol])
		}
		wb.RandomIndex[n] = ci
	}
	return nil
}

func sameWeight(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// parseNumber returns nil for a blank cell.
func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 == nil && err2 == nil && d != 0 {
			return finite(s, n/d)
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return finite(s, v)
}

func finite(s string, v float64) (*float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%q is not a finite number", s)
	}
	return &v, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

func nonEmptyRows(rows [][]string) [][]string {
	var out [][]string
	for _, r := range rows {
		for _, c := range r {
			if strings.TrimSpace(c) != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
