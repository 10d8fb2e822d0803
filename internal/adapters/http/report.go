package httpadapter

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/product-classifier/internal/core/domain"
)

const (
	summarySheet   = "Summary"
	confusionSheet = "Confusion matrix"
	perClassSheet  = "Per class"
)

// writeEvaluationWorkbook renders a finished model's stats as an xlsx workbook.
// The confusion matrix sheet has real categories as rows and predicted categories as columns.
func writeEvaluationWorkbook(w io.Writer, model *domain.ClassificationModel) error {
	if !model.Stats.Complete() {
		return domain.WrapError(domain.ErrModelIncomplete, "build report", fmt.Errorf("model %s has no evaluation stats", model.ID))
	}
	stats := model.Stats

	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	endDate := ""
	if model.EndDate != nil {
		endDate = model.EndDate.UTC().Format("2006-01-02 15:04:05")
	}
	summary := [][]any{
		{"Model id", model.ID},
		{"Name", model.Name},
		{"File", model.FileName},
		{"Start date", model.StartDate.UTC().Format("2006-01-02 15:04:05")},
		{"End date", endDate},
		{"Classes", stats.ConfusionMatrix.NumberOfClasses},
		{"Micro accuracy", stats.MicroAccuracy},
		{"Macro accuracy", stats.MacroAccuracy},
		{"Log loss", stats.LogLoss},
	}
	for i, row := range summary {
		if err := f.SetSheetRow(summarySheet, cell(1, i+1), &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", cell(1, len(summary)), header); err != nil {
		return fmt.Errorf("style summary: %w", err)
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 40); err != nil {
		return fmt.Errorf("size summary columns: %w", err)
	}

	if _, err := f.NewSheet(confusionSheet); err != nil {
		return fmt.Errorf("create confusion sheet: %w", err)
	}
	if err := writeConfusionSheet(f, stats.ConfusionMatrix, header); err != nil {
		return err
	}

	if _, err := f.NewSheet(perClassSheet); err != nil {
		return fmt.Errorf("create per-class sheet: %w", err)
	}
	if err := writePerClassSheet(f, stats.ConfusionMatrix, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeConfusionSheet(f *excelize.File, matrix *domain.ConfusionMatrix, header int) error {
	classes := matrixClasses(matrix)
	position := make(map[int]int, len(classes))
	for i, c := range classes {
		position[c] = i + 2
	}

	if err := f.SetCellValue(confusionSheet, "A1", "real \\ predicted"); err != nil {
		return fmt.Errorf("write confusion corner: %w", err)
	}
	for _, c := range classes {
		if err := f.SetCellValue(confusionSheet, cell(position[c], 1), c); err != nil {
			return fmt.Errorf("write confusion header: %w", err)
		}
		if err := f.SetCellValue(confusionSheet, cell(1, position[c]), c); err != nil {
			return fmt.Errorf("write confusion header: %w", err)
		}
	}
	for _, count := range matrix.Counts {
		if err := f.SetCellValue(confusionSheet, cell(position[count.PredictedClass], position[count.RealClass]), count.Count); err != nil {
			return fmt.Errorf("write confusion count: %w", err)
		}
	}
	last := len(classes) + 1
	if err := f.SetCellStyle(confusionSheet, "A1", cell(last, 1), header); err != nil {
		return fmt.Errorf("style confusion header: %w", err)
	}
	if err := f.SetCellStyle(confusionSheet, "A1", cell(1, last), header); err != nil {
		return fmt.Errorf("style confusion header: %w", err)
	}
	return nil
}

func writePerClassSheet(f *excelize.File, matrix *domain.ConfusionMatrix, header int) error {
	precision := scoresByClass(matrix.PerClassPrecision)
	recall := scoresByClass(matrix.PerClassRecall)

	if err := f.SetSheetRow(perClassSheet, "A1", &[]any{"Category", "Precision", "Recall"}); err != nil {
		return fmt.Errorf("write per-class header: %w", err)
	}
	for i, c := range matrixClasses(matrix) {
		row := []any{c, precision[c], recall[c]}
		if err := f.SetSheetRow(perClassSheet, cell(1, i+2), &row); err != nil {
			return fmt.Errorf("write per-class row: %w", err)
		}
	}
	if err := f.SetCellStyle(perClassSheet, "A1", "C1", header); err != nil {
		return fmt.Errorf("style per-class header: %w", err)
	}
	return nil
}

// matrixClasses lists every category id named by the matrix in ascending order.
func matrixClasses(matrix *domain.ConfusionMatrix) []int {
	seen := make(map[int]struct{})
	for _, c := range matrix.Counts {
		seen[c.RealClass] = struct{}{}
		seen[c.PredictedClass] = struct{}{}
	}
	for _, s := range matrix.PerClassPrecision {
		seen[s.Class] = struct{}{}
	}
	for _, s := range matrix.PerClassRecall {
		seen[s.Class] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

func scoresByClass(scores []domain.PerClassScore) map[int]float64 {
	out := make(map[int]float64, len(scores))
	for _, s := range scores {
		out[s.Class] = s.Score
	}
	return out
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
