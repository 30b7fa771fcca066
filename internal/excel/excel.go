// Package excel reads question banks from and writes session reports to
// XLSX workbooks.
package excel

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pavelanni/studyhub/internal/model"
)

// Sheet is the worksheet read on import and written on export.
const Sheet = "Sheet1"

// Question bank columns, in order. Options are separated by newlines or "|".
var questionHeader = []string{"code", "year", "type", "content", "options", "answer", "explanation"}

var sessionHeader = []any{
	"owner", "session_id", "source", "start_time", "end_time",
	"total_questions", "questions_answered", "correct_count", "accuracy",
}

// ReadQuestions parses a question bank. The first row is a header and is
// skipped; rows without content or answer are reported as errors.
func ReadQuestions(r io.Reader) ([]model.QuestionImport, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]
	if slices.Contains(sheets, Sheet) {
		sheet = Sheet
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var questions []model.QuestionImport
	for i, row := range rows {
		if i == 0 || isBlank(row) {
			continue
		}
		q := model.QuestionImport{
			Code:        cell(row, 0),
			Year:        cell(row, 1),
			Type:        cell(row, 2),
			Content:     cell(row, 3),
			Options:     splitOptions(cell(row, 4)),
			Answer:      cell(row, 5),
			Explanation: cell(row, 6),
		}
		if q.Content == "" || q.Answer == "" {
			return nil, fmt.Errorf("row %d: content and answer are required", i+1)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// WriteQuestionTemplate writes an empty question bank with the header row.
func WriteQuestionTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(questionHeader))
	for i, h := range questionHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(Sheet, "A1", &header); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteSessions writes one row per exported session.
func WriteSessions(w io.Writer, results []model.SessionResult) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(Sheet, "A1", &sessionHeader); err != nil {
		return err
	}
	for i, res := range results {
		cellName, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		end := ""
		if res.EndTime != nil {
			end = res.EndTime.UTC().Format("2006-01-02 15:04:05")
		}
		row := []any{
			res.Owner,
			res.SessionID,
			string(res.Source),
			res.StartTime.UTC().Format("2006-01-02 15:04:05"),
			end,
			res.TotalQuestions,
			res.QuestionsAnswered,
			res.CorrectCount,
			res.Accuracy,
		}
		if err := f.SetSheetRow(Sheet, cellName, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f.Write(w)
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func splitOptions(raw string) []string {
	var out []string
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '|' }) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
