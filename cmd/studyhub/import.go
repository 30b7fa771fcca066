package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pavelanni/studyhub/internal/excel"
	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/store"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import question banks (JSON or XLSX) into the database",
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "studyhub.db", "SQLite database path")
	f.String("template", "", "Write an empty XLSX question bank to this path and exit")
	addLogFlags(cmd, "info")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if path := v.GetString("template"); path != "" {
		out, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create template: %w", err)
		}
		defer out.Close()
		if err := excel.WriteQuestionTemplate(out); err != nil {
			return fmt.Errorf("write template: %w", err)
		}
		slog.Info("wrote question template", "path", path)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("no question files given")
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return loadQuestions(db, args)
}

// loadQuestions imports each file once. A file whose content changed since
// its last import is skipped so stored question ids stay stable.
func loadQuestions(db *store.Store, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("questions file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" {
			slog.Warn("questions file changed since last import, skipping to keep question ids stable",
				"path", path)
			continue
		}

		questions, err := parseQuestions(path, data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, qi := range questions {
			_, err := db.InsertQuestion(model.Question{
				Code:        qi.Code,
				Year:        qi.Year,
				Type:        qi.Type,
				Content:     qi.Content,
				Options:     qi.Options,
				Answer:      qi.Answer,
				Explanation: qi.Explanation,
			})
			if err != nil {
				return fmt.Errorf("insert question from %s: %w", path, err)
			}
		}

		if err := db.SetImportedFileHash(path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
		slog.Info("imported questions", "path", path, "count", len(questions))
	}

	return nil
}

func parseQuestions(path string, data []byte) ([]model.QuestionImport, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return excel.ReadQuestions(bytes.NewReader(data))
	}
	var questions []model.QuestionImport
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, err
	}
	for i, q := range questions {
		if strings.TrimSpace(q.Content) == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, fmt.Errorf("question %d: content and answer are required", i+1)
		}
	}
	return questions, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
