package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	appI18n "github.com/pavelanni/studyhub/internal/i18n"
	"github.com/pavelanni/studyhub/internal/model"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show practice sessions merged from this device and the backend",
		RunE:  runHistory,
	}
	addClientFlags(cmd)
	cmd.Flags().Bool("json", false, "Print sessions as JSON")
	addLogFlags(cmd, "warn")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, err := withLanguage(cmd.Context(), v.GetString("lang"))
	if err != nil {
		return err
	}
	env, err := newEngine(ctx, v)
	if err != nil {
		return err
	}
	defer env.close()

	sessions := env.engine.SessionHistory(ctx)
	if v.GetBool("json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if sessions == nil {
			sessions = []model.AnswerSession{}
		}
		return enc.Encode(sessions)
	}
	return printSessions(ctx, cmd.OutOrStdout(), sessions)
}

func printSessions(ctx context.Context, w io.Writer, sessions []model.AnswerSession) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, appI18n.T(ctx, "HistoryEmpty"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSOURCE\tANSWERED\tCORRECT\tACCURACY\tSTATUS")
	for _, s := range sessions {
		status := "active"
		if s.EndTime != nil {
			status = "ended " + s.EndTime.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%.1f%%\t%s\n",
			s.StartTime.Local().Format(time.DateTime),
			s.Source,
			s.QuestionsAnswered, s.TotalQuestions,
			s.CorrectCount,
			model.Accuracy(s.CorrectCount, s.QuestionsAnswered),
			status,
		)
	}
	return tw.Flush()
}
