package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/studyhub/internal/events"
	appI18n "github.com/pavelanni/studyhub/internal/i18n"
	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/practice"
)

const closeTimeout = 10 * time.Second

func practiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Practice questions interactively",
		RunE:  runPractice,
	}
	addClientFlags(cmd)
	f := cmd.Flags()
	f.StringP("mode", "m", string(model.ModeNormal), "Practice mode (normal, wrong, favorites)")
	f.StringSlice("year", nil, "Filter by year (repeatable)")
	f.StringSlice("type", nil, "Filter by question type (repeatable)")
	f.String("keyword", "", "Filter by keyword")
	f.String("search", "", "Free-text search")
	f.Int("page-size", 20, "Questions per page in the jump panel")
	addLogFlags(cmd, "warn")
	return cmd
}

func runPractice(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	mode := model.Mode(v.GetString("mode"))
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", practice.ErrInvalidMode, mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, err := withLanguage(ctx, v.GetString("lang"))
	if err != nil {
		return err
	}

	env, err := newEngine(ctx, v)
	if err != nil {
		return err
	}
	defer env.close()

	r := &repl{
		e:        env.engine,
		out:      cmd.OutOrStdout(),
		mode:     mode,
		online:   env.online,
		pageSize: v.GetInt("page-size"),
		filters: model.FilterSpec{
			Years:   v.GetStringSlice("year"),
			Types:   v.GetStringSlice("type"),
			Keyword: v.GetString("keyword"),
			Search:  v.GetString("search"),
		}.Normalize(),
		refreshed: make(chan error, 1),
	}
	unsubscribe := env.engine.Bus().Subscribe(events.SessionEnded, func(events.Event) {
		r.println(appI18n.T(ctx, "SessionEnded"))
	})
	defer unsubscribe()

	// Ending the session flushes pending wrong-question removals, so it runs
	// even after an interrupt.
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		if err := env.engine.Close(closeCtx); err != nil {
			slog.Warn("session close incomplete", "error", err)
		}
	}()

	if err := r.start(ctx); err != nil {
		return err
	}
	return r.run(ctx, cmd.InOrStdin())
}

// repl drives one practice session from line commands.
type repl struct {
	e         *practice.Engine
	out       io.Writer
	mode      model.Mode
	online    bool
	filters   model.FilterSpec
	pageSize  int
	nav       practice.Navigation
	current   int64
	refreshed chan error
}

func (r *repl) println(a ...any) {
	fmt.Fprintln(r.out, a...)
}

func (r *repl) start(ctx context.Context) error {
	if r.online {
		if err := r.e.Sync(ctx); err != nil {
			slog.Warn("could not sync wrong questions and favorites", "error", err)
		}
	}
	id, err := r.e.Start(ctx, r.filters, r.mode.Source())
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	total := 0
	if sess, ok, err := r.e.Sessions().Current(ctx); err == nil && ok {
		total = sess.TotalQuestions
	}
	r.println(appI18n.Td(ctx, "SessionStarted", map[string]any{"ID": id, "Total": total}))

	if r.mode == model.ModeNormal && r.online {
		if _, err := r.e.Refresh(ctx, r.filters); err != nil {
			slog.Warn("question list unavailable, using fallback navigation", "error", err)
		}
	}
	return r.moveTo(ctx, 0, nil)
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(r.out, "> ")
		select {
		case <-ctx.Done():
			r.println()
			return nil
		case err := <-r.refreshed:
			if err != nil && !errors.Is(err, practice.ErrStaleResponse) {
				slog.Warn("filter refresh failed", "error", err)
			}
			r.println()
			if err := r.moveTo(ctx, 0, nil); err != nil {
				return err
			}
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.exec(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the user asked to quit.
func (r *repl) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "answer", "a", "fav", "f":
		if r.current == 0 {
			r.println(appI18n.T(ctx, "Loading"))
			return false, nil
		}
	}

	switch cmd {
	case "quit", "q", "exit":
		return true, nil
	case "help", "h", "?":
		r.println(appI18n.T(ctx, "PracticeHelp"))
	case "next", "n":
		ref, ok := r.nav.Next()
		if !ok {
			r.println(appI18n.T(ctx, "NoMoreQuestions"))
			return false, nil
		}
		idx := r.nav.Index + 1
		return false, r.moveTo(ctx, ref.ID, &idx)
	case "prev", "p":
		ref, ok := r.nav.Prev()
		if !ok {
			r.println(appI18n.T(ctx, "NoMoreQuestions"))
			return false, nil
		}
		idx := r.nav.Index - 1
		return false, r.moveTo(ctx, ref.ID, &idx)
	case "goto", "g":
		pos, err := positionArg(args, r.nav.Total)
		if err != nil {
			r.println(appI18n.T(ctx, "ErrBadRequest"))
			return false, nil
		}
		idx := pos - 1
		return false, r.moveTo(ctx, r.nav.Questions[idx].ID, &idx)
	case "page":
		r.showPage(ctx, args)
	case "answer", "a":
		r.answer(ctx, args)
	case "fav", "f":
		fav, err := r.e.ToggleFavorite(ctx, r.current)
		if err != nil {
			slog.Warn("favorite toggle failed", "question_id", r.current, "error", err)
			r.println(appI18n.T(ctx, "ErrInternal"))
			return false, nil
		}
		if fav {
			r.println(appI18n.T(ctx, "FavoriteAdded"))
		} else {
			r.println(appI18n.T(ctx, "FavoriteRemoved"))
		}
	case "filter":
		return false, r.filter(ctx, args)
	case "stats":
		r.showStats(ctx)
	case "wrong":
		entries, err := r.e.Wrong().Entries(ctx)
		if err != nil {
			return false, err
		}
		r.println(appI18n.Tp(ctx, "WrongQuestions", len(entries)))
		for _, w := range entries {
			r.println(fmt.Sprintf("  %s  %s (%s -> %s)", w.Code, truncate(w.Content, 50), w.SubmittedAnswer, w.CorrectAnswer))
		}
	case "end":
		if err := r.e.EndSession(ctx); err != nil {
			slog.Warn("session end incomplete", "error", err)
		}
	default:
		r.println(appI18n.T(ctx, "UnknownCommand"))
	}
	return false, nil
}

// moveTo rebuilds navigation around id (0 for the list start) and shows the
// question there.
func (r *repl) moveTo(ctx context.Context, id int64, idx *int) error {
	nav, err := r.e.Navigate(ctx, practice.NavRequest{
		QuestionID: id,
		Index:      idx,
		Source:     r.mode.Source(),
		Filters:    r.filters,
		PageSize:   r.pageSize,
	})
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	r.nav = nav
	if nav.Loading {
		r.println(appI18n.T(ctx, "Loading"))
		return nil
	}
	ref, _ := nav.Current()
	r.current = ref.ID
	r.showQuestion(ctx)
	return nil
}

func (r *repl) showQuestion(ctx context.Context) {
	r.println(appI18n.Td(ctx, "QuestionPosition", map[string]any{
		"Position": r.nav.Index + 1,
		"Total":    r.nav.Total,
		"Page":     r.nav.Page,
		"Pages":    r.nav.PageCount(),
	}))
	q, err := r.e.Question(ctx, r.current)
	if err != nil {
		slog.Warn("question unavailable", "question_id", r.current, "error", err)
		r.println(fmt.Sprintf("#%d", r.current))
		return
	}
	header := q.Code
	if q.Year != "" || q.Type != "" {
		header = fmt.Sprintf("%s (%s %s)", q.Code, q.Year, q.Type)
	}
	r.println(strings.TrimSpace(header))
	r.println(q.Content)
	for _, opt := range q.Options {
		r.println("  " + opt)
	}
	if h, err := r.e.History().Load(ctx, r.mode); err == nil {
		if rec, ok := h.Record(q.ID); ok {
			r.println(fmt.Sprintf("[%s] %s", rec.SubmittedAnswer, verdict(ctx, rec.IsCorrect)))
		}
	}
}

func (r *repl) showPage(ctx context.Context, args []string) {
	page := r.nav.Page
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > r.nav.PageCount() {
			r.println(appI18n.T(ctx, "ErrBadRequest"))
			return
		}
		page = n
	}
	start := (page - 1) * r.nav.PageSize
	for i, ref := range r.nav.PageItems(page) {
		marker := " "
		if start+i == r.nav.Index {
			marker = "*"
		}
		label := ref.Code
		if label == "" {
			label = "#" + strconv.FormatInt(ref.ID, 10)
		}
		r.println(fmt.Sprintf("%s %3d. %s", marker, start+i+1, label))
	}
}

func (r *repl) answer(ctx context.Context, args []string) {
	res, err := r.e.Submit(ctx, r.current, splitSelection(args), r.mode)
	switch {
	case errors.Is(err, practice.ErrUnresolvable):
		r.println(appI18n.T(ctx, "CannotVerify"))
		return
	case errors.Is(err, practice.ErrEmptyAnswer):
		r.println(appI18n.T(ctx, "ErrBadRequest"))
		return
	case err != nil:
		slog.Error("submit failed", "question_id", r.current, "error", err)
		r.println(appI18n.T(ctx, "ErrInternal"))
		return
	}

	r.println(verdict(ctx, res.IsCorrect))
	if !res.IsCorrect && res.CorrectAnswer != "" {
		r.println(appI18n.Td(ctx, "CorrectAnswerIs", map[string]any{"Answer": res.CorrectAnswer}))
	}
	if res.Explanation != "" {
		r.println(res.Explanation)
	}
	if res.JudgedBy != practice.JudgedRemote {
		r.println(appI18n.T(ctx, "JudgedLocally"))
	}
	if sess, ok, err := r.e.Sessions().Current(ctx); err == nil && ok {
		r.println(appI18n.Tp(ctx, "QuestionsAnswered", sess.QuestionsAnswered))
	}
}

// filter replaces the filters and starts a new session over them. Online in
// normal mode the cached list is dropped and a debounced refresh is queued;
// the refreshed list is shown when it arrives.
func (r *repl) filter(ctx context.Context, args []string) error {
	f, err := parseFilter(args)
	if err != nil {
		r.println(appI18n.T(ctx, "ErrBadRequest"))
		return nil
	}
	r.filters = f
	if err := r.e.EndSession(ctx); err != nil {
		slog.Warn("session end incomplete", "error", err)
	}
	id, err := r.e.Start(ctx, r.filters, r.mode.Source())
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	r.println(appI18n.Td(ctx, "SessionStarted", map[string]any{"ID": id, "Total": r.sessionTotal(ctx)}))

	if r.mode != model.ModeNormal || !r.online {
		return r.moveTo(ctx, 0, nil)
	}
	if err := r.e.Navigator().Invalidate(ctx); err != nil {
		slog.Warn("could not drop cached question list", "error", err)
	}
	r.println(appI18n.T(ctx, "Loading"))
	r.e.QueueRefresh(r.filters, func(_ model.FilteredQuestionList, err error) {
		select {
		case r.refreshed <- err:
		default:
		}
	})
	return nil
}

func (r *repl) sessionTotal(ctx context.Context) int {
	if sess, ok, err := r.e.Sessions().Current(ctx); err == nil && ok {
		return sess.TotalQuestions
	}
	return 0
}

func (r *repl) showStats(ctx context.Context) {
	st, err := r.e.Stats(ctx, r.mode)
	if err != nil {
		slog.Warn("stats unavailable", "error", err)
		return
	}
	r.println(appI18n.Tp(ctx, "QuestionsAnswered", st.Answered) + " " +
		appI18n.Td(ctx, "Accuracy", map[string]any{"Accuracy": fmt.Sprintf("%.1f", st.Accuracy)}))
}

func verdict(ctx context.Context, correct bool) string {
	if correct {
		return appI18n.T(ctx, "Correct")
	}
	return appI18n.T(ctx, "Incorrect")
}

func positionArg(args []string, total int) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one position")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, err
	}
	if n < 1 || n > total {
		return 0, fmt.Errorf("position %d out of range 1..%d", n, total)
	}
	return n, nil
}

// splitSelection accepts "A C", "A,C" and "AC" for multi-select answers.
// Only runs of option letters A-J are split.
func splitSelection(args []string) []string {
	var out []string
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			part = strings.TrimSpace(part)
			if len(part) > 1 && isOptionLetters(part) {
				for _, c := range part {
					out = append(out, string(c))
				}
				continue
			}
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func isOptionLetters(s string) bool {
	for _, c := range strings.ToUpper(s) {
		if c < 'A' || c > 'J' {
			return false
		}
	}
	return true
}

// parseFilter reads key=value pairs. An empty argument list clears filters.
func parseFilter(args []string) (model.FilterSpec, error) {
	var f model.FilterSpec
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return f, fmt.Errorf("expected key=value, got %q", arg)
		}
		switch strings.ToLower(key) {
		case "year":
			f.Years = append(f.Years, strings.Split(value, ",")...)
		case "type":
			f.Types = append(f.Types, strings.Split(value, ",")...)
		case "keyword":
			f.Keyword = value
		case "search":
			f.Search = value
		default:
			return f, fmt.Errorf("unknown filter %q", key)
		}
	}
	return f.Normalize(), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
