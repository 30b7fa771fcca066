package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"

	"github.com/pavelanni/studyhub/internal/handler"
	appI18n "github.com/pavelanni/studyhub/internal/i18n"
	"github.com/pavelanni/studyhub/internal/kv"
	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/store"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    model.FilterSpec
		wantErr bool
	}{
		{"empty clears", nil, model.FilterSpec{}, false},
		{"lists", []string{"year=2023,2022", "type=single"}, model.FilterSpec{Years: []string{"2022", "2023"}, Types: []string{"single"}}, false},
		{"keyword", []string{"keyword=tcp"}, model.FilterSpec{Keyword: "tcp"}, false},
		{"missing value", []string{"year"}, model.FilterSpec{}, true},
		{"unknown key", []string{"topic=net"}, model.FilterSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilter(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFilter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("parseFilter() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSplitSelection(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"B"}, []string{"B"}},
		{[]string{"A", "C"}, []string{"A", "C"}},
		{[]string{"A,C"}, []string{"A", "C"}},
		{[]string{"ac"}, []string{"a", "c"}},
		{[]string{"True"}, []string{"True"}},
	}
	for _, tt := range tests {
		if got := splitSelection(tt.args); !slices.Equal(got, tt.want) {
			t.Errorf("splitSelection(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestPositionArg(t *testing.T) {
	if n, err := positionArg([]string{"3"}, 5); err != nil || n != 3 {
		t.Errorf("positionArg(3) = %d, %v", n, err)
	}
	for _, args := range [][]string{nil, {"0"}, {"6"}, {"x"}} {
		if _, err := positionArg(args, 5); err == nil {
			t.Errorf("positionArg(%v) should fail", args)
		}
	}
}

func TestResolveIdentityRemembersClientID(t *testing.T) {
	ctx := context.Background()
	base := kv.NewMemory()

	first, err := resolveIdentity(ctx, base, "", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := resolveIdentity(ctx, base, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if first.ClientSessionID == "" || first != second {
		t.Errorf("client id not remembered: %+v vs %+v", first, second)
	}

	tok, err := handler.IssueToken("secret", "u1", false, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := resolveIdentity(ctx, base, tok, "")
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != "u1" || id.Owner() != "user:u1" {
		t.Errorf("unexpected identity from token: %+v", id)
	}
	if _, err := resolveIdentity(ctx, base, "not-a-token", ""); err == nil {
		t.Error("expected error for malformed token")
	}
}

func TestLoadQuestionsOnce(t *testing.T) {
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	path := filepath.Join(t.TempDir(), "bank.json")
	data := `[{"code":"2022-01","year":"2022","type":"single","content":"Pick B","options":["A. a","B. b"],"answer":"B"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := loadQuestions(db, []string{path}); err != nil {
			t.Fatalf("loadQuestions: %v", err)
		}
	}
	count, err := db.QuestionCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("question count = %d, want 1", count)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"code":"x","content":"no answer"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := loadQuestions(db, []string{bad}); err == nil {
		t.Error("expected error for question without answer")
	}
}

func TestPrintSessionsEmpty(t *testing.T) {
	ctx, err := withLanguage(context.Background(), "en")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := printSessions(ctx, &buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No practice sessions yet.") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

// newBackend starts an in-process backend with three single-choice
// questions whose answer is B.
func newBackend(t *testing.T) string {
	t.Helper()
	if err := appI18n.Init("en"); err != nil {
		t.Fatal(err)
	}
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	for _, code := range []string{"q1", "q2", "q3"} {
		if _, err := db.InsertQuestion(model.Question{
			Code: code, Year: "2022", Type: "single",
			Content: "content of " + code, Options: []string{"A. a", "B. b"}, Answer: "B",
		}); err != nil {
			t.Fatal(err)
		}
	}
	r := chi.NewRouter()
	r.Use(appI18n.Middleware("en"))
	handler.New(db, nil, model.ServerConfig{AllowAnonymous: true}).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL
}

func runREPL(t *testing.T, server, input string) string {
	t.Helper()
	ctx, err := withLanguage(context.Background(), "en")
	if err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.Set("server", server)
	v.Set("kv", "memory")
	v.Set("client-id", "c1")
	v.Set("timeout", 5*time.Second)

	env, err := newEngine(ctx, v)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	defer env.close()

	var out bytes.Buffer
	r := &repl{
		e:         env.engine,
		out:       &out,
		mode:      model.ModeNormal,
		online:    env.online,
		pageSize:  2,
		refreshed: make(chan error, 1),
	}
	if err := r.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.run(ctx, strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := env.engine.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return out.String()
}

func TestPracticeSession(t *testing.T) {
	server := newBackend(t)

	out := runREPL(t, server, "answer B\nnext\nanswer A\npage 2\nbogus\nquit\n")

	for _, want := range []string{
		"Question 1 of 3 (page 1/2)",
		"content of q1",
		"Correct!",
		"1 question answered.",
		"Question 2 of 3 (page 1/2)",
		"Incorrect.",
		"Correct answer: B",
		"2 questions answered.",
		"    3. q3",
		"Unknown command.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "(checked offline against cached data)") {
		t.Error("answers should be judged by the backend")
	}
}

func TestPracticeOffline(t *testing.T) {
	out := runREPL(t, "", "next\nanswer B\nquit\n")

	if !strings.Contains(out, "Question 2 of 25") {
		t.Errorf("expected fallback navigation of 25 questions\n%s", out)
	}
	if !strings.Contains(out, "This answer cannot be verified right now.") {
		t.Errorf("expected unresolvable answer offline\n%s", out)
	}
}
