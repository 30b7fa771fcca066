package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "StudyHub" {
		t.Errorf("T(AppTitle) = %q, want 'StudyHub'", got)
	}
	if got := T(ctx, "Correct"); got != "Correct!" {
		t.Errorf("T(Correct) = %q, want 'Correct!'", got)
	}
}

func TestTranslateChinese(t *testing.T) {
	ctx := initLang(t, "zh")

	if got := T(ctx, "AppTitle"); got != "学习助手" {
		t.Errorf("T(AppTitle) = %q, want '学习助手'", got)
	}
	if got := T(ctx, "CannotVerify"); got != "暂时无法验证此答案，请稍后重试。" {
		t.Errorf("T(CannotVerify) = %q", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "QuestionsAnswered", 1); got != "1 question answered." {
		t.Errorf("Tp(QuestionsAnswered, 1) = %q, want '1 question answered.'", got)
	}
	if got := Tp(ctx, "QuestionsAnswered", 5); got != "5 questions answered." {
		t.Errorf("Tp(QuestionsAnswered, 5) = %q, want '5 questions answered.'", got)
	}

	zh := initLang(t, "zh")
	if got := Tp(zh, "QuestionsAnswered", 3); got != "已答 3 题。" {
		t.Errorf("Tp(QuestionsAnswered, 3) zh = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "CorrectAnswerIs", map[string]any{"Answer": "AC"})
	if got != "Correct answer: AC" {
		t.Errorf("Td(CorrectAnswerIs) = %q, want 'Correct answer: AC'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestUnsupportedLanguageFallsBack(t *testing.T) {
	ctx := initLang(t, "fr")

	if got := T(ctx, "AppTitle"); got != "StudyHub" {
		t.Errorf("T(AppTitle) = %q, want the default language", got)
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		query  string
		accept string
		want   string
	}{
		{"default", "", "", "en"},
		{"accept header", "", "zh-CN,zh;q=0.9,en;q=0.8", "zh"},
		{"query wins", "?lang=en", "zh-CN", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = Language(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if got != tt.want {
				t.Errorf("language = %q, want %q", got, tt.want)
			}
			if rec.Header().Get("Content-Language") != tt.want {
				t.Errorf("Content-Language = %q, want %q", rec.Header().Get("Content-Language"), tt.want)
			}
		})
	}
}
