package i18n

import "net/http"

// Middleware negotiates the response language for every request: the
// "lang" query parameter wins over Accept-Language, and lang is the fallback.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chosen := Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), lang)
			w.Header().Set("Content-Language", chosen)
			ctx := WithLanguage(r.Context(), chosen)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
