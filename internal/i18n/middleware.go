package i18n

import (
	"net/http"
	"slices"
)

const langCookieName = "portal_lang"

// Middleware injects a localizer into every request context. A "lang" query
// parameter switches the language for the browser and is remembered in a cookie;
// otherwise the configured lang is used.
func Middleware(lang string) func(http.Handler) http.Handler {
	fallback := NewLocalizer(lang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loc := fallback
			if q := r.URL.Query().Get("lang"); slices.Contains(Languages(), q) {
				http.SetCookie(w, &http.Cookie{
					Name:     langCookieName,
					Value:    q,
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
				})
				loc = NewLocalizer(q, lang)
			} else if c, err := r.Cookie(langCookieName); err == nil && slices.Contains(Languages(), c.Value) {
				loc = NewLocalizer(c.Value, lang)
			}
			ctx := WithLocalizer(r.Context(), loc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
