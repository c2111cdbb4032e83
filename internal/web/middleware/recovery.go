package middleware

import (
	"log/slog"
	"net/http"

	"github.com/nicpaesk/killer-game/internal/middleware"
	"github.com/nicpaesk/killer-game/internal/web/page"
)

// Recovery creates panic recovery middleware for the web pages
// Returns an HTML error page on panic
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, webPanicHandler)
}

func webPanicHandler(w http.ResponseWriter, r *http.Request, _ any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = page.Error(http.StatusInternalServerError, "Something went wrong. Please try again later.").Render(r.Context(), w)
}
