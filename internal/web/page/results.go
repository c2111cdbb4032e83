package page

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/nicpaesk/killer-game/internal/services/summary"
)

// Results renders a game's winner, kill history and leaderboard
func Results(sum *summary.Summary) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, "<h1>Results for <span class=\"code\">%s</span></h1>\n",
			templ.EscapeString(string(sum.Code))); err != nil {
			return err
		}

		var err error
		if sum.Winner != "" {
			_, err = fmt.Fprintf(w, "<p class=\"winner\">%s wins!</p>\n", templ.EscapeString(sum.Winner))
		} else {
			_, err = io.WriteString(w, "<p class=\"winner pending\">No winner yet</p>\n")
		}
		if err != nil {
			return err
		}

		if _, err := io.WriteString(w, "<h2>Kills</h2>\n<ol class=\"kills\">\n"); err != nil {
			return err
		}
		for _, k := range sum.Kills {
			class := "kill"
			if k.IsMine {
				class += " mine"
			}
			if _, err := fmt.Fprintf(w, "<li class=\"%s\"><time datetime=\"%s\">%s</time> %s eliminated %s: %s</li>\n",
				class,
				k.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
				k.Timestamp.UTC().Format("15:04"),
				templ.EscapeString(k.KillerName),
				templ.EscapeString(k.VictimName),
				templ.EscapeString(k.Task)); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, "</ol>\n<h2>Leaderboard</h2>\n<table class=\"counts\">\n"); err != nil {
			return err
		}
		for _, c := range sum.KillCounts {
			class := "count"
			if c.Name == sum.You {
				class += " you"
			}
			if _, err := fmt.Fprintf(w, "<tr class=\"%s\"><td class=\"name\">%s</td><td class=\"n\">%d</td></tr>\n",
				class, templ.EscapeString(c.Name), c.Count); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</table>\n")
		return err
	})
	return Layout("Results "+string(sum.Code), body)
}
