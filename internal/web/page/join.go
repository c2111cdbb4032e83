package page

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/nicpaesk/killer-game/internal/model"
)

// JoinData is everything the join page shows
type JoinData struct {
	Code    model.GameCode
	Status  model.GameStatus
	Players []model.RosterEntry
	JoinURL string
	QRPath  string
	Server  string
}

// Join renders the landing page for a join link
func Join(data JoinData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		code := templ.EscapeString(string(data.Code))
		if _, err := fmt.Fprintf(w, `<h1>Game <span class="code">%s</span></h1>
<p class="status" data-status="%s">%s</p>
`, code, templ.EscapeString(string(data.Status)), statusText(data.Status)); err != nil {
			return err
		}

		if _, err := io.WriteString(w, "<ul class=\"roster\">\n"); err != nil {
			return err
		}
		for _, p := range data.Players {
			if _, err := fmt.Fprintf(w, "<li class=\"player %s\">%s</li>\n",
				templ.EscapeString(string(p.Status)), templ.EscapeString(p.Name)); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</ul>\n"); err != nil {
			return err
		}

		switch data.Status {
		case model.GameStatusLobby:
			_, err := fmt.Fprintf(w, `<section class="join">
<p>Pick your name and a PIN from a terminal:</p>
<pre class="command">killer play %s --server %s</pre>
<img class="qr" src="%s" alt="Join link for %s">
<p class="link"><a href="%s">%s</a></p>
</section>
`, code, templ.EscapeString(data.Server), templ.EscapeString(data.QRPath), code,
				templ.EscapeString(data.JoinURL), templ.EscapeString(data.JoinURL))
			return err
		case model.GameStatusActive:
			_, err := fmt.Fprintf(w, `<section class="join">
<p>Joined already? Reclaim your name with your PIN:</p>
<pre class="command">killer play %s --server %s</pre>
</section>
`, code, templ.EscapeString(data.Server))
			return err
		default:
			_, err := fmt.Fprintf(w, "<p class=\"results-link\"><a href=\"/results/%s\">See the results</a></p>\n", code)
			return err
		}
	})
	return Layout("Game "+string(data.Code), body)
}

func statusText(s model.GameStatus) string {
	switch s {
	case model.GameStatusLobby:
		return "Waiting for players"
	case model.GameStatusActive:
		return "In progress"
	case model.GameStatusFinished:
		return "Finished"
	}
	return templ.EscapeString(string(s))
}
