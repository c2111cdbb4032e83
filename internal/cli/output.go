package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nicpaesk/killer-game/internal/api/response"
	"github.com/nicpaesk/killer-game/internal/services/summary"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to stdout
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.CreateGameResponse:
		o.printCreated(v)
	case response.GameState:
		o.printGameState(v)
	case response.AssignmentOverview:
		o.printOverview(v)
	case summary.Summary:
		o.printSummary(v)
	case response.Health:
		o.printHealth(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printCreated(c response.CreateGameResponse) {
	fmt.Fprintf(o.w, "Game: %s\n", c.Code)
	fmt.Fprintf(o.w, "Join: %s\n", c.JoinURL)
	fmt.Fprintf(o.w, "Creator token: %s\n", c.CreatorToken)
	fmt.Fprintf(o.w, "Players (%d): %s\n", len(c.Players), strings.Join(c.Players, ", "))
	fmt.Fprintf(o.w, "Tasks: %d\n", c.TaskCount)
}

func (o *Output) printGameState(g response.GameState) {
	fmt.Fprintf(o.w, "Game: %s\n", g.Code)
	fmt.Fprintf(o.w, "Status: %s\n", g.Status)
	fmt.Fprintf(o.w, "Alive: %d/%d\n", g.Alive, len(g.Players))
	for _, p := range g.Players {
		fmt.Fprintf(o.w, "  - %s (%s)\n", p.Name, p.Status)
	}
}

func (o *Output) printOverview(ov response.AssignmentOverview) {
	fmt.Fprintf(o.w, "Game: %s (%s)\n", ov.Code, ov.Status)
	for _, e := range ov.Entries {
		switch {
		case e.Target != "":
			fmt.Fprintf(o.w, "  %s -> %s: %s\n", e.Name, e.Target, e.Task)
		default:
			fmt.Fprintf(o.w, "  %s (%s)\n", e.Name, e.Status)
		}
	}
	if ov.Status != "lobby" {
		fmt.Fprintf(o.w, "Single cycle: %t\n", ov.SingleCycle)
	}
}

func (o *Output) printSummary(s summary.Summary) {
	fmt.Fprintf(o.w, "Game: %s (%s)\n", s.Code, s.Status)
	if s.Winner != "" {
		fmt.Fprintf(o.w, "Winner: %s\n", s.Winner)
	}

	if len(s.Kills) > 0 {
		fmt.Fprintln(o.w, "\nKills:")
		for _, k := range s.Kills {
			mine := ""
			if k.IsMine {
				mine = " *"
			}
			fmt.Fprintf(o.w, "  %s  %s eliminated %s (%s)%s\n",
				k.Timestamp.Format("15:04:05"), k.KillerName, k.VictimName, k.Task, mine)
		}
	}

	if len(s.KillCounts) > 0 {
		fmt.Fprintln(o.w, "\nKill counts:")
		for _, c := range s.KillCounts {
			fmt.Fprintf(o.w, "  %s: %d\n", c.Name, c.Count)
		}
	}
}

func (o *Output) printHealth(h response.Health) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Storage != "" {
		fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	}
	fmt.Fprintf(o.w, "Rooms: %d\n", h.Rooms)
}
