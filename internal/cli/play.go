package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/realtime"
)

const playHelp = `Commands:
  claim <name> <pin>    take an unclaimed player
  reclaim <name> <pin>  recover your player on this device
  cancel                release your player (lobby only)
  start                 start the game (needs the creator token)
  kill                  tell your target they were eliminated
  confirm | deny        answer a kill claim against you
  help                  show this help
  quit                  disconnect`

func newPlayCmd() *cobra.Command {
	var name, pin string

	cmd := &cobra.Command{
		Use:   "play <code>",
		Short: "Play a game interactively over the real-time channel",
		Long: `Connect to a game's room and play from the terminal.

Events from the server are printed as they arrive. Commands are read one
per line from stdin:

` + playHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			session, err := dialPlay(ctx, cfg.ServerURL, model.GameCode(args[0]).Normalize(), cfg.Token, cmd.OutOrStdout(), cfg.Output)
			if err != nil {
				return err
			}
			defer session.Close()

			if stdinIsTerminal() {
				fmt.Fprintln(cmd.OutOrStdout(), playHelp)
			}
			if name != "" {
				if err := session.Exec("claim " + name + " " + pin); err != nil {
					return err
				}
			}
			return session.Run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Claim this player on connect")
	cmd.Flags().StringVar(&pin, "pin", "", "PIN for --name")

	return cmd
}

// wsURL turns the server's HTTP base URL into its websocket endpoint
func wsURL(serverURL string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(serverURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// playSession is one interactive connection to a game room
type playSession struct {
	conn         *websocket.Conn
	code         model.GameCode
	creatorToken string
	out          io.Writer
	format       string

	writeMu sync.Mutex
	outMu   sync.Mutex

	mu            sync.Mutex
	sessionToken  string
	pendingKiller model.PlayerID

	done chan struct{}
}

func dialPlay(ctx context.Context, serverURL string, code model.GameCode, creatorToken string, out io.Writer, format string) (*playSession, error) {
	endpoint, err := wsURL(serverURL)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	s := &playSession{
		conn:         conn,
		code:         code,
		creatorToken: creatorToken,
		out:          out,
		format:       format,
		done:         make(chan struct{}),
	}
	go s.readLoop()

	if err := s.send(&realtime.JoinRoomRequest{GameCode: code}); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

// Run executes commands from in until quit, EOF, ctx cancellation or the
// server closing the connection
func (s *playSession) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.done:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := s.Exec(line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				s.printf("! %s\n", err)
			}
		}
	}
}

var errQuit = errors.New("quit")

// Exec runs one command line
func (s *playSession) Exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "claim", "reclaim":
		if len(fields) != 3 {
			return fmt.Errorf("usage: %s <name> <pin>", fields[0])
		}
		if strings.EqualFold(fields[0], "claim") {
			return s.send(&realtime.ClaimIdentityRequest{GameCode: s.code, Name: fields[1], PIN: fields[2]})
		}
		return s.send(&realtime.ReclaimIdentityRequest{GameCode: s.code, Name: fields[1], PIN: fields[2]})
	case "cancel":
		return s.send(&realtime.CancelIdentityRequest{GameCode: s.code, SessionToken: s.token()})
	case "start":
		if s.creatorToken == "" {
			return errors.New("no creator token: pass --token")
		}
		return s.send(&realtime.StartGameRequest{GameCode: s.code, CreatorToken: s.creatorToken})
	case "kill":
		return s.send(&realtime.ClaimKillRequest{GameCode: s.code, SessionToken: s.token()})
	case "confirm", "deny":
		s.mu.Lock()
		killer := s.pendingKiller
		s.pendingKiller = ""
		s.mu.Unlock()
		if killer == "" {
			return errors.New("no kill claim to answer")
		}
		return s.send(&realtime.ResolveKillRequest{
			SessionToken: s.token(),
			KillerID:     killer,
			Confirmed:    strings.EqualFold(fields[0], "confirm"),
		})
	case "help":
		s.printf("%s\n", playHelp)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
}

// Close disconnects from the server
func (s *playSession) Close() {
	s.writeMu.Lock()
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	_ = s.conn.Close()
	<-s.done
}

func (s *playSession) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionToken
}

func (s *playSession) send(req realtime.Request) error {
	data, err := realtime.EncodeRequest(req)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type inboundEvent struct {
	Type     model.EventType `json:"type"`
	GameCode model.GameCode  `json:"game_code"`
	Payload  json.RawMessage `json:"payload"`
}

func (s *playSession) readLoop() {
	defer close(s.done)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var e inboundEvent
		if err := json.Unmarshal(data, &e); err != nil {
			continue
		}
		s.track(e)
		s.print(e, data)
	}
}

// track keeps the state later commands need
func (s *playSession) track(e inboundEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Type {
	case model.EventIdentityConfirmed, model.EventIdentityReclaimed:
		var p model.IdentityPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			s.sessionToken = p.SessionToken
		}
	case model.EventIdentityCanceled, model.EventSessionInvalidated:
		s.sessionToken = ""
		s.pendingKiller = ""
	case model.EventKillChallenge:
		var p model.KillChallengePayload
		if json.Unmarshal(e.Payload, &p) == nil {
			s.pendingKiller = p.KillerID
		}
	}
}

func (s *playSession) print(e inboundEvent, raw []byte) {
	if s.format == "json" {
		s.printf("%s\n", raw)
		return
	}
	s.printf("%s\n", describeEvent(e))
}

func (s *playSession) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// describeEvent renders an event as one human readable line
func describeEvent(e inboundEvent) string {
	switch e.Type {
	case model.EventRoster:
		var p model.RosterPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			names := make([]string, len(p.Players))
			for i, pl := range p.Players {
				names[i] = fmt.Sprintf("%s (%s)", pl.Name, pl.Status)
			}
			return fmt.Sprintf("[roster] %s: %s", p.Status, strings.Join(names, ", "))
		}
	case model.EventIdentityConfirmed, model.EventIdentityReclaimed:
		var p model.IdentityPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			return fmt.Sprintf("[%s] you are %s", e.Type, p.Name)
		}
	case model.EventAssignment, model.EventNewTarget:
		var p model.AssignmentPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			if p.TargetName == "" {
				return fmt.Sprintf("[%s] you have no target", e.Type)
			}
			return fmt.Sprintf("[%s] target: %s, task: %s", e.Type, p.TargetName, p.Task)
		}
	case model.EventKillChallenge:
		var p model.KillChallengePayload
		if json.Unmarshal(e.Payload, &p) == nil {
			return fmt.Sprintf("[kill_challenge] %s says they got you with %q. confirm or deny?", p.KillerName, p.Task)
		}
	case model.EventGameOver:
		var p model.GameOverPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			return fmt.Sprintf("[game_over] winner: %s", p.WinnerName)
		}
	case model.EventError:
		var p model.ErrorPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			return fmt.Sprintf("[error] %s", p.Message)
		}
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Payload)
}

// stdinIsTerminal reports whether commands come from an interactive terminal
func stdinIsTerminal() bool {
	fi, err := os.Stdin.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
