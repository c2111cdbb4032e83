package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicpaesk/killer-game/internal/api/request"
	"github.com/nicpaesk/killer-game/internal/api/response"
	"github.com/nicpaesk/killer-game/internal/services/summary"
	"github.com/nicpaesk/killer-game/internal/services/tasks"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game commands",
	}

	cmd.AddCommand(newGameCreateCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameSummaryCmd())
	cmd.AddCommand(newGameAssignmentsCmd())
	cmd.AddCommand(newGameQRCmd())

	return cmd
}

func newGameCreateCmd() *cobra.Command {
	var (
		players     []string
		playersFile string
		taskList    []string
		tasksFile   string
		noSave      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new game",
		Long: `Create a new game from a list of player names and tasks.

Players come from --player (repeatable or comma separated) or --players-file.
Tasks come from --task (repeatable) or --tasks-file, which is uploaded as is.
Files hold one entry per line; blank lines are ignored.

The creator token is saved to the token file so later commands can start
the game and view assignments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if playersFile != "" {
				fromFile, err := tasks.LoadFromFile(playersFile)
				if err != nil {
					return err
				}
				players = append(players, fromFile...)
			}
			if len(taskList) > 0 && tasksFile != "" {
				return errors.New("use --task or --tasks-file, not both")
			}

			var result response.CreateGameResponse
			if tasksFile != "" {
				f, err := os.Open(tasksFile)
				if err != nil {
					return fmt.Errorf("opening tasks file: %w", err)
				}
				defer func() { _ = f.Close() }()

				fields := map[string]string{request.FieldPlayers: strings.Join(players, "\n")}
				if err := client.PostMultipart("/api/v1/games", fields, request.FieldTasksFile, filepath.Base(tasksFile), f, &result); err != nil {
					return err
				}
			} else {
				req := request.CreateGameRequest{
					Players: strings.Join(players, "\n"),
					Tasks:   strings.Join(taskList, "\n"),
				}
				if err := client.Post("/api/v1/games", req, &result); err != nil {
					return err
				}
			}

			if !noSave {
				if err := cfg.SaveToken(result.CreatorToken); err != nil {
					return fmt.Errorf("saving creator token: %w", err)
				}
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&players, "player", nil, "Player name (repeatable)")
	cmd.Flags().StringVar(&playersFile, "players-file", "", "File with one player name per line")
	cmd.Flags().StringArrayVar(&taskList, "task", nil, "Task (repeatable)")
	cmd.Flags().StringVar(&tasksFile, "tasks-file", "", "File with one task per line")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the creator token")

	return cmd
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <code>",
		Short: "Get a game's status and players",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.GameState

			if err := client.Get(gamePath(args[0], ""), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameSummaryCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "summary <code>",
		Short: "Show the winner, kill history and kill counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := gamePath(args[0], "/summary")
			if session != "" {
				path += "?session=" + url.QueryEscape(session)
			}

			var result summary.Summary
			if err := NewClient(cfg.ServerURL, "").Get(path, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&session, "session", "", "Session token, to mark your own kills")

	return cmd
}

func newGameAssignmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assignments <code>",
		Short: "List every player's target and task (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				return errors.New("no creator token: pass --token or create the game from this machine")
			}

			var result response.AssignmentOverview
			if err := client.Get(gamePath(args[0], "/assignments"), &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameQRCmd() *cobra.Command {
	var (
		file string
		size int
	)

	cmd := &cobra.Command{
		Use:   "qr <code>",
		Short: "Save the join QR code as a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("%s?size=%d", gamePath(args[0], "/qr"), size)
			png, err := client.GetBytes(path)
			if err != nil {
				return err
			}

			if file == "" {
				file = strings.ToUpper(args[0]) + ".png"
			}
			if err := os.WriteFile(file, png, 0o644); err != nil {
				return fmt.Errorf("writing qr code: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("QR code saved to " + file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Output file (default <CODE>.png)")
	cmd.Flags().IntVar(&size, "size", 256, "Image size in pixels")

	return cmd
}

func gamePath(code, suffix string) string {
	return "/api/v1/games/" + url.PathEscape(strings.TrimSpace(code)) + suffix
}
