package e2e_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nicpaesk/killer-game/internal/api"
	"github.com/nicpaesk/killer-game/internal/factory"
	"github.com/nicpaesk/killer-game/internal/model"
	"github.com/nicpaesk/killer-game/internal/services/identity"
	"github.com/nicpaesk/killer-game/internal/testutil"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
	workDir    string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "killer-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/killer")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	dir := t.TempDir()
	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(dir, "creator_token"),
		workDir:    dir,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Dir = r.workDir
	cmd.Env = append(os.Environ(), "KILLER_TOKEN=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serverURL := "http://" + listener.Addr().String()

	logger := testutil.NopLogger()
	app, err := factory.New(context.Background(), factory.Config{
		Logger:         logger,
		StorageType:    factory.StorageTypeSQLite,
		SQLitePath:     filepath.Join(t.TempDir(), "killer.db"),
		IdentityConfig: identity.Config{BcryptCost: bcrypt.MinCost},
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:         logger,
		BaseURL:        serverURL,
		Storage:        app.Storage,
		GameController: app.GameController,
		SummaryService: app.SummaryService,
		Registry:       app.Registry,
		WSHandler:      app.WSHandler,
	})
	server := api.NewServer(router, api.DefaultServerConfig(), logger)

	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// Response types for JSON parsing
type createResponse struct {
	Code         string   `json:"code"`
	CreatorToken string   `json:"creator_token"`
	JoinURL      string   `json:"join_url"`
	Players      []string `json:"players"`
	TaskCount    int      `json:"task_count"`
}

type gameResponse struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Players []struct {
		Name   string `json:"name"`
		Status string `json:"status"`
	} `json:"players"`
}

type overviewResponse struct {
	Status      string `json:"status"`
	SingleCycle bool   `json:"single_cycle"`
	Entries     []struct {
		Name   string `json:"name"`
		Target string `json:"target"`
		Task   string `json:"task"`
	} `json:"entries"`
}

type summaryResponse struct {
	Status     string `json:"status"`
	Winner     string `json:"winner"`
	You        string `json:"you"`
	KillCounts []struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	} `json:"kill_counts"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func createGame(t *testing.T, cli *cliRunner) createResponse {
	t.Helper()

	output, err := cli.run("game", "create",
		"--player", "Alice,Bob", "--player", "Charlie",
		"--task", "hand them a spoon", "--task", "make them say banana")
	require.NoError(t, err, "output: %s", output)

	var resp createResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	return resp
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Storage)
}

func TestCLI_CreateAndGetGame(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	created := createGame(t, cli)

	assert.Len(t, created.Code, 6)
	assert.Equal(t, []string{"Alice", "Bob", "Charlie"}, created.Players)
	assert.Equal(t, 2, created.TaskCount)
	assert.Equal(t, ts.addr+"/join/"+created.Code, created.JoinURL)

	// Creator token saved for later commands
	saved, err := os.ReadFile(cli.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, created.CreatorToken, string(saved))

	output, err := cli.run("game", "get", strings.ToLower(created.Code))
	require.NoError(t, err, "output: %s", output)

	var game gameResponse
	require.NoError(t, json.Unmarshal([]byte(output), &game))
	assert.Equal(t, created.Code, game.Code)
	assert.Equal(t, "lobby", game.Status)
	assert.Len(t, game.Players, 3)
}

func TestCLI_CreateFromFiles(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	playersFile := filepath.Join(cli.workDir, "players.txt")
	tasksFile := filepath.Join(cli.workDir, "tasks.txt")
	require.NoError(t, os.WriteFile(playersFile, []byte("Alice\n\nBob\n"), 0o600))
	require.NoError(t, os.WriteFile(tasksFile, []byte("steal a chip\n   \nborrow a pen\nwave\n"), 0o600))

	output, err := cli.run("game", "create", "--players-file", playersFile, "--tasks-file", tasksFile)
	require.NoError(t, err, "output: %s", output)

	var resp createResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, []string{"Alice", "Bob"}, resp.Players)
	assert.Equal(t, 3, resp.TaskCount)

	// Both task sources at once is rejected
	output, err = cli.run("game", "create", "--player", "Alice,Bob", "--task", "wave", "--tasks-file", tasksFile)
	assert.Error(t, err)
	assert.Contains(t, output, "not both")
}

func TestCLI_AssignmentsAndSummary(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	created := createGame(t, cli)
	code := model.GameCode(created.Code)
	ctx := context.Background()

	// Players join and the game starts through the services
	tokens := map[string]string{}
	for _, name := range created.Players {
		sess, err := ts.app.IdentityService.Claim(ctx, code, name, "1234")
		require.NoError(t, err)
		tokens[name] = sess.Token
	}
	_, err := ts.app.GameController.StartGame(ctx, code, created.CreatorToken)
	require.NoError(t, err)

	output, err := cli.run("game", "assignments", created.Code)
	require.NoError(t, err, "output: %s", output)

	var overview overviewResponse
	require.NoError(t, json.Unmarshal([]byte(output), &overview))
	assert.Equal(t, "active", overview.Status)
	assert.True(t, overview.SingleCycle)
	require.Len(t, overview.Entries, 3)
	for _, e := range overview.Entries {
		assert.NotEmpty(t, e.Target)
		assert.NotEmpty(t, e.Task)
	}

	output, err = cli.run("game", "summary", created.Code, "--session", tokens["Bob"])
	require.NoError(t, err, "output: %s", output)

	var sum summaryResponse
	require.NoError(t, json.Unmarshal([]byte(output), &sum))
	assert.Equal(t, "active", sum.Status)
	assert.Empty(t, sum.Winner)
	assert.Equal(t, "Bob", sum.You)
	assert.Empty(t, sum.KillCounts)
}

func TestCLI_QRCode(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	created := createGame(t, cli)

	file := filepath.Join(cli.workDir, "join.png")
	output, err := cli.run("game", "qr", created.Code, "--file", file)
	require.NoError(t, err, "output: %s", output)

	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Contains(t, msg.Message, file)

	png, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))
}

func TestCLI_ErrorHandling(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Unknown game
	output, err := cli.run("game", "get", "ZZZZZZ")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "not found")

	// Too few players
	output, err = cli.run("game", "create", "--player", "Alice", "--task", "wave")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "at least two")

	// Assignments without a creator token
	output, err = cli.run("game", "assignments", "ZZZZZZ")
	assert.Error(t, err)
	assert.Contains(t, strings.ToLower(output), "no creator token")
}
