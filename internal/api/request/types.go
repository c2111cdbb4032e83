package request

// CreateGameRequest is the JSON body for creating a game. Both fields hold
// one entry per line; blank lines are ignored.
type CreateGameRequest struct {
	Players string `json:"players"`
	Tasks   string `json:"tasks"`
}

// Multipart form fields accepted by the create endpoint
const (
	FieldPlayers   = "players"
	FieldTasks     = "tasks"
	FieldTasksFile = "tasks_file"
)
