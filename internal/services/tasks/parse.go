package tasks

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nicpaesk/killer-game/internal/model"
)

// defaultPool is used when a game is started without any tasks
var defaultPool = []string{
	"Get your target to say the word \"banana\"",
	"Get your target to hold your drink for you",
	"Get your target to take a photo of you",
	"Get your target to tell you the time",
	"Get your target to high-five you",
	"Get your target to lend you a pen",
	"Get your target to sing a line of any song",
	"Get your target to stand on one leg",
}

// Default returns a copy of the built-in task pool
func Default() []string {
	return append([]string(nil), defaultPool...)
}

// ParseLines splits newline-delimited text into trimmed, non-blank lines
func ParseLines(text string) []string {
	lines, _ := ReadLines(strings.NewReader(text))
	return lines
}

// ReadLines reads one entry per line, ignoring blank lines
func ReadLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// LoadFromFile reads a task list from a file (one task per line)
func LoadFromFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	lines, err := ReadLines(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ParseTasks validates a task list. At least one task is required.
func ParseTasks(lines []string) ([]string, error) {
	if len(lines) == 0 {
		return nil, model.ErrNoTasks
	}
	for _, task := range lines {
		if err := model.ValidateTask(task); err != nil {
			return nil, err
		}
	}
	return lines, nil
}

// ParsePlayers validates a roster of display names: at least two, each
// valid and unique within the game
func ParsePlayers(lines []string) ([]string, error) {
	if len(lines) < 2 {
		return nil, model.ErrTooFewPlayers
	}
	seen := make(map[string]struct{}, len(lines))
	for _, name := range lines {
		if err := model.ValidateName(name); err != nil {
			return nil, err
		}
		if _, ok := seen[name]; ok {
			return nil, model.ErrDuplicateName
		}
		seen[name] = struct{}{}
	}
	return lines, nil
}
