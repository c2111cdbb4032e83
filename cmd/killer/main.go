package main

import "github.com/nicpaesk/killer-game/internal/cli"

func main() {
	cli.Execute()
}
