package main

import "RecipeChat/internal/commands"

func main() {
	commands.Execute()
}
