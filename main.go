package main

import "github.com/codewithmutahir/timeclock/cmd"

func main() {
	cmd.Execute()
}
