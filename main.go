package main

import "github.com/review-tally/review-tally/cmd"

func main() {
	cmd.Execute()
}
