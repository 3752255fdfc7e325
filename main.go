package main

import "github.com/better-analytics/better-analytics-go/cmd"

func main() {
	cmd.Execute()
}
