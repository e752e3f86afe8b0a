package main

import "github.com/outreach-portal/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}
