package main

import "go.airavate.in/auth/apps/authd/cmd"

func main() {
	cmd.Execute()
}
