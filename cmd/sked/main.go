package main

import "github.com/skedtool/sked/cmd/sked/cmd"

func main() {
	cmd.Execute()
}
