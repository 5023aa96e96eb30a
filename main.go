package main

import "github.com/DrZoddiak/ore-monitor/cmd"

func main() {
	cmd.Execute()
}
