// Command city-events scrapes city event listings into per-city spreadsheets
// and serves an HTTP trigger for on-demand runs.
package main

import "github.com/pfrederiksen/city-events/internal/cli"

func main() {
	cli.Execute()
}
