/*
Command-line tool for collecting block I/O request statistics of devices.

Usage:

	$ dmstat [<flags>] <subcommand> [<args> ...]

Use 'dmstat help' to see more details.
*/
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/dmstat/dmstat/cli"
)

// BuildVersion is set at link time.
var BuildVersion = "v0-unofficial"

func main() {
	app := cli.NewApp()
	kp := kingpin.New("dmstat", "dmstat - block I/O request statistics").Author("https://github.com/dmstat/dmstat")
	kp.Version(BuildVersion)

	app.Attach(kp)

	kingpin.MustParse(kp.Parse(os.Args[1:]))
}
