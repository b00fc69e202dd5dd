package cmd

import (
	"log"
	"os"
)

// Replaced by tests, so that a failing command does not exit the test binary.
var (
	logFatalln = log.Fatalln
	logFatalf  = log.Fatalf
	osExit     = os.Exit
)

func init() {
	log.SetPrefix("fileref: ")
	log.SetFlags(0)
}

// wrapFatalln reports the step which failed, with its cause if any, and exits 1
func wrapFatalln(step string, err error) {
	if err == nil {
		logFatalln(step)
		return
	}
	logFatalf("%s: %v", step, err)
}
