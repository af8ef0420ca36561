package ui

import (
	"fmt"
	"io"
	"os"
)

const banner = `
  ┌─┐┌─┐┌┬┐┬┌─┐┌┐┌  ┌─┐┌─┐┌─┐┌─┐┬─┐
  ├─┤│   │ ││ ││││  ├─┘├─┤│  ├┤ ├┬┘
  ┴ ┴└─┘ ┴ ┴└─┘┘└┘  ┴  ┴ ┴└─┘└─┘┴└─
`

// Output is where terminal helpers write; tests may replace it
var Output io.Writer = os.Stdout

var (
	quietMode bool
	noColor   bool
)

// SetQuietMode suppresses everything except errors
func SetQuietMode(quiet bool) { quietMode = quiet }

// SetNoColor disables ANSI colors
func SetNoColor(disable bool) { noColor = disable }

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

func colorize(colorString string) func(string) string {
	return func(text string) string {
		if noColor {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

// PrintBanner prints the banner
func PrintBanner() {
	if quietMode {
		return
	}
	fmt.Fprint(Output, Cyan(banner))
}

// PrintError prints an error message in red; it is never suppressed
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		fmt.Fprintln(Output, Red(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(Output, Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	if quietMode {
		return
	}
	fmt.Fprintln(Output, Green(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	if quietMode {
		return
	}
	fmt.Fprintf(Output, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if quietMode {
		return
	}
	if len(args) > 0 {
		fmt.Fprintln(Output, Yellow(msg+": "+fmt.Sprintf("%v", args[0])))
		return
	}
	fmt.Fprintln(Output, Yellow(msg))
}
