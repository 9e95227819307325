package terminal

// SGR sequences used by the console.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"

	FgDarkGray    = "\033[1;30m"
	FgBrightRed   = "\033[1;31m"
	FgBrightGreen = "\033[1;32m"
	FgYellow      = "\033[1;33m"
	FgBrightCyan  = "\033[1;36m"
	FgWhite       = "\033[1;37m"
)

// ClearScreen sends the ANSI clear-screen sequence and homes the cursor.
func ClearScreen() string {
	return "\033[2J\033[1;1H"
}

// ColorTerm reports whether a terminal type understands ANSI colors.
func ColorTerm(termType string) bool {
	switch termType {
	case "", "dumb", "unknown":
		return false
	}
	return true
}
