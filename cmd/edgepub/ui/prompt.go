package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoInteraction is returned when a prompt is needed but the terminal is
// not interactive.
var ErrNoInteraction = errors.New("interactive terminal required")

// Confirm asks a yes/no question on stderr and reads the answer from stdin.
// bypassHint tells the user how to skip the prompt, e.g. "use --yes".
func Confirm(question, bypassHint string) (bool, error) {
	if !IsInteractive() {
		return false, fmt.Errorf("confirmation required (%s): %w", bypassHint, ErrNoInteraction)
	}
	return confirm(os.Stdin, os.Stderr, question)
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s %s %s ", AccentStyle.Render("?"), question, MutedStyle.Render("[y/N]"))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
