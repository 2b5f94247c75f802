package signer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// Prompter abstracts the interactive terminal so mnemonic recovery can be
// exercised in tests without a TTY.
type Prompter interface {
	// ReadSecret prompts for a line without echoing the input.
	ReadSecret(prompt string) (string, error)
	// ReadLine prompts for a plain echoed line.
	ReadLine(prompt string) (string, error)
}

// TerminalPrompter reads from the process TTY. Prompts are written to
// stderr so they never mix with command output.
type TerminalPrompter struct{}

func (TerminalPrompter) ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func (TerminalPrompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
