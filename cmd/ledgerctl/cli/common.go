// Package cli implements the ledgerctl operational commands.
package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Mode enumerates supported execution strategies.
type Mode string

const (
	// ModeDry previews the changes without applying them.
	ModeDry Mode = "dry"
	// ModeApply persists after confirmation.
	ModeApply Mode = "apply"
)

// Exit codes shared by the commands.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitRejected = 10
)

// IO groups the streams and confirmation hook of a command.
type IO struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Stdin   io.Reader
	Confirm func(prompt string, r io.Reader, w io.Writer) (bool, error)
}

func (o *IO) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Confirm == nil {
		o.Confirm = defaultConfirm
	}
}

func parseMode(raw Mode) (Mode, error) {
	if raw == "" {
		return ModeDry, nil
	}
	mode := Mode(strings.ToLower(string(raw)))
	switch mode {
	case ModeDry, ModeApply:
		return mode, nil
	}
	return "", fmt.Errorf("invalid mode %q (expected dry or apply)", raw)
}

// readSource loads the input from an explicit reader, stdin ("-") or a file.
func readSource(source string, reader io.Reader, stdin io.Reader) ([]byte, error) {
	var data []byte
	var err error
	switch {
	case reader != nil:
		data, err = io.ReadAll(reader)
	case source == "-":
		if stdin == nil {
			return nil, errors.New("source - requires stdin")
		}
		data, err = io.ReadAll(stdin)
	case strings.TrimSpace(source) == "":
		return nil, errors.New("--source is required")
	default:
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(data), nil
}

func defaultConfirm(prompt string, r io.Reader, w io.Writer) (bool, error) {
	fmt.Fprintf(w, "%s Type YES to confirm: ", prompt)
	reader := bufio.NewReader(r)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}
