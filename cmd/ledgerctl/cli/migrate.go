package cli

import (
	"fmt"
	"strconv"
)

// SchemaMigrator applies and rolls back schema migrations.
type SchemaMigrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
}

// Migrate runs "up", "down N" or "version" against m.
func Migrate(m SchemaMigrator, args []string, opts IO) int {
	opts.defaults()
	if len(args) == 0 {
		fmt.Fprintln(opts.Stderr, "migrate: expected up, down N or version")
		return ExitFailure
	}
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil {
			fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
			return ExitFailure
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				fmt.Fprintf(opts.Stderr, "migrate: invalid step count %q\n", args[1])
				return ExitFailure
			}
			steps = n
		}
		ok, err := opts.Confirm(fmt.Sprintf("Roll back %d migration(s)?", steps), opts.Stdin, opts.Stdout)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "migrate: confirmation failed: %v\n", err)
			return ExitFailure
		}
		if !ok {
			fmt.Fprintln(opts.Stderr, "migrate: cancelled by user")
			return ExitFailure
		}
		if err := m.Down(steps); err != nil {
			fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
			return ExitFailure
		}
	case "version":
	default:
		fmt.Fprintf(opts.Stderr, "migrate: unknown command %q\n", args[0])
		return ExitFailure
	}
	version, dirty, err := m.Version()
	if err != nil {
		fmt.Fprintf(opts.Stderr, "migrate: %v\n", err)
		return ExitFailure
	}
	fmt.Fprintf(opts.Stdout, "schema version %d (dirty=%t)\n", version, dirty)
	return ExitOK
}
