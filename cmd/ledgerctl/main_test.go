package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/cmd/ledgerctl/cli"
)

func TestRunUsage(t *testing.T) {
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	require.Equal(t, cli.ExitOK, run(context.Background(), []string{"help"}, stdout, stderr))
	require.Contains(t, stdout.String(), "events backfill")

	stderr.Reset()
	require.Equal(t, cli.ExitFailure, run(context.Background(), nil, stdout, stderr))
	require.Contains(t, stderr.String(), "usage: ledgerctl")
}

func TestRunUnknownCommand(t *testing.T) {
	stderr := new(bytes.Buffer)
	require.Equal(t, cli.ExitFailure, run(context.Background(), []string{"fx", "export"}, new(bytes.Buffer), stderr))
	require.Contains(t, stderr.String(), "usage: ledgerctl")
}
