package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/app"
	_ "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/testing/guard"
)

func TestMainSkipsRuntimeInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}
