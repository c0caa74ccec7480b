package coa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultChartHasPostingAccounts(t *testing.T) {
	chart := Default()
	for _, code := range []string{"1010", "1200", "1300", "2100", "2200", "2300", "4000"} {
		require.True(t, chart.Exists(code), code)
	}
	inv, ok := chart.Lookup("1200")
	require.True(t, ok)
	require.Equal(t, AccountTypeAsset, inv.Type)
	require.False(t, chart.Exists("9999"))
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte("accounts:\n  - {code: \"1000\", name: Cash, type: ASSET}\n  - {code: \"1000\", name: Again, type: ASSET}\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownType(t *testing.T) {
	_, err := Parse([]byte("accounts:\n  - {code: \"1000\", name: Cash, type: STUFF}\n"))
	require.Error(t, err)
}

func TestAllIsSorted(t *testing.T) {
	all := Default().All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].Code, all[i].Code)
	}
}
