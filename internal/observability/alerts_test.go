package observability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertFile struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

// Every alert must reference a metric this package (or jobmetrics) exports.
func TestLedgerAlertRules(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	require.NoError(t, err)
	var file alertFile
	require.NoError(t, yaml.Unmarshal(raw, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "ledger", file.Groups[0].Name)

	want := map[string][2]string{
		"JournalRejectionsRising": {"warning", "ledger_journals_rejected_total"},
		"EventPostingFailures":    {"critical", "ledger_events_total"},
		"FXFallbackInUse":         {"warning", "ledger_fx_lookups_total"},
		"SidechannelDropping":     {"warning", "ledger_sidechannel_dropped_total"},
		"LedgerIntegrityFindings": {"critical", "ledger_integrity_findings"},
	}
	rules := file.Groups[0].Rules
	require.Len(t, rules, len(want))
	for _, rule := range rules {
		exp, ok := want[rule.Alert]
		require.True(t, ok, "unexpected alert %s", rule.Alert)
		require.Equal(t, exp[0], rule.Labels["severity"], rule.Alert)
		require.Contains(t, rule.Expr, exp[1], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
	}
}
