package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDefaultChartConfigIsValid(t *testing.T) {
	cfg := DefaultChartConfig()
	require.NoError(t, validateChartConfig(cfg))

	tpl, ok := cfg.Template("")
	require.True(t, ok)
	require.Equal(t, DefaultChartTemplate, tpl.Name)

	_, ok = cfg.Template("does-not-exist")
	require.False(t, ok)
}

func TestValidateChartConfigRejectsForwardParent(t *testing.T) {
	cfg := ChartConfig{Templates: []ChartTemplate{{
		Name: "bad",
		Accounts: []ChartAccount{
			{Code: "1010", Name: "Cash", Type: "asset", Parent: "1000"},
			{Code: "1000", Name: "Assets", Type: "asset"},
		},
	}}}
	require.Error(t, validateChartConfig(cfg))
}

func TestValidateChartConfigRejectsUnknownType(t *testing.T) {
	cfg := ChartConfig{Templates: []ChartTemplate{{
		Name:     "bad",
		Accounts: []ChartAccount{{Code: "1", Name: "X", Type: "income"}},
	}}}
	require.Error(t, validateChartConfig(cfg))
}

func TestNewChartConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`chart:
  templates:
    - name: retail
      accounts:
        - code: "1010"
          name: Till
          type: asset
        - code: "4100"
          name: Shop Sales
          type: revenue
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.yml"), content, 0o600))

	holder, err := NewChartConfigHolder(Config{ChartConfigPath: dir}, zap.NewNop())
	require.NoError(t, err)

	tpl, ok := holder.Get().Template("retail")
	require.True(t, ok)
	require.Len(t, tpl.Accounts, 2)
	require.Equal(t, "Till", tpl.Accounts[0].Name)
}

func TestNewChartConfigHolderFallsBackToDefaults(t *testing.T) {
	holder, err := NewChartConfigHolder(Config{ChartConfigPath: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)

	_, ok := holder.Get().Template(DefaultChartTemplate)
	require.True(t, ok)
}
