package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultChartTemplate is applied when a company is created with a template
// name that is empty or "standard".
const DefaultChartTemplate = "standard"

// ChartAccount is one account row of a chart-of-accounts template.
type ChartAccount struct {
	Code   string `mapstructure:"code"`
	Name   string `mapstructure:"name"`
	Type   string `mapstructure:"type"`
	Parent string `mapstructure:"parent"`
}

// ChartTemplate is a named starter chart of accounts.
type ChartTemplate struct {
	Name     string         `mapstructure:"name"`
	Accounts []ChartAccount `mapstructure:"accounts"`
}

type ChartConfig struct {
	Templates []ChartTemplate `mapstructure:"templates"`
}

// Template returns the template with the given name.
func (c ChartConfig) Template(name string) (ChartTemplate, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultChartTemplate
	}
	for _, tpl := range c.Templates {
		if strings.EqualFold(tpl.Name, name) {
			return tpl, true
		}
	}
	return ChartTemplate{}, false
}

func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Templates: []ChartTemplate{
			{
				Name: DefaultChartTemplate,
				Accounts: []ChartAccount{
					{Code: "1000", Name: "Assets", Type: "asset"},
					{Code: "1010", Name: "Cash", Type: "asset", Parent: "1000"},
					{Code: "1200", Name: "Accounts Receivable", Type: "asset", Parent: "1000"},
					{Code: "2000", Name: "Liabilities", Type: "liability"},
					{Code: "2010", Name: "Accounts Payable", Type: "liability", Parent: "2000"},
					{Code: "3000", Name: "Equity", Type: "equity"},
					{Code: "3010", Name: "Owner's Equity", Type: "equity", Parent: "3000"},
					{Code: "4000", Name: "Revenue", Type: "revenue"},
					{Code: "4100", Name: "Sales Revenue", Type: "revenue", Parent: "4000"},
					{Code: "5000", Name: "Expenses", Type: "expense"},
					{Code: "5100", Name: "Operating Expenses", Type: "expense", Parent: "5000"},
				},
			},
		},
	}
}

// ChartConfigHolder keeps the current chart templates and swaps them when
// chart.yml changes on disk.
type ChartConfigHolder struct {
	current atomic.Value // holds ChartConfig
}

// NewStaticChartConfigHolder returns a holder that never reloads.
func NewStaticChartConfigHolder(cfg ChartConfig) *ChartConfigHolder {
	holder := &ChartConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewChartConfigHolder(cfg Config, log *zap.Logger) (*ChartConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("chart.config")

	v := viper.New()

	v.SetConfigName("chart")
	v.SetConfigType("yml")
	if cfg.ChartConfigPath != "" {
		v.AddConfigPath(cfg.ChartConfigPath)
	}
	v.AddConfigPath("/etc/bookkeeper")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BOOKKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
		v.SetDefault("chart.templates", DefaultChartConfig().Templates)
	}

	var chart ChartConfig
	if err := v.UnmarshalKey("chart", &chart); err != nil {
		return nil, err
	}
	if err := validateChartConfig(chart); err != nil {
		return nil, err
	}

	holder := NewStaticChartConfigHolder(chart)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ChartConfig
		if err := v.UnmarshalKey("chart", &updated); err != nil {
			log.Warn("chart config reload failed", zap.Error(err))
			return
		}
		if err := validateChartConfig(updated); err != nil {
			log.Warn("invalid chart config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("chart config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ChartConfigHolder) Get() ChartConfig {
	return h.current.Load().(ChartConfig)
}

var validAccountTypes = map[string]struct{}{
	"asset":     {},
	"liability": {},
	"equity":    {},
	"revenue":   {},
	"expense":   {},
}

func validateChartConfig(cfg ChartConfig) error {
	if len(cfg.Templates) == 0 {
		return errors.New("chart.templates cannot be empty")
	}
	for _, tpl := range cfg.Templates {
		if strings.TrimSpace(tpl.Name) == "" {
			return errors.New("chart template name is required")
		}
		codes := make(map[string]struct{}, len(tpl.Accounts))
		for _, acc := range tpl.Accounts {
			code := strings.TrimSpace(acc.Code)
			if code == "" {
				return fmt.Errorf("chart template %q: account code is required", tpl.Name)
			}
			if _, dup := codes[code]; dup {
				return fmt.Errorf("chart template %q: duplicate account code %s", tpl.Name, code)
			}
			if _, ok := validAccountTypes[strings.ToLower(acc.Type)]; !ok {
				return fmt.Errorf("chart template %q: account %s has invalid type %q", tpl.Name, code, acc.Type)
			}
			// parents are created first, so they must be listed earlier
			if parent := strings.TrimSpace(acc.Parent); parent != "" {
				if _, ok := codes[parent]; !ok {
					return fmt.Errorf("chart template %q: account %s references parent %s before it is defined", tpl.Name, code, parent)
				}
			}
			codes[code] = struct{}{}
		}
	}
	return nil
}
