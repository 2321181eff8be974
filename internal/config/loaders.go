package config

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Veraticus/conciliador/internal/commission"
	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/nfe"
	"github.com/Veraticus/conciliador/internal/reconcile"
	"github.com/spf13/viper"
)

// Defaults applied before the config file is read.
const (
	DefaultDatabasePath = "$HOME/.local/share/conciliador/conciliador.db"
	DefaultExportDir    = "."
	DefaultTokenFile    = "$HOME/.config/conciliador/sheets-token.json"
)

// SetDefaults registers default values for every key the application reads.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("reconcile.missing_xml_divergent", true)
	v.SetDefault("commission.default_rate", 0.0)
	v.SetDefault("movement.sheet", "")
	v.SetDefault("export.dir", DefaultExportDir)
	v.SetDefault("sheets.token_file", DefaultTokenFile)
}

// DatabasePath returns the expanded database location.
func DatabasePath() string {
	p := viper.GetString("database.path")
	if p == "" {
		p = DefaultDatabasePath
	}
	return ExpandPath(p)
}

// ExportDir returns the expanded directory for Excel exports.
func ExportDir() string {
	return ExpandPath(viper.GetString("export.dir"))
}

// LoadPolicy reads the orchestrator policy knobs.
func LoadPolicy() reconcile.Policy {
	policy := reconcile.DefaultPolicy()
	if viper.IsSet("reconcile.missing_xml_divergent") {
		policy.MissingXMLIsDivergence = viper.GetBool("reconcile.missing_xml_divergent")
	}
	return policy
}

// LoadCalculator builds the commission calculator from the rate table.
// Rates are percentages keyed by seller code, e.g.
//
//	commission:
//	  default_rate: 2
//	  rates:
//	    ana: 4.5
func LoadCalculator() (*commission.Calculator, error) {
	raw := viper.GetStringMap("commission.rates")
	rates := make(map[string]float64, len(raw))
	for seller, value := range raw {
		rate, err := toFloat(value)
		if err != nil {
			return nil, common.NewValidationError(common.ErrInvalidConfig, "commission rate for %s: %v", seller, err)
		}
		rates[seller] = rate
	}
	return commission.NewCalculator(rates, viper.GetFloat64("commission.default_rate"))
}

// LoadBuyerDirectory reads the buyer names keyed by CNPJ/CPF.
func LoadBuyerDirectory() *nfe.BuyerDirectory {
	return nfe.NewBuyerDirectory(viper.GetStringMapString("nfe.buyers"))
}

// LoadInvoiceParser builds the NFe parser from the buyer directory and the
// optional nfe.seller_pattern, a regexp whose first group is the seller code.
func LoadInvoiceParser() (*nfe.Parser, error) {
	opts := []nfe.Option{nfe.WithBuyers(LoadBuyerDirectory())}
	if raw := viper.GetString("nfe.seller_pattern"); raw != "" {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, common.NewValidationError(common.ErrInvalidConfig, "nfe.seller_pattern: %v", err)
		}
		opts = append(opts, nfe.WithSellerPattern(re))
	}
	return nfe.NewParser(opts...), nil
}

// MovementSheet returns the configured movement worksheet name. Empty means
// the first sheet.
func MovementSheet() string {
	return viper.GetString("movement.sheet")
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}
