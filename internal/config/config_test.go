package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	SetDefaults(viper.GetViper())
	t.Cleanup(viper.Reset)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CONCILIADOR_TEST_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "x.db"), ExpandPath("~/x.db"))
	assert.Equal(t, "/data/x.db", ExpandPath("$CONCILIADOR_TEST_DIR/x.db"))
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "conciliador"), dir)

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err = ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "conciliador"), dir)
}

func TestDatabasePath(t *testing.T) {
	resetViper(t)
	t.Setenv("HOME", "/home/op")
	assert.Equal(t, "/home/op/.local/share/conciliador/conciliador.db", DatabasePath())

	viper.Set("database.path", "/tmp/c.db")
	assert.Equal(t, "/tmp/c.db", DatabasePath())
}

func TestLoadPolicy(t *testing.T) {
	resetViper(t)
	assert.True(t, LoadPolicy().MissingXMLIsDivergence)

	viper.Set("reconcile.missing_xml_divergent", false)
	assert.False(t, LoadPolicy().MissingXMLIsDivergence)
}

func TestLoadCalculator(t *testing.T) {
	resetViper(t)
	viper.Set("commission.default_rate", 2.0)
	viper.Set("commission.rates", map[string]any{"ana": 4.5, "bruno": "3", "carla": 1})

	calc, err := LoadCalculator()
	require.NoError(t, err)
	assert.True(t, calc.RateFor("ANA").Equal(decimal.RequireFromString("4.5")))
	assert.True(t, calc.RateFor("BRUNO").Equal(decimal.NewFromInt(3)))
	assert.True(t, calc.RateFor("CARLA").Equal(decimal.NewFromInt(1)))
	assert.True(t, calc.RateFor(model.SellerCode("ZE")).Equal(decimal.NewFromInt(2)))
}

func TestLoadCalculator_InvalidRate(t *testing.T) {
	resetViper(t)
	viper.Set("commission.rates", map[string]any{"ana": "lots"})

	_, err := LoadCalculator()
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	viper.Set("commission.rates", map[string]any{"ana": -1.0})
	_, err = LoadCalculator()
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestLoadBuyerDirectory(t *testing.T) {
	resetViper(t)
	viper.Set("nfe.buyers", map[string]string{"11.222.333/0001-81": "Loja Exemplo"})

	dir := LoadBuyerDirectory()
	name, ok := dir.Lookup("11222333000181")
	assert.True(t, ok)
	assert.Equal(t, "Loja Exemplo", name)
}

func TestLoadSheetsConfig(t *testing.T) {
	resetViper(t)
	for _, key := range []string{"CLIENT_ID", "CLIENT_SECRET", "REFRESH_TOKEN", "SERVICE_ACCOUNT_PATH", "SPREADSHEET_ID", "SPREADSHEET_NAME"} {
		t.Setenv("GOOGLE_SHEETS_"+key, "")
	}

	_, err := LoadSheetsConfig()
	assert.Error(t, err, "no credentials configured")

	viper.Set("sheets.client_id", "id")
	viper.Set("sheets.client_secret", "secret")
	viper.Set("sheets.spreadsheet_id", "sheet-1")
	cfg, err := LoadSheetsConfig()
	require.NoError(t, err, "token file default satisfies the refresh token requirement")
	assert.Equal(t, "sheet-1", cfg.SpreadsheetID)
	assert.NotEmpty(t, cfg.TokenFile)

	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "from-env")
	cfg, err = LoadSheetsConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.RefreshToken)
}

func TestLoadInvoiceParser(t *testing.T) {
	resetViper(t)

	p, err := LoadInvoiceParser()
	require.NoError(t, err)
	assert.NotNil(t, p)

	viper.Set("nfe.seller_pattern", `(?i)atendente:\s*(\w+)`)
	_, err = LoadInvoiceParser()
	require.NoError(t, err)

	viper.Set("nfe.seller_pattern", `(unclosed`)
	_, err = LoadInvoiceParser()
	assert.True(t, errors.Is(err, common.ErrInvalidConfig))
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestMovementSheet(t *testing.T) {
	resetViper(t)
	assert.Empty(t, MovementSheet())

	viper.Set("movement.sheet", "Caixa")
	assert.Equal(t, "Caixa", MovementSheet())
}
