package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/conciliador/internal/sheets"
)

// sheetsSetting binds one publisher field to its viper key and, optionally,
// a GOOGLE_SHEETS_* fallback variable.
type sheetsSetting struct {
	target *string
	key    string
	env    string
	path   bool
}

// LoadSheetsConfig builds the publisher configuration. A viper value
// (config file or CONCILIADOR_SHEETS_*) wins over the GOOGLE_SHEETS_*
// variable; unset fields keep sheets.DefaultConfig values.
func LoadSheetsConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	settings := []sheetsSetting{
		{target: &cfg.ServiceAccountPath, key: "sheets.service_account_path", env: "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", path: true},
		{target: &cfg.ClientID, key: "sheets.client_id", env: "GOOGLE_SHEETS_CLIENT_ID"},
		{target: &cfg.ClientSecret, key: "sheets.client_secret", env: "GOOGLE_SHEETS_CLIENT_SECRET"},
		{target: &cfg.RefreshToken, key: "sheets.refresh_token", env: "GOOGLE_SHEETS_REFRESH_TOKEN"},
		{target: &cfg.TokenFile, key: "sheets.token_file", path: true},
		{target: &cfg.SpreadsheetID, key: "sheets.spreadsheet_id", env: "GOOGLE_SHEETS_SPREADSHEET_ID"},
		{target: &cfg.SpreadsheetName, key: "sheets.spreadsheet_name", env: "GOOGLE_SHEETS_SPREADSHEET_NAME"},
		{target: &cfg.TimeZone, key: "sheets.timezone"},
	}

	for _, s := range settings {
		v := viper.GetString(s.key)
		if v == "" && s.env != "" {
			v = os.Getenv(s.env)
		}
		if v == "" {
			continue
		}
		if s.path {
			v = ExpandPath(v)
		}
		*s.target = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
