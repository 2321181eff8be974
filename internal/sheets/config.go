// Package sheets publishes a closed period to Google Sheets.
package sheets

import (
	"time"

	"github.com/Veraticus/conciliador/internal/common"
)

// Config holds the configuration for the Google Sheets writer. Exactly one
// of a service account or OAuth2 credentials must be set.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	TokenFile          string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	CurrencyPattern    string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultConfig returns the publisher defaults: a pt-BR spreadsheet named
// after the monthly close, in São Paulo time.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  "Fechamento Mensal",
		TimeZone:         "America/Sao_Paulo",
		CurrencyPattern:  `"R$" #,##0.00`,
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// UsesServiceAccount reports whether the writer authenticates with a
// service account key instead of OAuth2.
func (c *Config) UsesServiceAccount() bool {
	return c.ServiceAccountPath != ""
}

// hasOAuth reports whether client credentials plus a refresh token, inline
// or in a token file, are present.
func (c *Config) hasOAuth() bool {
	return c.ClientID != "" && c.ClientSecret != "" && (c.RefreshToken != "" || c.TokenFile != "")
}

// Validate reports the first problem as a validation error wrapping
// common.ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return common.NewValidationError(common.ErrInvalidConfig, "%s", msg)
	}

	switch {
	case !c.hasOAuth() && !c.UsesServiceAccount():
		return invalid("no authentication method configured")
	case c.hasOAuth() && c.UsesServiceAccount():
		return invalid("multiple authentication methods configured; use either OAuth2 or service account")
	case c.BatchSize <= 0:
		return invalid("batch size must be positive")
	case c.RetryAttempts < 0:
		return invalid("retry attempts cannot be negative")
	case c.RetryDelay < 0:
		return invalid("retry delay cannot be negative")
	case c.SpreadsheetID == "" && c.SpreadsheetName == "":
		return invalid("either a spreadsheet id or a spreadsheet name is required")
	}
	return nil
}
