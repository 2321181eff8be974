package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/conciliador/internal/common"
	"github.com/Veraticus/conciliador/internal/model"
)

func periodCmd(t *testing.T, value string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addPeriodFlag(cmd)
	if value != "" {
		require.NoError(t, cmd.Flags().Set("period", value))
	}
	return cmd
}

func TestPeriodFromFlag(t *testing.T) {
	t.Run("explicit period", func(t *testing.T) {
		period, err := periodFromFlag(periodCmd(t, "2024-03"))
		require.NoError(t, err)
		assert.Equal(t, model.PeriodID("2024-03"), period)
	})

	t.Run("invalid period", func(t *testing.T) {
		_, err := periodFromFlag(periodCmd(t, "2024-13"))
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("defaults to previous month", func(t *testing.T) {
		period, err := periodFromFlag(periodCmd(t, ""))
		require.NoError(t, err)
		assert.Equal(t, previousPeriod(time.Now()), period)
	})
}

func TestPreviousPeriod(t *testing.T) {
	tests := []struct {
		now  time.Time
		want model.PeriodID
	}{
		{time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC), "2024-02"},
		{time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), "2024-02"},
		{time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC), "2023-12"},
	}
	for _, tt := range tests {
		t.Run(tt.now.Format("2006-01-02"), func(t *testing.T) {
			assert.Equal(t, tt.want, previousPeriod(tt.now))
		})
	}
}

func TestFormatFileSize(t *testing.T) {
	assert.Equal(t, "512 B", formatFileSize(512))
	assert.Equal(t, "1.0 KB", formatFileSize(1024))
	assert.Equal(t, "1.5 MB", formatFileSize(1536*1024))
}

func TestFormatRelativeTime(t *testing.T) {
	assert.Equal(t, "just now", formatRelativeTime(time.Now()))
	assert.Equal(t, "5 minutes ago", formatRelativeTime(time.Now().Add(-5*time.Minute-time.Second)))
	old := time.Date(2020, time.May, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2020-05-04", formatRelativeTime(old))
}

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"import", "resolve", "divergences", "summary", "commissions", "ledger",
		"checklist", "simulate", "close", "reopen", "status", "export", "publish", "checkpoint", "migrate"} {
		assert.True(t, names[want], want)
	}
}

func TestFormatSummary(t *testing.T) {
	s := model.Summary{TotalsByMethod: map[model.PaymentMethod]decimal.Decimal{}}
	out := formatSummary(s)
	assert.Contains(t, out, "Net total:")
	assert.NotContains(t, out, "By payment method")
}
