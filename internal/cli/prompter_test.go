package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/conciliador/internal/engine"
	"github.com/Veraticus/conciliador/internal/model"
	"github.com/Veraticus/conciliador/internal/workflow"
)

func mismatch() model.ReconciledInvoice {
	return model.ReconciledInvoice{
		Key:              "1234",
		Type:             model.TypePaidSameDay,
		Amount:           decimal.RequireFromString("350.00"),
		PaymentDate:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		EmissionDate:     time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		MovementSeller:   "A",
		XMLSeller:        "B",
		PaymentMethod:    model.PaymentPix,
		HasMovement:      true,
		HasXML:           true,
		DivergenceStatus: model.StatusDivergent,
		DivergenceKinds:  []model.DivergenceKind{model.KindSellerMismatch},
		DivergenceReason: "seller mismatch: movement A, XML B",
		Severity:         model.SeverityWarning,
	}
}

func TestPromptDivergence(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    engine.Answer
		wantErr error
	}{
		{
			name:  "decision code",
			input: "2\n",
			want:  engine.Answer{Action: engine.ActionDecide, Decision: workflow.Decision{Code: workflow.UseXMLSeller}},
		},
		{
			name:  "explicit seller",
			input: "=v07\n",
			want:  engine.Answer{Action: engine.ActionDecide, Decision: workflow.Decision{Code: workflow.ExplicitSeller, Seller: "V07"}},
		},
		{
			name:  "ignore",
			input: "I\n",
			want:  engine.Answer{Action: engine.ActionDecide, Decision: workflow.Decision{Code: workflow.Ignore}},
		},
		{
			name:  "back",
			input: "b\n",
			want:  engine.Answer{Action: engine.ActionBack},
		},
		{
			name:  "stop",
			input: "q\n",
			want:  engine.Answer{Action: engine.ActionStop},
		},
		{
			name:  "invalid then valid",
			input: "x\n\n1\n",
			want:  engine.Answer{Action: engine.ActionDecide, Decision: workflow.Decision{Code: workflow.UseMovementSeller}},
		},
		{
			name:    "input ends",
			input:   "",
			wantErr: ErrInputClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewCLIPrompter(strings.NewReader(tt.input), &out)

			got, err := p.PromptDivergence(context.Background(), engine.DivergencePrompt{Invoice: mismatch(), Total: 3})
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, out.String(), "Divergence 1 of 3")
			assert.Contains(t, out.String(), "seller mismatch: movement A, XML B")
		})
	}
}

func TestPromptDivergenceShowsProblemAndPrevious(t *testing.T) {
	var out bytes.Buffer
	p := NewCLIPrompter(strings.NewReader("1\n"), &out)
	previous := workflow.Decision{Code: workflow.UseXMLSeller}

	_, err := p.PromptDivergence(context.Background(), engine.DivergencePrompt{
		Invoice:  mismatch(),
		Previous: &previous,
		Problem:  "invoice 1234 has no corrected seller",
		Position: 1,
		Total:    2,
	})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Divergence 2 of 2")
	assert.Contains(t, out.String(), "invoice 1234 has no corrected seller")
	assert.Contains(t, out.String(), "Previously: 2 (use XML seller)")
}

func TestPromptDivergenceCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewCLIPrompter(strings.NewReader("1\n"), &bytes.Buffer{})
	_, err := p.PromptDivergence(ctx, engine.DivergencePrompt{Invoice: mismatch(), Total: 1})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOptionsOnlyListApplicableChoices(t *testing.T) {
	inv := mismatch()
	opts := Options(inv)
	assert.Contains(t, opts, "[1] Use movement seller A")
	assert.Contains(t, opts, "[2] Use XML seller B")
	assert.NotContains(t, opts, "[3]")
	assert.Contains(t, opts, "[4] Use movement date 05/03/2024")
	assert.Contains(t, opts, "[4=CODE] [5=CODE]")

	inv.HasXML = false
	inv.XMLSeller = model.NoSeller
	opts = Options(inv)
	assert.NotContains(t, opts, "[2]")
	assert.NotContains(t, opts, "[5]")
	assert.Contains(t, opts, "[=CODE]")
}

func TestFormatDivergenceMissingXML(t *testing.T) {
	inv := mismatch()
	inv.HasXML = false
	inv.DivergenceKinds = []model.DivergenceKind{model.KindMissingXML, model.KindMissingSeller}

	text := FormatDivergence(engine.DivergencePrompt{Invoice: inv})
	assert.Contains(t, text, "no fiscal document")
	assert.Contains(t, text, string(model.KindMissingSeller))
	assert.Contains(t, text, "R$ 350,00")
}

func TestShowCompletion(t *testing.T) {
	var out bytes.Buffer
	p := NewCLIPrompter(strings.NewReader("1\n"), &out)

	_, err := p.PromptDivergence(context.Background(), engine.DivergencePrompt{Invoice: mismatch(), Total: 2})
	require.NoError(t, err)

	p.ShowCompletion(engine.CompletionStats{Total: 2, Resolved: 1, Pending: 1, Stopped: true})
	assert.Contains(t, out.String(), "Resolution Stopped")
	assert.Contains(t, out.String(), "Pending: 1")
	assert.Contains(t, out.String(), "conciliador resolve")
}

func TestParseAnswerRejectsUnknownCodes(t *testing.T) {
	_, err := ParseAnswer("9")
	assert.Error(t, err)
	_, err = ParseAnswer("=")
	assert.Error(t, err)
}
