package nfe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuyerDirectory(t *testing.T) {
	d := NewBuyerDirectory(map[string]string{
		"11.222.333/0001-81": " Loja Exemplo ",
		"":                   "ignored",
		"999":                "",
	})

	name, ok := d.Lookup("11222333000181")
	assert.True(t, ok)
	assert.Equal(t, "Loja Exemplo", name)
	assert.Equal(t, 1, d.Len())

	d.Add("123", "Outro")
	_, ok = d.Lookup("1-2-3")
	assert.True(t, ok)

	var nilDir *BuyerDirectory
	_, ok = nilDir.Lookup("123")
	assert.False(t, ok)
	assert.Zero(t, nilDir.Len())
}
