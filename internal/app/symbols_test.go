package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fx-data/internal/model"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestLoadSymbolsDefault(t *testing.T) {
	syms, err := LoadSymbols("")
	require.NoError(t, err)
	require.Len(t, syms, 8)
	assert.Equal(t, "EURUSD", syms[0].Name)
	assert.Equal(t, []string{"US30", "US30.cash", "US30Cash", "USA30", "DJ30", "US30.", "I:DJI"}, syms[6].Candidates())

	syms[0].Name = "changed"
	assert.Equal(t, "EURUSD", DefaultSymbols[0].Name, "defaults are copied")
}

func TestLoadSymbolsYAML(t *testing.T) {
	p := writeFile(t, "symbols.yaml", `
indices:
  - name: us30
    aliases: [US30.cash, DJ30]
fx:
  - name: EURUSD
    aliases: [EURUSD.a]
  - name: EURUSD
`)
	syms, err := LoadSymbols(p)
	require.NoError(t, err)
	assert.Equal(t, []model.Symbol{
		{Name: "EURUSD", Aliases: []string{"EURUSD.a"}, Category: "fx"},
		{Name: "US30", Aliases: []string{"US30.cash", "DJ30"}, Category: "indices"},
	}, syms)
}

func TestLoadSymbolsJSONAndText(t *testing.T) {
	p := writeFile(t, "symbols.json", `{"fx":[{"name":"GBPUSD"}]}`)
	syms, err := LoadSymbols(p)
	require.NoError(t, err)
	assert.Equal(t, []model.Symbol{{Name: "GBPUSD", Category: "fx"}}, syms)

	p = writeFile(t, "symbols.txt", "# tracked\nUSDJPY\n\nXAUUSD indices GOLD|XAUUSD.a\n")
	syms, err = LoadSymbols(p)
	require.NoError(t, err)
	assert.Equal(t, []model.Symbol{
		{Name: "USDJPY", Category: "fx"},
		{Name: "XAUUSD", Category: "indices", Aliases: []string{"GOLD", "XAUUSD.a"}},
	}, syms)
}

func TestLoadSymbolsErrors(t *testing.T) {
	_, err := LoadSymbols(writeFile(t, "symbols.csv", "EURUSD"))
	assert.ErrorContains(t, err, "unsupported")

	_, err = LoadSymbols(writeFile(t, "symbols.txt", "# nothing\n"))
	assert.ErrorContains(t, err, "no symbols")

	_, err = LoadSymbols(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSelectSymbols(t *testing.T) {
	all := DefaultSymbols
	got, err := SelectSymbols(all, "")
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = SelectSymbols(all, " us30, eurusd ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "US30", got[0].Name)
	assert.Equal(t, model.CategoryIndices, got[0].Category)

	_, err = SelectSymbols(all, "BTCUSD")
	assert.ErrorContains(t, err, "BTCUSD")
}
