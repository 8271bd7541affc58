package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"fx-data/internal/model"
)

// DefaultSymbols is the tracked set when no symbols file is given.
// Aliases cover the usual broker suffixes plus the polygon tickers.
var DefaultSymbols = []model.Symbol{
	{Name: "EURUSD", Category: model.CategoryFX, Aliases: []string{"EURUSD.a", "EURUSDm", "EURUSD.", "C:EURUSD"}},
	{Name: "USDJPY", Category: model.CategoryFX, Aliases: []string{"USDJPY.a", "USDJPYm", "USDJPY.", "C:USDJPY"}},
	{Name: "GBPUSD", Category: model.CategoryFX, Aliases: []string{"GBPUSD.a", "GBPUSDm", "GBPUSD.", "C:GBPUSD"}},
	{Name: "EURGBP", Category: model.CategoryFX, Aliases: []string{"EURGBP.a", "EURGBPm", "EURGBP.", "C:EURGBP"}},
	{Name: "USDCAD", Category: model.CategoryFX, Aliases: []string{"USDCAD.a", "USDCADm", "USDCAD.", "C:USDCAD"}},
	{Name: "AUDNZD", Category: model.CategoryFX, Aliases: []string{"AUDNZD.a", "AUDNZDm", "AUDNZD.", "C:AUDNZD"}},
	{Name: "US30", Category: model.CategoryIndices, Aliases: []string{"US30.cash", "US30Cash", "USA30", "DJ30", "US30.", "I:DJI"}},
	{Name: "XAUUSD", Category: model.CategoryIndices, Aliases: []string{"XAUUSD.a", "XAUUSDm", "GOLD", "XAUUSD.", "C:XAUUSD"}},
}

// symbolsFile is the .yaml/.json layout: symbols grouped by category.
//
//	fx:
//	  - name: EURUSD
//	    aliases: [EURUSD.a, EURUSDm]
//	indices:
//	  - name: US30
type symbolsFile map[string][]model.Symbol

// LoadSymbols returns the symbols in path, or DefaultSymbols when path is empty.
// Supported formats:
//   - .yaml, .yml, .json : categories mapping to symbol lists
//   - .txt               : one symbol per line, optional "category" column and
//     "|"-separated aliases: "US30 indices US30.cash|DJ30"; '#' lines are comments
func LoadSymbols(path string) ([]model.Symbol, error) {
	if path == "" {
		return append([]model.Symbol(nil), DefaultSymbols...), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var syms []model.Symbol
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var f symbolsFile
		if err := yaml.Unmarshal(content, &f); err != nil {
			return nil, fmt.Errorf("parse YAML: %w", err)
		}
		syms = f.flatten()
	case ".json":
		var f symbolsFile
		if err := json.Unmarshal(content, &f); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		syms = f.flatten()
	case ".txt":
		syms = parseSymbolsFromText(string(content))
	default:
		return nil, fmt.Errorf("unsupported symbols file extension %q (use .yaml, .json or .txt)", filepath.Ext(path))
	}

	// Remove empty and duplicates
	seen := make(map[string]bool)
	var unique []model.Symbol
	for _, s := range syms {
		s.Name = strings.TrimSpace(strings.ToUpper(s.Name))
		if s.Name == "" || seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		unique = append(unique, s)
	}
	if len(unique) == 0 {
		return nil, fmt.Errorf("no symbols in %s", path)
	}

	slog.Info("loaded symbols from file", "count", len(unique), "path", path)
	return unique, nil
}

// flatten lists symbols by category name, then file order.
func (f symbolsFile) flatten() []model.Symbol {
	cats := make([]string, 0, len(f))
	for c := range f {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	var out []model.Symbol
	for _, c := range cats {
		for _, s := range f[c] {
			s.Category = c
			out = append(out, s)
		}
	}
	return out
}

func parseSymbolsFromText(s string) []model.Symbol {
	var out []model.Symbol
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		sym := model.Symbol{Name: fields[0], Category: model.CategoryFX}
		if len(fields) > 1 {
			sym.Category = strings.ToLower(fields[1])
		}
		if len(fields) > 2 {
			sym.Aliases = strings.Split(fields[2], "|")
		}
		out = append(out, sym)
	}
	return out
}

// SelectSymbols keeps the symbols named in csv (comma separated, case-insensitive).
// Empty csv keeps all. An unknown name is an error.
func SelectSymbols(all []model.Symbol, csv string) ([]model.Symbol, error) {
	if strings.TrimSpace(csv) == "" {
		return all, nil
	}
	byName := make(map[string]model.Symbol, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	var out []model.Symbol
	for _, n := range strings.Split(csv, ",") {
		n = strings.TrimSpace(strings.ToUpper(n))
		if n == "" {
			continue
		}
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown symbol %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}
