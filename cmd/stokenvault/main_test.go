package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVaultDefinitionsSharesDecimals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaults.json")
	data := []byte(`[
		{"id": "vault-a", "underlying_symbol": "USDC", "underlying_decimals": 6,
		 "shares_symbol": "svUSDC", "shares_decimals": 9},
		{"id": "vault-b", "underlying_symbol": "DAI", "underlying_decimals": 18,
		 "shares_symbol": "svDAI"}
	]`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write vaults file: %v", err)
	}

	defs, err := loadVaultDefinitions(path)
	if err != nil {
		t.Fatalf("loadVaultDefinitions() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("definitions = %d, want 2", len(defs))
	}
	if got := defs[0].sharesDecimals(); got != 9 {
		t.Errorf("vault-a shares decimals = %d, want 9", got)
	}
	if got := defs[1].sharesDecimals(); got != 18 {
		t.Errorf("vault-b shares decimals = %d, want underlying's 18", got)
	}
}
