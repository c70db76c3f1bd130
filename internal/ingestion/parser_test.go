package ingestion_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"stokenvault/internal/ingestion"
	"stokenvault/internal/vault"
)

func rawCommand(t *testing.T, env map[string]interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return ingestion.RawCommand{Subject: "stoken.commands.user.test", Data: data}
}

func envelope(command string, sequence int64, payload interface{}) map[string]interface{} {
	return map[string]interface{}{
		"command_id": uuid.NewString(),
		"vault_id":   "vault-a",
		"command":    command,
		"caller":     "alice",
		"sequence":   sequence,
		"payload":    payload,
	}
}

// ============================================================================
// Envelope parsing
// ============================================================================

func TestParseCommandEnvelope(t *testing.T) {
	id := uuid.NewString()
	raw := rawCommand(t, map[string]interface{}{
		"command_id": id,
		"vault_id":   "vault-a",
		"command":    "pause_vault",
		"caller":     "manager",
		"sequence":   int64(7),
	})

	cmd, err := ingestion.ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if cmd.ID.String() != id {
		t.Errorf("ID = %q, want %q", cmd.ID.String(), id)
	}
	if cmd.VaultID != "vault-a" {
		t.Errorf("VaultID = %q, want %q", cmd.VaultID, "vault-a")
	}
	if cmd.Name != "pause_vault" {
		t.Errorf("Name = %q, want %q", cmd.Name, "pause_vault")
	}
	if cmd.Caller != "manager" {
		t.Errorf("Caller = %q, want %q", cmd.Caller, "manager")
	}
	if cmd.Sequence != 7 {
		t.Errorf("Sequence = %d, want 7", cmd.Sequence)
	}
	if _, ok := cmd.Payload.(*ingestion.PauseVaultCommand); !ok {
		t.Errorf("Payload type = %T, want *PauseVaultCommand", cmd.Payload)
	}
}

func TestParseCommandRejectsBadEnvelope(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]interface{}
	}{
		{"bad command id", map[string]interface{}{
			"command_id": "not-a-uuid", "vault_id": "vault-a", "command": "pause_vault",
		}},
		{"missing vault id", map[string]interface{}{
			"command_id": uuid.NewString(), "command": "pause_vault",
		}},
		{"unknown command", map[string]interface{}{
			"command_id": uuid.NewString(), "vault_id": "vault-a", "command": "frobnicate",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ingestion.ParseCommand(rawCommand(t, tc.env)); err == nil {
				t.Error("ParseCommand() error = nil, want error")
			}
		})
	}
}

func TestParseCommandRejectsMalformedJSON(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte("{nope")}
	if _, err := ingestion.ParseCommand(raw); err == nil {
		t.Error("ParseCommand() error = nil, want error")
	}
}

// ============================================================================
// Payload decoding
// ============================================================================

func TestParseDepositPayload(t *testing.T) {
	raw := rawCommand(t, envelope("deposit", 0, map[string]interface{}{
		"amount":      1_000_000,
		"min_shares":  950_000,
		"beneficiary": "bob",
	}))

	cmd, err := ingestion.ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}

	p, ok := cmd.Payload.(*ingestion.DepositCommand)
	if !ok {
		t.Fatalf("Payload type = %T, want *DepositCommand", cmd.Payload)
	}
	if p.Amount != 1_000_000 {
		t.Errorf("Amount = %d, want 1000000", p.Amount)
	}
	if p.MinShares == nil || *p.MinShares != 950_000 {
		t.Errorf("MinShares = %v, want 950000", p.MinShares)
	}
	if p.Beneficiary != "bob" {
		t.Errorf("Beneficiary = %q, want %q", p.Beneficiary, "bob")
	}
}

func TestParseGovernancePayloads(t *testing.T) {
	raw := rawCommand(t, envelope("propose_fees", 0, map[string]interface{}{
		"deposit_bps":             50,
		"withdraw_bps":            25,
		"management_bps_per_year": 200,
	}))

	cmd, err := ingestion.ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}

	p, ok := cmd.Payload.(*vault.FeeChanges)
	if !ok {
		t.Fatalf("Payload type = %T, want *vault.FeeChanges", cmd.Payload)
	}
	if p.DepositBps != 50 || p.WithdrawBps != 25 || p.ManagementBpsPerYear != 200 {
		t.Errorf("FeeChanges = %+v, want {50 25 200}", *p)
	}
}

func TestParseSwapPayload(t *testing.T) {
	raw := rawCommand(t, envelope("swap_tokens", 0, map[string]interface{}{
		"dest_vault":     "vault-b",
		"amount":         500_000,
		"fee_bps":        30,
		"min_amount_out": 490_000,
	}))

	cmd, err := ingestion.ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}

	p, ok := cmd.Payload.(*ingestion.SwapTokensCommand)
	if !ok {
		t.Fatalf("Payload type = %T, want *SwapTokensCommand", cmd.Payload)
	}
	if p.DestVault != "vault-b" || p.Amount != 500_000 || p.FeeBps != 30 || p.MinAmountOut != 490_000 {
		t.Errorf("SwapTokensCommand = %+v", *p)
	}
}

func TestParseOmittedPayloadDefaultsEmpty(t *testing.T) {
	raw := rawCommand(t, map[string]interface{}{
		"command_id": uuid.NewString(),
		"vault_id":   "vault-a",
		"command":    "accrue_management_fee",
	})

	cmd, err := ingestion.ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}
	if _, ok := cmd.Payload.(*ingestion.AccrueManagementFeeCommand); !ok {
		t.Errorf("Payload type = %T, want *AccrueManagementFeeCommand", cmd.Payload)
	}
}

func TestParseEveryCommandName(t *testing.T) {
	names := []string{
		"deposit", "process_deposits", "return_funds", "accrue_management_fee",
		"withdraw_unexpected_deposits", "withdraw_request", "update_withdrawal_minimum",
		"fulfill_withdrawal", "cancel_withdrawal", "update_price", "accept_price",
		"reject_price", "propose_roles", "accept_roles", "propose_fees", "accept_fees",
		"propose_limits", "accept_limits", "propose_whitelist", "accept_whitelist",
		"add_whitelist_user", "remove_whitelist_user", "propose_cooldowns",
		"accept_cooldowns", "pause_vault", "unpause_vault", "emergency_withdraw",
		"swap_tokens", "accept_allowlist_mint", "cancel_allowlist_mint",
	}

	for _, name := range names {
		raw := rawCommand(t, envelope(name, 0, map[string]interface{}{}))
		if _, err := ingestion.ParseCommand(raw); err != nil {
			t.Errorf("ParseCommand(%q) error = %v", name, err)
		}
	}
}

// ============================================================================
// Signing input
// ============================================================================

func TestSignedBytesCoverEnvelopeFields(t *testing.T) {
	id := uuid.NewString()
	payload := map[string]interface{}{"amount": 5}
	raw := rawCommand(t, map[string]interface{}{
		"command_id": id,
		"vault_id":   "vault-a",
		"command":    "deposit",
		"caller":     "alice",
		"sequence":   int64(3),
		"payload":    payload,
	})

	cmd, err := ingestion.ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand() error = %v", err)
	}

	want := fmt.Sprintf("%s|vault-a|deposit|alice|3|{\"amount\":5}", id)
	if got := string(cmd.SignedBytes); got != want {
		t.Errorf("SignedBytes = %q, want %q", got, want)
	}
}
