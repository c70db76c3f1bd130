package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"stokenvault/internal/vault"
)

// Command is a parsed-and-typed instruction for one vault engine. The
// payload holds one of the *Command structs below (or a vault change-set
// struct for governance proposals).
type Command struct {
	ID       uuid.UUID
	VaultID  string
	Name     string
	Caller   string
	Sequence int64
	Payload  interface{}

	// Signature and SignedBytes feed the HMAC authenticator; they carry no
	// meaning past the auth step.
	Signature   string
	SignedBytes []byte
}

// commandEnvelopeJSON is the wire envelope shared by every command subject.
// Field names use snake_case to match upstream producers.
type commandEnvelopeJSON struct {
	CommandID string          `json:"command_id"`
	VaultID   string          `json:"vault_id"`
	Command   string          `json:"command"`
	Caller    string          `json:"caller"`
	Sequence  int64           `json:"sequence"`
	Signature string          `json:"signature,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// ParseCommand converts a RawCommand (JSON bytes from NATS) into a typed
// Command ready for the dispatcher. The shell validates and parses before
// anything reaches an engine.
func ParseCommand(raw RawCommand) (*Command, error) {
	var env commandEnvelopeJSON
	if err := json.Unmarshal(raw.Data, &env); err != nil {
		return nil, fmt.Errorf("parse command envelope: %w", err)
	}

	id, err := uuid.Parse(env.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	if env.VaultID == "" {
		return nil, fmt.Errorf("missing vault_id")
	}

	payload, err := parsePayload(env.Command, env.Payload)
	if err != nil {
		return nil, err
	}

	return &Command{
		ID:          id,
		VaultID:     env.VaultID,
		Name:        env.Command,
		Caller:      env.Caller,
		Sequence:    env.Sequence,
		Payload:     payload,
		Signature:   env.Signature,
		SignedBytes: signingInput(env),
	}, nil
}

// signingInput builds the canonical byte string covered by the envelope
// signature. The payload is included verbatim, so producers must sign the
// exact bytes they send.
func signingInput(env commandEnvelopeJSON) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%s|%d|%s",
		env.CommandID, env.VaultID, env.Command, env.Caller, env.Sequence, string(env.Payload)))
}

func parsePayload(name string, data json.RawMessage) (interface{}, error) {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	switch name {
	case "deposit":
		return unmarshalPayload[DepositCommand](name, data)
	case "process_deposits":
		return unmarshalPayload[ProcessDepositsCommand](name, data)
	case "return_funds":
		return unmarshalPayload[ReturnFundsCommand](name, data)
	case "accrue_management_fee":
		return unmarshalPayload[AccrueManagementFeeCommand](name, data)
	case "withdraw_unexpected_deposits":
		return unmarshalPayload[WithdrawUnexpectedCommand](name, data)
	case "withdraw_request":
		return unmarshalPayload[WithdrawRequestCommand](name, data)
	case "update_withdrawal_minimum":
		return unmarshalPayload[UpdateWithdrawalMinimumCommand](name, data)
	case "fulfill_withdrawal":
		return unmarshalPayload[FulfillWithdrawalCommand](name, data)
	case "cancel_withdrawal":
		return unmarshalPayload[CancelWithdrawalCommand](name, data)
	case "update_price":
		return unmarshalPayload[UpdatePriceCommand](name, data)
	case "accept_price":
		return unmarshalPayload[AcceptPriceCommand](name, data)
	case "reject_price":
		return unmarshalPayload[RejectPriceCommand](name, data)
	case "propose_roles":
		return unmarshalPayload[vault.RoleChanges](name, data)
	case "accept_roles":
		return unmarshalPayload[AcceptRolesCommand](name, data)
	case "propose_fees":
		return unmarshalPayload[vault.FeeChanges](name, data)
	case "accept_fees":
		return unmarshalPayload[AcceptFeesCommand](name, data)
	case "propose_limits":
		return unmarshalPayload[vault.LimitChanges](name, data)
	case "accept_limits":
		return unmarshalPayload[AcceptLimitsCommand](name, data)
	case "propose_whitelist":
		return unmarshalPayload[ProposeWhitelistCommand](name, data)
	case "accept_whitelist":
		return unmarshalPayload[AcceptWhitelistCommand](name, data)
	case "add_whitelist_user":
		return unmarshalPayload[AddWhitelistUserCommand](name, data)
	case "remove_whitelist_user":
		return unmarshalPayload[RemoveWhitelistUserCommand](name, data)
	case "propose_cooldowns":
		return unmarshalPayload[vault.CooldownChanges](name, data)
	case "accept_cooldowns":
		return unmarshalPayload[AcceptCooldownsCommand](name, data)
	case "pause_vault":
		return unmarshalPayload[PauseVaultCommand](name, data)
	case "unpause_vault":
		return unmarshalPayload[UnpauseVaultCommand](name, data)
	case "emergency_withdraw":
		return unmarshalPayload[EmergencyWithdrawCommand](name, data)
	case "swap_tokens":
		return unmarshalPayload[SwapTokensCommand](name, data)
	case "accept_allowlist_mint":
		return unmarshalPayload[AcceptAllowlistMintCommand](name, data)
	case "cancel_allowlist_mint":
		return unmarshalPayload[CancelAllowlistMintCommand](name, data)
	default:
		return nil, fmt.Errorf("unknown command: %s", name)
	}
}

func unmarshalPayload[T any](name string, data json.RawMessage) (*T, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", name, err)
	}
	return &p, nil
}

// --- payload wire formats ---
// Governance proposals reuse the vault change-set structs directly; their
// json tags already match the wire contract.

type DepositCommand struct {
	Amount      uint64  `json:"amount"`
	MinShares   *uint64 `json:"min_shares,omitempty"`
	Beneficiary string  `json:"beneficiary,omitempty"`
}

type ProcessDepositsCommand struct {
	Amount uint64 `json:"amount"`
}

type ReturnFundsCommand struct {
	Amount uint64 `json:"amount"`
}

type AccrueManagementFeeCommand struct{}

type WithdrawUnexpectedCommand struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type WithdrawRequestCommand struct {
	Shares       uint64 `json:"shares"`
	MinAmountOut uint64 `json:"min_amount_out"`
}

type UpdateWithdrawalMinimumCommand struct {
	RequestID  uint64 `json:"request_id"`
	NewMinimum uint64 `json:"new_minimum"`
}

type FulfillWithdrawalCommand struct {
	User      string `json:"user"`
	RequestID uint64 `json:"request_id"`
}

type CancelWithdrawalCommand struct {
	RequestID uint64 `json:"request_id"`
}

type UpdatePriceCommand struct {
	Price uint64 `json:"price"`
}

// AcceptPriceCommand carries at most one role claim; the engine checks the
// claim against the configured role addresses.
type AcceptPriceCommand struct {
	ManagerAuth   *string `json:"manager_auth,omitempty"`
	ProcessorAuth *string `json:"processor_auth,omitempty"`
	OracleAuth    *string `json:"oracle_auth,omitempty"`
}

type RejectPriceCommand struct{}

type AcceptRolesCommand struct{}

type AcceptFeesCommand struct{}

type AcceptLimitsCommand struct{}

type ProposeWhitelistCommand struct {
	Enabled bool `json:"enabled"`
}

type AcceptWhitelistCommand struct{}

type AddWhitelistUserCommand struct {
	User string `json:"user"`
}

type RemoveWhitelistUserCommand struct {
	User string `json:"user"`
}

type AcceptCooldownsCommand struct{}

type PauseVaultCommand struct{}

type UnpauseVaultCommand struct{}

type EmergencyWithdrawCommand struct {
	Token  string `json:"token"`
	Amount uint64 `json:"amount"`
}

type SwapTokensCommand struct {
	DestVault    string `json:"dest_vault"`
	Amount       uint64 `json:"amount"`
	FeeBps       uint32 `json:"fee_bps"`
	MinAmountOut uint64 `json:"min_amount_out"`
}

type AcceptAllowlistMintCommand struct {
	Peer string `json:"peer"`
}

type CancelAllowlistMintCommand struct {
	Peer string `json:"peer"`
}
