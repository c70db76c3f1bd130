package event

// VaultPaused records the vault entering emergency mode
type VaultPaused struct {
	Meta
	Manager string `json:"manager"`
}

func (*VaultPaused) EventType() Type { return TypeVaultPaused }

// VaultUnpaused records the vault leaving emergency mode
type VaultUnpaused struct {
	Meta
	Manager string `json:"manager"`
}

func (*VaultUnpaused) EventType() Type { return TypeVaultUnpaused }

// EmergencyWithdrawPending records a pinned emergency withdrawal and its
// timelock
type EmergencyWithdrawPending struct {
	Meta
	Manager      string `json:"manager"`
	Token        string `json:"token"`
	Amount       uint64 `json:"amount"`
	TimelockEnd  uint64 `json:"timelock_end"`
	CooldownSecs uint64 `json:"cooldown_secs"`
}

func (*EmergencyWithdrawPending) EventType() Type { return TypeEmergencyWithdrawPending }

// EmergencyWithdrawExecuted records the completed emergency transfer
type EmergencyWithdrawExecuted struct {
	Meta
	Manager string `json:"manager"`
	Token   string `json:"token"`
	Amount  uint64 `json:"amount"`
}

func (*EmergencyWithdrawExecuted) EventType() Type { return TypeEmergencyWithdrawExecuted }
