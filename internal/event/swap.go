package event

// AllowlistMintAccepted records a peer vault approved as a minter
type AllowlistMintAccepted struct {
	Meta
	Manager string `json:"manager"`
	Mint    string `json:"mint"`
}

func (*AllowlistMintAccepted) EventType() Type { return TypeAllowlistMintAccepted }

// AllowlistMintCancelled records a peer vault's mint approval revoked
type AllowlistMintCancelled struct {
	Meta
	Manager string `json:"manager"`
	Mint    string `json:"mint"`
}

func (*AllowlistMintCancelled) EventType() Type { return TypeAllowlistMintCancelled }

// AllowlistMinted records shares minted on behalf of an approved peer
type AllowlistMinted struct {
	Meta
	Mint   string `json:"mint"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func (*AllowlistMinted) EventType() Type { return TypeAllowlistMinted }

// SwapExecuted records a completed cross-vault swap from the source side
type SwapExecuted struct {
	Meta
	Caller           string `json:"caller"`
	DestinationVault string `json:"destination_vault"`
	SourceAmount     uint64 `json:"source_amount"`
	DestAmount       uint64 `json:"dest_amount"`
	SourcePrice      uint64 `json:"source_price"`
	DestPrice        uint64 `json:"dest_price"`
	ValueAfterFee    uint64 `json:"value_after_fee"`
	FeeBps           uint32 `json:"fee_bps"`
	FeeAmount        uint64 `json:"fee_amount"`
	TotalFeeShares   uint64 `json:"total_fee_shares"`
}

func (*SwapExecuted) EventType() Type { return TypeSwapExecuted }

// TotalSharesWritten records a peer-initiated total shares overwrite
type TotalSharesWritten struct {
	Meta
	Mint   string `json:"mint"`
	Shares uint64 `json:"shares"`
}

func (*TotalSharesWritten) EventType() Type { return TypeTotalSharesWritten }
