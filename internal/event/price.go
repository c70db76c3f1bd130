package event

// PriceUpdated records an immediately-applied oracle price
type PriceUpdated struct {
	Meta
	Oracle   string `json:"oracle"`
	OldPrice uint64 `json:"old_price"`
	NewPrice uint64 `json:"new_price"`
}

func (*PriceUpdated) EventType() Type { return TypePriceUpdated }

// PricePending records a deviation-exceeding price parked for approval
type PricePending struct {
	Meta
	Oracle       string `json:"oracle"`
	OldPrice     uint64 `json:"old_price"`
	NewPrice     uint64 `json:"new_price"`
	DeviationBps uint32 `json:"deviation_bps"`
}

func (*PricePending) EventType() Type { return TypePricePending }

// PriceAccepted records approval of a pending price
type PriceAccepted struct {
	Meta
	AcceptedBy string `json:"accepted_by"`
	OldPrice   uint64 `json:"old_price"`
	NewPrice   uint64 `json:"new_price"`
}

func (*PriceAccepted) EventType() Type { return TypePriceAccepted }

// PriceRejected records a manager discarding a pending price
type PriceRejected struct {
	Meta
	Manager       string `json:"manager"`
	RejectedPrice uint64 `json:"rejected_price"`
	CurrentPrice  uint64 `json:"current_price"`
}

func (*PriceRejected) EventType() Type { return TypePriceRejected }
