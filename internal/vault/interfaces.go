package vault

import "sync"

// Authorizer asserts that the caller of the current invocation has proven
// control of an address. Implementations sit at the transport boundary; the
// engine consults it before every mutating effect tied to a role.
type Authorizer interface {
	RequireAuth(addr string) error
}

// AllowAll trusts the transport layer to have authenticated callers already.
type AllowAll struct{}

func (AllowAll) RequireAuth(string) error { return nil }

// PeerVault is the capability surface one vault needs from another for swap
// settlement and allow-listed minting. The engine implements it; remote
// deployments can substitute a transport-backed client.
type PeerVault interface {
	ID() string
	UnderlyingAsset() string
	Price() uint64
	IsPaused() bool
	Decimals() uint32
	WhitelistEnabled() bool
	IsWhitelisted(addr string) bool
	MinSharesToMint() uint64
	Balance(addr string) uint64
	AssetManager() string
	Accountant() string
	TotalShares() uint64
	MintCore(mint, to string, amount uint64) error
	WriteVaultTotalShares(mint string, shares uint64) error
}

// Registry resolves vault ids to peer capabilities for in-process
// deployments. Swaps are serialized process-wide so two vaults can never
// wait on each other's state locks.
type Registry struct {
	mu     sync.RWMutex
	swapMu sync.Mutex
	peers  map[string]PeerVault
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]PeerVault)}
}

func (r *Registry) Register(p PeerVault) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
}

func (r *Registry) Lookup(id string) (PeerVault, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

func (r *Registry) lockSwaps() func() {
	r.swapMu.Lock()
	return r.swapMu.Unlock
}
