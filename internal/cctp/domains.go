// Package cctp implements the wire format shared by both legs of a
// burn-and-mint transfer: the 248-byte burn message emitted on the source
// chain, its keccak-256 identifier, and the domain numbering used to route
// messages between chains.
package cctp

// Domain identifiers assigned by the protocol. The domain is the routing
// key inside a message header and is independent of any chain's own ids.
const (
	DomainEthereum  uint32 = 0
	DomainAvalanche uint32 = 1
	DomainOptimism  uint32 = 2
	DomainArbitrum  uint32 = 3
	DomainNoble     uint32 = 4
	DomainSolana    uint32 = 5
	DomainBase      uint32 = 6
	DomainPolygon   uint32 = 7
	DomainSui       uint32 = 8
	DomainAptos     uint32 = 9
)

var domainNames = map[uint32]string{
	DomainEthereum:  "ethereum",
	DomainAvalanche: "avalanche",
	DomainOptimism:  "optimism",
	DomainArbitrum:  "arbitrum",
	DomainNoble:     "noble",
	DomainSolana:    "solana",
	DomainBase:      "base",
	DomainPolygon:   "polygon",
	DomainSui:       "sui",
	DomainAptos:     "aptos",
}

// DomainName returns the conventional name for a domain id, or "unknown"
func DomainName(domain uint32) string {
	if name, ok := domainNames[domain]; ok {
		return name
	}
	return "unknown"
}
