package client

import "github.com/kysee/randbeacon/xerrors"

// EndpointKind is a closed enumeration of well-known beacon HTTP hosts,
// preferred over open polymorphism per spec.md §9 ("only one transport
// family exists today").
type EndpointKind int

const (
	// KindKudelski is the Kudelski Security mainnet relay.
	KindKudelski EndpointKind = iota
	// KindPLabs is the Protocol Labs mainnet relay.
	KindPLabs
	// KindStorSwift is the Storswift mainnet relay.
	KindStorSwift
	// KindCloudflare is the Cloudflare CDN-backed mainnet relay.
	KindCloudflare
)

var baseURLs = map[EndpointKind]string{
	KindKudelski:   "https://api.drand.sh",
	KindPLabs:      "https://api2.drand.sh",
	KindStorSwift:  "https://api3.drand.sh",
	KindCloudflare: "https://drand.cloudflare.com",
}

// BaseURL resolves an EndpointKind to its well-known base URL.
func (k EndpointKind) BaseURL() (string, error) {
	url, ok := baseURLs[k]
	if !ok {
		return "", xerrors.Invalidf("unknown endpoint kind %d", int(k))
	}
	return url, nil
}

func (k EndpointKind) String() string {
	switch k {
	case KindKudelski:
		return "kudelski"
	case KindPLabs:
		return "protocol-labs"
	case KindStorSwift:
		return "storswift"
	case KindCloudflare:
		return "cloudflare"
	default:
		return "unknown"
	}
}

// MainnetChainHash is the documented root-of-trust chain hash for drand's
// default mainnet randomness beacon (spec.md §6, reproduced verbatim from
// the real chain — see S1 in SPEC_FULL.md §8).
var MainnetChainHash = [32]byte{
	0x89, 0x90, 0xe7, 0xa9, 0xaa, 0xed, 0x2f, 0xfe,
	0xd7, 0x3d, 0xbd, 0x70, 0x92, 0x12, 0x3d, 0x6f,
	0x28, 0x99, 0x30, 0x54, 0x0d, 0x76, 0x51, 0x33,
	0x62, 0x25, 0xdc, 0x17, 0x2e, 0x51, 0xb2, 0xce,
}
