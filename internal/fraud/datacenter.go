package fraud

import "net/netip"

// datacenterRanges is a plain ordered table of known hosting and cloud
// provider networks, checked by masked containment with a linear scan. The
// table is small enough that a sorted or trie structure is not worth it yet.
var datacenterRanges = mustPrefixes(
	// Amazon Web Services
	"3.208.0.0/12",
	"13.224.0.0/14",
	"18.204.0.0/14",
	"34.192.0.0/12",
	"52.0.0.0/11",
	"54.144.0.0/12",
	// Google Cloud
	"34.64.0.0/10",
	"35.184.0.0/13",
	"35.192.0.0/12",
	"104.154.0.0/15",
	"130.211.0.0/16",
	// Microsoft Azure
	"13.64.0.0/11",
	"20.33.0.0/16",
	"40.74.0.0/15",
	"52.224.0.0/11",
	// DigitalOcean
	"45.55.0.0/16",
	"46.101.0.0/16",
	"104.131.0.0/16",
	"104.236.0.0/16",
	"138.68.0.0/16",
	"142.93.0.0/16",
	"159.65.0.0/16",
	"159.89.0.0/16",
	"167.99.0.0/16",
	"178.62.0.0/16",
	// Linode
	"45.33.0.0/17",
	"172.104.0.0/15",
	"139.162.0.0/16",
	// Vultr
	"45.32.0.0/16",
	"108.61.0.0/16",
	"149.28.0.0/16",
	// OVH
	"51.38.0.0/16",
	"51.68.0.0/16",
	"51.75.0.0/16",
	"151.80.0.0/16",
	// Hetzner
	"88.198.0.0/16",
	"95.216.0.0/15",
	"116.202.0.0/15",
	"135.181.0.0/16",
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		out = append(out, netip.MustParsePrefix(c))
	}
	return out
}

// IsDatacenterIP reports whether the address falls inside a known datacenter
// or cloud provider range. Unparseable addresses are not treated as
// datacenter traffic; the classifier stays total either way.
func IsDatacenterIP(ipAddress string) bool {
	addr, err := netip.ParseAddr(ipAddress)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range datacenterRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
