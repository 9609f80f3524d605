// Package fraud implements the deterministic click classifier. Classify is a
// pure function over request signals: no I/O, no shared state, and every
// input maps to a defined branch, so it can run synchronously on the click
// path and be unit-tested exhaustively.
package fraud

import (
	"strings"

	"github.com/avct/uasurfer"
)

// Verdict reason codes. An empty reason means the request was allowed.
const (
	ReasonEmptyUA        = "empty_ua"
	ReasonBotUA          = "bot_ua"
	ReasonProxyChain     = "proxy_chain"
	ReasonViaHeaderProxy = "via_header_proxy"
	ReasonDatacenterIP   = "datacenter_ip"
	// Outdated-engine reasons are "outdated_" + engine name, e.g. "outdated_chrome".
	reasonOutdatedPrefix = "outdated_"
)

// Verdict is the allow/block decision for a click together with its reason.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func allow() Verdict { return Verdict{Allowed: true} }

func block(r string) Verdict { return Verdict{Allowed: false, Reason: r} }

// allowedUASubstrings identifies legitimate ad crawlers that must never be
// blocked, whatever else the request looks like. Matched case-insensitively.
var allowedUASubstrings = []string{
	"mediapartners-google",
	"adsbot-google",
	"google-adwords",
}

// botUASubstrings are automation signatures matched case-insensitively
// against the user agent. "bot" alone covers googlebot, bingbot and most
// self-identifying crawlers.
var botUASubstrings = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"headless",
	"phantomjs",
	"slurp",
	"curl",
	"wget",
	"python-requests",
	"python/",
	"go-http-client",
	"java/",
	"okhttp",
	"httpclient",
	"libwww",
	"facebookexternalhit",
	"bingpreview",
}

// minEngineVersion lists the minimum acceptable major version per recognized
// browser engine. Real visitors auto-update; a years-old engine on the click
// path is overwhelmingly replayed or spoofed traffic.
var minEngineVersion = map[uasurfer.BrowserName]struct {
	name string
	min  int
}{
	uasurfer.BrowserChrome:  {name: "chrome", min: 80},
	uasurfer.BrowserFirefox: {name: "firefox", min: 78},
	uasurfer.BrowserSafari:  {name: "safari", min: 12},
	uasurfer.BrowserOpera:   {name: "opera", min: 60},
}

// Classify maps request signals to an allow/block verdict. Checks run in a
// fixed order and the first match wins; the ordering is part of the contract
// because the allow-list must override every later check.
//
//  1. empty user agent
//  2. allow-listed ad crawler (unconditional allow)
//  3. bot/automation user agent substring
//  4. recognized engine below its minimum version
//  5. X-Forwarded-For chain longer than two hops
//  6. non-empty Via header
//  7. client IP inside a known datacenter range
func Classify(userAgent, ipAddress, xForwardedFor, via string) Verdict {
	ua := strings.ToLower(strings.TrimSpace(userAgent))

	if ua == "" {
		return block(ReasonEmptyUA)
	}

	for _, s := range allowedUASubstrings {
		if strings.Contains(ua, s) {
			return allow()
		}
	}

	for _, s := range botUASubstrings {
		if strings.Contains(ua, s) {
			return block(ReasonBotUA)
		}
	}

	parsed := uasurfer.Parse(userAgent)
	if threshold, ok := minEngineVersion[parsed.Browser.Name]; ok {
		if parsed.Browser.Version.Major > 0 && parsed.Browser.Version.Major < threshold.min {
			return block(reasonOutdatedPrefix + threshold.name)
		}
	}

	if countForwardedHops(xForwardedFor) > 2 {
		return block(ReasonProxyChain)
	}

	if strings.TrimSpace(via) != "" {
		return block(ReasonViaHeaderProxy)
	}

	if IsDatacenterIP(ipAddress) {
		return block(ReasonDatacenterIP)
	}

	return allow()
}

// countForwardedHops counts the non-empty comma-separated entries of an
// X-Forwarded-For header.
func countForwardedHops(xff string) int {
	if strings.TrimSpace(xff) == "" {
		return 0
	}
	n := 0
	for _, part := range strings.Split(xff, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}
