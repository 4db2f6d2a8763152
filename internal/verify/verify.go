// Package verify confirms which egress address a target actually observed by
// parsing the rendered page for displayed IP addresses.
package verify

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// textNodes returns every text node in document order.
func textNodes(doc *html.Node) []*html.Node {
	return htmlquery.Find(doc, "//text()")
}

// ExtractIPs returns every valid IPv4 address displayed in the page text, in
// document order, deduplicated.
func ExtractIPs(markup string) []string {
	doc, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var out []string
	for _, node := range textNodes(doc) {
		for _, match := range ipv4Pattern.FindAllString(node.Data, -1) {
			addr, err := netip.ParseAddr(match)
			if err != nil || !addr.Is4() {
				continue
			}
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			out = append(out, match)
		}
	}
	return out
}

// PublicIPs filters out loopback, link-local and RFC1918 addresses.
func PublicIPs(ips []string) []string {
	var out []string
	for _, ip := range ips {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			continue
		}
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			continue
		}
		out = append(out, ip)
	}
	return out
}

// ProxyConfirmed reports the first public address the page displayed and
// whether it matches the expected proxy egress. An empty expected address
// never confirms.
func ProxyConfirmed(html, expected string) (detected string, confirmed bool) {
	public := PublicIPs(ExtractIPs(html))
	if len(public) == 0 {
		return "", false
	}
	detected = public[0]
	if expected == "" {
		return detected, false
	}
	for _, ip := range public {
		if ip == expected {
			return ip, true
		}
	}
	return detected, false
}
