package risk

// datacenterKeywords are matched case-insensitively against the ISP and
// organization reported by the geolocation provider.
var datacenterKeywords = []string{
	"amazon", "aws", "google cloud", "microsoft", "azure", "digitalocean",
	"linode", "akamai", "vultr", "ovh", "hetzner", "contabo",
	"choopa", "leaseweb", "m247", "datacamp", "cdn77", "cloudflare",
	"oracle", "alibaba", "tencent", "scaleway", "hostinger", "godaddy",
	"hosting", "datacenter", "data center", "server", "vpn", "proxy",
	"nordvpn", "expressvpn", "private internet access", "mullvad", "surfshark",
}

// arabCountryCodes lists the ISO 3166-1 alpha-2 codes of the Arab League states.
var arabCountryCodes = map[string]struct{}{
	"AE": {}, "BH": {}, "DZ": {}, "EG": {}, "IQ": {}, "JO": {}, "KM": {},
	"KW": {}, "LB": {}, "LY": {}, "MA": {}, "MR": {}, "OM": {}, "PS": {},
	"QA": {}, "SA": {}, "SD": {}, "SO": {}, "SY": {}, "TN": {}, "YE": {},
	"DJ": {},
}
