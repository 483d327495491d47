package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const ipapiFields = "status,message,country,countryCode,city,timezone,offset,isp,org,as,proxy,hosting,query"

// IPAPIProvider queries ip-api.com. It is the only provider whose answer
// carries the ISP and proxy flag needed for scoring.
type IPAPIProvider struct {
	baseURL string
	client  *http.Client
}

func NewIPAPIProvider(baseURL string, client *http.Client) *IPAPIProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &IPAPIProvider{baseURL: baseURL, client: client}
}

func (p *IPAPIProvider) Name() string { return "ipapi" }

type ipapiResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Query       string `json:"query"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
	Offset      *int   `json:"offset"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	AS          string `json:"as"`
	Proxy       bool   `json:"proxy"`
	Hosting     bool   `json:"hosting"`
}

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*GeoInfo, error) {
	endpoint := p.baseURL + url.PathEscape(ip) + "?fields=" + ipapiFields
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" {
		return nil, fmt.Errorf("lookup rejected: %s", body.Message)
	}

	offset := body.Offset
	if offset == nil {
		offset = OffsetForZone(body.Timezone)
	}
	org := body.Org
	if org == "" {
		org = body.AS
	}

	return &GeoInfo{
		IP:           body.Query,
		CountryName:  body.Country,
		CountryCode:  body.CountryCode,
		City:         body.City,
		ISP:          body.ISP,
		Org:          org,
		SecurityFlag: body.Proxy,
		UTCOffset:    offset,
		HasRiskData:  true,
	}, nil
}
