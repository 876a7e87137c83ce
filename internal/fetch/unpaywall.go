package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gsekeres/marginalia/internal/gateway"
	"github.com/gsekeres/marginalia/internal/paper"
)

const destUnpaywall = "unpaywall"

// Unpaywall resolves open-access locations by DOI. The API requires an
// email on every request.
type Unpaywall struct {
	gw      *gateway.Gateway
	baseURL string
	email   string
}

type unpaywallResponse struct {
	BestOALocation *oaLocation  `json:"best_oa_location"`
	OALocations    []oaLocation `json:"oa_locations"`
}

type oaLocation struct {
	URLForPDF string `json:"url_for_pdf"`
}

// NewUnpaywall creates the Unpaywall adapter.
func NewUnpaywall(gw *gateway.Gateway, email string) *Unpaywall {
	if email == "" {
		email = "marginalia@example.com"
	}
	return &Unpaywall{
		gw:      gw,
		baseURL: "https://api.unpaywall.org",
		email:   email,
	}
}

func (u *Unpaywall) Name() string { return "unpaywall" }

func (u *Unpaywall) Resolve(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: u.Name()}

	if p.DOI == "" {
		att.FailureReason = "no DOI"
		return att
	}

	query := fmt.Sprintf("%s/v2/%s?email=%s", u.baseURL, p.DOI, url.QueryEscape(u.email))
	body, err := get(ctx, u.gw, destUnpaywall, query, nil)
	if err != nil {
		att.FailureReason = err.Error()
		return att
	}

	var resp unpaywallResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		att.FailureReason = fmt.Sprintf("parsing response: %v", err)
		return att
	}

	if resp.BestOALocation != nil && resp.BestOALocation.URLForPDF != "" {
		att.OK = true
		att.URL = resp.BestOALocation.URLForPDF
		return att
	}
	for _, loc := range resp.OALocations {
		if loc.URLForPDF != "" {
			att.OK = true
			att.URL = loc.URLForPDF
			return att
		}
	}

	att.FailureReason = "no open-access location"
	return att
}
