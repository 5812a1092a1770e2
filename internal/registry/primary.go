package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"carbon_dashboard/internal/fetcher"
	"carbon_dashboard/internal/models"
)

const (
	defaultPrimaryStandard = "Verified Carbon Standard"
	primaryDetailURL       = "https://registry.verra.org/app/projectDetail/VCS/"
	primaryStatus          = "Registered"
	primarySort            = "createdAt desc"
)

// Primary queries the primary registry for the newest registered projects
// of one project type.
type Primary struct {
	client      *fetcher.Client
	endpoint    string
	projectType string
	pageSize    int
	pricer      Pricer
}

func NewPrimary(client *fetcher.Client, endpoint, projectType string, pageSize int, pricer Pricer) *Primary {
	return &Primary{
		client:      client,
		endpoint:    endpoint,
		projectType: projectType,
		pageSize:    pageSize,
		pricer:      pricer,
	}
}

func (p *Primary) Name() string { return NamePrimary }

func (p *Primary) Projects(ctx context.Context) ([]models.OffsetProject, error) {
	params := url.Values{
		"maxResults":  {strconv.Itoa(p.pageSize)},
		"$sort":       {primarySort},
		"status":      {primaryStatus},
		"projectType": {p.projectType},
	}
	root, err := p.client.FetchJSON(ctx, p.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("primary registry: %w", err)
	}

	recs := records(root, "value", "data", "results")
	if len(recs) > p.pageSize {
		recs = recs[:p.pageSize]
	}

	projects := make([]models.OffsetProject, 0, len(recs))
	for _, rec := range recs {
		projects = append(projects, p.mapRecord(rec))
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("primary registry: %w", ErrNoProjects)
	}
	return projects, nil
}

func (p *Primary) mapRecord(rec gjson.Result) models.OffsetProject {
	id := firstString(rec, "", "resourceIdentifier", "id")
	pricePerCredit, simulated := price(rec, p.pricer, "pricePerCredit", "price")

	location := joinNonEmpty(", ", rec.Get("region").String(), rec.Get("country").String())
	if location == "" {
		location = firstString(rec, "Unknown", "location")
	}

	link := firstString(rec, "", "url", "projectUrl")
	if link == "" && id != "" {
		link = primaryDetailURL + url.PathEscape(id)
	}

	return models.OffsetProject{
		ID:               id,
		Name:             firstString(rec, "Unnamed project", "resourceName", "name"),
		Location:         location,
		Category:         firstString(rec, p.projectType, "protocolCategory", "projectType", "category"),
		Description:      firstString(rec, "No description available.", "description", "summary"),
		CreditsAvailable: firstInt(rec, "estAnnualEmissionReductions", "creditsAvailable", "credits"),
		PricePerCredit:   pricePerCredit,
		Standard:         firstString(rec, defaultPrimaryStandard, "programName", "standard"),
		URL:              link,
		ImageURL:         firstString(rec, "", "imageUrl", "image"),
		Registry:         NamePrimary,
		PriceSimulated:   simulated,
	}
}
