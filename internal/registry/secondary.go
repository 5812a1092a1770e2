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
	secondaryStandard  = "Gold Standard"
	secondaryDetailURL = "https://registry.goldstandard.org/projects/details/"
)

// Secondary is the fallback registry. Its records use a different shape
// and it only filters by status.
type Secondary struct {
	client      *fetcher.Client
	endpoint    string
	status      string
	pageSize    int
	defaultType string
	pricer      Pricer
}

func NewSecondary(client *fetcher.Client, endpoint, status string, pageSize int, defaultType string, pricer Pricer) *Secondary {
	return &Secondary{
		client:      client,
		endpoint:    endpoint,
		status:      status,
		pageSize:    pageSize,
		defaultType: defaultType,
		pricer:      pricer,
	}
}

func (s *Secondary) Name() string { return NameSecondary }

func (s *Secondary) Projects(ctx context.Context) ([]models.OffsetProject, error) {
	params := url.Values{
		"size":   {strconv.Itoa(s.pageSize)},
		"status": {s.status},
	}
	root, err := s.client.FetchJSON(ctx, s.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("secondary registry: %w", err)
	}

	recs := records(root, "projects", "data", "items")
	if len(recs) > s.pageSize {
		recs = recs[:s.pageSize]
	}

	projects := make([]models.OffsetProject, 0, len(recs))
	for _, rec := range recs {
		projects = append(projects, s.mapRecord(rec))
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("secondary registry: %w", ErrNoProjects)
	}
	return projects, nil
}

func (s *Secondary) mapRecord(rec gjson.Result) models.OffsetProject {
	id := firstString(rec, "", "id", "gsid")
	pricePerCredit, simulated := price(rec, s.pricer, "price_per_credit", "price")

	link := firstString(rec, "", "project_url")
	if link == "" && id != "" {
		link = secondaryDetailURL + url.PathEscape(id)
	}

	return models.OffsetProject{
		ID:               id,
		Name:             firstString(rec, "Unnamed project", "name", "title"),
		Location:         firstString(rec, "Unknown", "country", "location"),
		Category:         firstString(rec, s.defaultType, "type", "project_type"),
		Description:      firstString(rec, "No description available.", "description"),
		CreditsAvailable: firstInt(rec, "estimated_annual_credits", "credits_available"),
		PricePerCredit:   pricePerCredit,
		Standard:         secondaryStandard,
		URL:              link,
		ImageURL:         firstString(rec, "", "image_url", "photo"),
		Registry:         NameSecondary,
		PriceSimulated:   simulated,
	}
}
