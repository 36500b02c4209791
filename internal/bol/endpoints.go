package bol

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jmespath-community/go-jmespath"
)

// Item paths for list endpoints.
const (
	OrdersItemsPath    = "orders"
	ReturnsItemsPath   = "returns"
	CampaignsItemsPath = "campaigns"
)

// OrdersPage lists orders of every status and fulfilment method.
func OrdersPage(page int) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/orders",
		Query: url.Values{
			"page":              {strconv.Itoa(page)},
			"fulfilment-method": {"ALL"},
			"status":            {"ALL"},
		},
	}
}

// ReturnsPage lists unhandled returns.
func ReturnsPage(page int) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/returns",
		Query: url.Values{
			"page":    {strconv.Itoa(page)},
			"handled": {"false"},
		},
	}
}

// CampaignsPage lists sponsored-products campaigns.
func CampaignsPage(page int) Request {
	return Request{
		Surface: SurfaceAdvertising,
		Method:  http.MethodPost,
		Path:    "/campaign-management/campaigns/list",
		Body:    map[string]any{"page": page, "pageSize": DefaultPageSize},
	}
}

// ProcessStatusRequest polls an asynchronous process.
func ProcessStatusRequest(processStatusID string) Request {
	return Request{
		Surface: SurfaceShared,
		Method:  http.MethodGet,
		Path:    "/process-status/" + url.PathEscape(processStatusID),
	}
}

// CompetingOffers lists offers from other sellers for one EAN.
func CompetingOffers(ean string) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/products/" + url.PathEscape(ean) + "/offers",
		Query: url.Values{
			"page":            {"1"},
			"country-code":    {"NL"},
			"best-offer-only": {"false"},
			"condition":       {"ALL"},
		},
	}
}

// ProductRatings returns the rating histogram for one EAN.
func ProductRatings(ean string) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/products/" + url.PathEscape(ean) + "/ratings",
	}
}

// ProductRanks returns search ranks for one EAN on the given day.
func ProductRanks(ean string, day time.Time) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/insights/product-ranks",
		Query: url.Values{
			"ean":  {ean},
			"date": {day.Format(time.DateOnly)},
			"type": {"SEARCH"},
			"page": {"1"},
		},
	}
}

// CatalogProduct returns catalog content for one EAN.
func CatalogProduct(ean string) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/content/catalog-products/" + url.PathEscape(ean),
	}
}

// SalesForecast returns the sales forecast for one offer.
func SalesForecast(offerID string, weeksAhead int) Request {
	return Request{
		Surface: SurfaceRetailer,
		Method:  http.MethodGet,
		Path:    "/insights/sales-forecast",
		Query: url.Values{
			"offer-id":    {offerID},
			"weeks-ahead": {strconv.Itoa(weeksAhead)},
		},
	}
}

// ExportEndpoint pairs the submit and download requests of one export kind.
type ExportEndpoint struct {
	Submit   func() Request
	Download func(entityID string) Request
}

var exportEndpoints = map[string]ExportEndpoint{
	"offers": {
		Submit: func() Request {
			return Request{
				Surface: SurfaceRetailer,
				Method:  http.MethodPost,
				Path:    "/offers/export",
				Body:    map[string]string{"format": "CSV"},
			}
		},
		Download: func(entityID string) Request {
			return Request{
				Surface: SurfaceRetailer,
				Method:  http.MethodGet,
				Path:    "/offers/export/" + url.PathEscape(entityID),
				Headers: map[string]string{"Accept": MediaTypeRetailerCSV},
			}
		},
	},
}

// Export returns the endpoints for an export data type.
func Export(dataType string) (ExportEndpoint, bool) {
	ep, ok := exportEndpoints[dataType]
	return ep, ok
}

// Upstream process states.
const (
	ProcessPending    = "PENDING"
	ProcessInProgress = "IN_PROGRESS"
	ProcessSuccess    = "SUCCESS"
	ProcessFailure    = "FAILURE"
	ProcessTimeout    = "TIMEOUT"
)

// ProcessStatus is the subset of a process-status document the sync needs.
type ProcessStatus struct {
	ProcessStatusID string
	EntityID        string
	Status          string
	ErrorMessage    string
}

const processStatusQuery = "{id: processStatusId, entity: entityId, status: status, error: errorMessage}"

// ParseProcessStatus extracts the process status fields from a JSON document.
func ParseProcessStatus(data any) (ProcessStatus, error) {
	if data == nil {
		return ProcessStatus{}, ErrNoData
	}
	res, err := jmespath.Search(processStatusQuery, data)
	if err != nil {
		return ProcessStatus{}, fmt.Errorf("read process status: %w", err)
	}
	m, _ := res.(map[string]any)
	return ProcessStatus{
		ProcessStatusID: scalarString(m["id"]),
		EntityID:        scalarString(m["entity"]),
		Status:          scalarString(m["status"]),
		ErrorMessage:    scalarString(m["error"]),
	}, nil
}

// scalarString renders JSON scalars as strings. Numbers come back as float64
// from encoding/json, so integral values drop the fraction.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
