package models

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/kilometri/kilometri_backend/config"
	"github.com/shopspring/decimal"
	"googlemaps.github.io/maps"
)

// DistanceResult is the outcome of a Distance Matrix lookup. Addresses come
// back geocoded (Google's standardized form), and the raw response is kept
// so trips created from it can store their route payload.
type DistanceResult struct {
	DistanceKm      decimal.Decimal `json:"distance_km"`
	DistanceMeters  int             `json:"distance_meters"`
	DurationSeconds int             `json:"duration_seconds"`
	StartAddress    string          `json:"start_address"`
	EndAddress      string          `json:"end_address"`
	RouteData       json.RawMessage `json:"route_data"`
}

type DistanceInput struct {
	StartAddress string `json:"start_address" binding:"required"`
	EndAddress   string `json:"end_address" binding:"required"`
}

// CalculateDistance resolves the driving distance between two addresses.
// Unresolvable addresses are a validation problem for the caller; transport
// and quota failures surface as ErrMapsUnavailable.
func CalculateDistance(ctx context.Context, startAddress string, endAddress string) (*DistanceResult, error) {
	startAddress = strings.TrimSpace(startAddress)
	endAddress = strings.TrimSpace(endAddress)

	fe := FieldErrors{}
	if startAddress == "" {
		fe["start_address"] = "start address cannot be empty"
	}
	if endAddress == "" {
		fe["end_address"] = "end address cannot be empty"
	}
	if len(fe) > 0 {
		return nil, fe
	}

	logger := config.GetLogger()

	apiKey := os.Getenv("GOOGLE_MAPS_API_KEY")
	if apiKey == "" {
		config.LogError(logger, "maps.go", "CalculateDistance", "GOOGLE_MAPS_API_KEY not set", nil, ErrMapsUnavailable)
		return nil, ErrMapsUnavailable
	}

	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		config.LogError(logger, "maps.go", "CalculateDistance", "maps.NewClient", nil, err)
		return nil, ErrMapsUnavailable
	}

	req := &maps.DistanceMatrixRequest{
		Origins:      []string{startAddress},
		Destinations: []string{endAddress},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	resp, err := client.DistanceMatrix(ctx, req)
	if err != nil {
		config.LogError(logger, "maps.go", "CalculateDistance", "DistanceMatrix", req, err)
		return nil, ErrMapsUnavailable
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return nil, ErrMapsUnavailable
	}

	element := resp.Rows[0].Elements[0]
	switch element.Status {
	case "OK":
		// fall through
	case "NOT_FOUND":
		return nil, FieldErrors{"address": "one or both addresses could not be found"}
	case "ZERO_RESULTS":
		return nil, FieldErrors{"address": "no route found between these addresses"}
	default:
		config.LogError(logger, "maps.go", "CalculateDistance", "element status "+element.Status, req, ErrMapsUnavailable)
		return nil, ErrMapsUnavailable
	}

	// Google returns meters as an integer; convert to km with 2 decimals.
	distanceKm := decimal.NewFromInt(int64(element.Distance.Meters)).
		Div(decimal.NewFromInt(1000)).
		Round(2)

	routeData, err := json.Marshal(resp)
	if err != nil {
		routeData = nil
	}

	result := DistanceResult{
		DistanceKm:      distanceKm,
		DistanceMeters:  element.Distance.Meters,
		DurationSeconds: int(element.Duration / time.Second),
		StartAddress:    startAddress,
		EndAddress:      endAddress,
		RouteData:       routeData,
	}
	if len(resp.OriginAddresses) > 0 && resp.OriginAddresses[0] != "" {
		result.StartAddress = resp.OriginAddresses[0]
	}
	if len(resp.DestinationAddresses) > 0 && resp.DestinationAddresses[0] != "" {
		result.EndAddress = resp.DestinationAddresses[0]
	}

	return &result, nil
}
