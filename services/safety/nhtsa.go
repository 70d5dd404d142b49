package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"github.com/natelasko528/milwaukee-vehicle-finder/lib/telemetry"
)

var tracer = telemetry.Tracer("services/safety")

const defaultBaseURL = "https://api.nhtsa.gov"

// Client talks to the public NHTSA vehicle APIs. The endpoints are
// unauthenticated but flaky, so every call retries with backoff.
type Client struct {
	http *resty.Client
	// BaseURL overrides the NHTSA origin, used by tests.
	BaseURL string
}

func NewClient(httpClient *resty.Client) *Client {
	return &Client{http: httpClient, BaseURL: defaultBaseURL}
}

// Ratings is the crash-test outcome for one vehicle variant.
type Ratings struct {
	VehicleDescription      string `json:"vehicle_description"`
	OverallRating           string `json:"overall_rating"`
	OverallFrontCrashRating string `json:"front_crash_rating"`
	OverallSideCrashRating  string `json:"side_crash_rating"`
	RolloverRating          string `json:"rollover_rating"`
}

// Recall is one open manufacturer recall campaign.
type Recall struct {
	CampaignNumber string `json:"campaign_number"`
	Component      string `json:"component"`
	Summary        string `json:"summary"`
	Remedy         string `json:"remedy,omitempty"`
	ReportedAt     string `json:"reported_at,omitempty"`
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	operation := func() error {
		res, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(c.BaseURL + path)
		if err != nil {
			return err
		}
		if res.StatusCode() >= http.StatusInternalServerError {
			return fmt.Errorf("nhtsa returned status %d", res.StatusCode())
		}
		if res.StatusCode() != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("nhtsa returned status %d", res.StatusCode()))
		}
		if err := json.Unmarshal(res.Body(), out); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding nhtsa response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newRetryPolicy(), 2), ctx)
	return backoff.Retry(operation, policy)
}

func newRetryPolicy() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	return policy
}

// FetchRatings resolves the NHTSA vehicle id for the given year/make/model
// and then reads its crash ratings. An empty result is not an error, most
// older or low-volume vehicles were simply never tested.
func (c *Client) FetchRatings(ctx context.Context, makeName, modelName string, year int) (*Ratings, error) {
	ctx, span := tracer.Start(ctx, "FetchRatings")
	defer span.End()

	var listing struct {
		Results []struct {
			VehicleID          int    `json:"VehicleId"`
			VehicleDescription string `json:"VehicleDescription"`
		} `json:"Results"`
	}
	path := fmt.Sprintf("/SafetyRatings/modelyear/%d/make/%s/model/%s", year, makeName, modelName)
	if err := c.getJSON(ctx, path, nil, &listing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ratings lookup failed")
		return nil, err
	}
	if len(listing.Results) == 0 {
		return nil, nil
	}

	var detail struct {
		Results []struct {
			VehicleDescription      string `json:"VehicleDescription"`
			OverallRating           string `json:"OverallRating"`
			OverallFrontCrashRating string `json:"OverallFrontCrashRating"`
			OverallSideCrashRating  string `json:"OverallSideCrashRating"`
			RolloverRating          string `json:"RolloverRating"`
		} `json:"Results"`
	}
	detailPath := fmt.Sprintf("/SafetyRatings/VehicleId/%d", listing.Results[0].VehicleID)
	if err := c.getJSON(ctx, detailPath, nil, &detail); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ratings detail failed")
		return nil, err
	}
	if len(detail.Results) == 0 {
		return nil, nil
	}

	r := detail.Results[0]
	return &Ratings{
		VehicleDescription:      r.VehicleDescription,
		OverallRating:           r.OverallRating,
		OverallFrontCrashRating: r.OverallFrontCrashRating,
		OverallSideCrashRating:  r.OverallSideCrashRating,
		RolloverRating:          r.RolloverRating,
	}, nil
}

// FetchRecalls lists the open recall campaigns for a year/make/model.
func (c *Client) FetchRecalls(ctx context.Context, makeName, modelName string, year int) ([]Recall, error) {
	ctx, span := tracer.Start(ctx, "FetchRecalls")
	defer span.End()

	var response struct {
		Results []struct {
			NHTSACampaignNumber string `json:"NHTSACampaignNumber"`
			Component           string `json:"Component"`
			Summary             string `json:"Summary"`
			Remedy              string `json:"Remedy"`
			ReportReceivedDate  string `json:"ReportReceivedDate"`
		} `json:"results"`
	}
	params := map[string]string{
		"make":      makeName,
		"model":     modelName,
		"modelYear": fmt.Sprint(year),
	}
	if err := c.getJSON(ctx, "/recalls/recallsByVehicle", params, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recall lookup failed")
		return nil, err
	}

	recalls := make([]Recall, 0, len(response.Results))
	for _, r := range response.Results {
		recalls = append(recalls, Recall{
			CampaignNumber: r.NHTSACampaignNumber,
			Component:      r.Component,
			Summary:        r.Summary,
			Remedy:         r.Remedy,
			ReportedAt:     r.ReportReceivedDate,
		})
	}
	return recalls, nil
}

// FetchComplaintCount reports how many owner complaints NHTSA holds for a
// year/make/model. Individual complaint text is long and rarely useful in
// a listing view, so only the count travels.
func (c *Client) FetchComplaintCount(ctx context.Context, makeName, modelName string, year int) (int, error) {
	ctx, span := tracer.Start(ctx, "FetchComplaintCount")
	defer span.End()

	var response struct {
		Count int `json:"count"`
	}
	params := map[string]string{
		"make":      makeName,
		"model":     modelName,
		"modelYear": fmt.Sprint(year),
	}
	if err := c.getJSON(ctx, "/complaints/complaintsByVehicle", params, &response); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complaint lookup failed")
		return 0, err
	}
	return response.Count, nil
}
