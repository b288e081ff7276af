// Package shipping prices shipments through a carrier-rate API and writes the
// resulting cost back onto orders.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Address identifies one end of a shipment.
type Address struct {
	Name    string `json:"name,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Parcel is the physical package being priced.
type Parcel struct {
	Length       float64 `json:"length,string"`
	Width        float64 `json:"width,string"`
	Height       float64 `json:"height,string"`
	DistanceUnit string  `json:"distance_unit"`
	Weight       float64 `json:"weight,string"`
	MassUnit     string  `json:"mass_unit"`
}

// Rate is one carrier quote for a shipment.
type Rate struct {
	ObjectID string `json:"object_id"`
	Provider string `json:"provider"`
	ServiceLevel struct {
		Name string `json:"name"`
	} `json:"servicelevel"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	EstimatedDays int    `json:"estimated_days"`
}

// Shipment is the priced result of a rate request.
type Shipment struct {
	ObjectID string `json:"object_id"`
	Status   string `json:"status"`
	Rates    []Rate `json:"rates"`
}

// Client wraps the carrier-rate REST API.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type shipmentRequest struct {
	AddressFrom Address  `json:"address_from"`
	AddressTo   Address  `json:"address_to"`
	Parcels     []Parcel `json:"parcels"`
	Async       bool     `json:"async"`
}

// CreateShipment submits the addresses and parcel and returns the carrier's
// rate options.
func (c *Client) CreateShipment(ctx context.Context, from, to Address, parcel Parcel) (*Shipment, error) {
	payload, err := json.Marshal(shipmentRequest{
		AddressFrom: from,
		AddressTo:   to,
		Parcels:     []Parcel{parcel},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/shipments/", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "ShippoToken "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("shipping: shipment request failed with status %d", resp.StatusCode)
	}

	var shipment Shipment
	if err := json.Unmarshal(body, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}
