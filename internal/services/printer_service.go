package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PrinterService talks to the label printer bridge on the dealership LAN.
// Key tags carry the stock number in large type and the vehicle description
// under it.
type PrinterService struct {
	client  *http.Client
	baseURL string
}

// printJob is the bridge's wire format. Layout selects the label stock:
// "2up" prints two tags per sheet, "single" prints one.
type printJob struct {
	StockNumber string `json:"stock_number"`
	Description string `json:"description"`
	Layout      string `json:"layout"`
	Copies      int    `json:"copies"`
}

type printResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewPrinterService(baseURL string) *PrinterService {
	return &PrinterService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// PrintKeyTag prints key tag labels. Tag stock is 2-up, so even counts go
// out as full sheets and an odd count finishes with one single label.
func (s *PrinterService) PrintKeyTag(ctx context.Context, stockNumber, description string, copies int) error {
	if copies < 1 {
		copies = 1
	}

	var jobs []printJob
	if sheets := copies / 2; sheets > 0 {
		jobs = append(jobs, printJob{
			StockNumber: stockNumber,
			Description: description,
			Layout:      "2up",
			Copies:      sheets,
		})
	}
	if copies%2 == 1 {
		jobs = append(jobs, printJob{
			StockNumber: stockNumber,
			Description: description,
			Layout:      "single",
			Copies:      1,
		})
	}

	for _, job := range jobs {
		if err := s.send(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *PrinterService) send(ctx context.Context, job printJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal print job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/print", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach label printer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("label printer returned %s", resp.Status)
	}

	var result printResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode printer response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("print failed: %s", result.Message)
	}
	return nil
}
