package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"sync"
	"time"

	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
)

// ActivityReportData holds one dealership's event log for a date range
type ActivityReportData struct {
	Dealership *models.Dealership
	From       time.Time
	To         time.Time
	Rows       []*repositories.EventLogRow
}

// OverdueRow is one key out past the yellow threshold at generation time
type OverdueRow struct {
	StockNumber    string
	VehicleModel   string
	CheckedOutBy   string
	CheckoutReason string
	Location       string
	CheckedOutAt   time.Time
	ElapsedMinutes int
	AlertState     string
}

// OverdueReportData holds the currently-overdue list for one dealership
type OverdueReportData struct {
	Dealership  *models.Dealership
	GeneratedAt time.Time
	Rows        []*OverdueRow
}

// ReportService generates PDF and CSV exports of the event log and the
// currently-overdue key list.
type ReportService struct {
	DealershipRepo *repositories.DealershipRepository
	EventRepo      *repositories.KeyEventRepository
	SessionRepo    *repositories.CheckoutSessionRepository
	KeyRepo        *repositories.KeyRepository
	UserRepo       *repositories.UserRepository
	Clock          timeutil.Clock
}

// NewReportService creates a new report service
func NewReportService(
	dealershipRepo *repositories.DealershipRepository,
	eventRepo *repositories.KeyEventRepository,
	sessionRepo *repositories.CheckoutSessionRepository,
	keyRepo *repositories.KeyRepository,
	userRepo *repositories.UserRepository,
	clock timeutil.Clock,
) *ReportService {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &ReportService{
		DealershipRepo: dealershipRepo,
		EventRepo:      eventRepo,
		SessionRepo:    sessionRepo,
		KeyRepo:        keyRepo,
		UserRepo:       userRepo,
		Clock:          clock,
	}
}

// GetActivityReportData fetches the event log for a date range. The range is
// half-open: [from, to).
func (s *ReportService) GetActivityReportData(ctx context.Context, dealershipID string, from, to time.Time) (*ActivityReportData, error) {
	dealership, err := s.DealershipRepo.Get(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	log, err := s.EventRepo.ListLogRows(ctx, dealershipID, from, to)
	if err != nil {
		return nil, err
	}

	return &ActivityReportData{
		Dealership: dealership,
		From:       from,
		To:         to,
		Rows:       log,
	}, nil
}

// GetOverdueReportData fetches every key out past the yellow threshold,
// longest out first. Key and user details are fetched in parallel.
func (s *ReportService) GetOverdueReportData(ctx context.Context, dealershipID string) (*OverdueReportData, error) {
	dealership, err := s.DealershipRepo.Get(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	open, err := s.SessionRepo.ListOpenByDealership(ctx, dealershipID)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()

	// Use parallel fetching with worker pool
	type result struct {
		index int
		row   *OverdueRow
	}

	results := make(chan result, len(open))
	jobs := make(chan struct {
		index   int
		session *models.CheckoutSession
	}, len(open))

	var wg sync.WaitGroup
	numWorkers := 10
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				sess := job.session
				elapsed := timeutil.ElapsedMinutes(sess.CheckedOutAt, now)
				state := ComputeAlertState(elapsed, dealership.YellowMinutes, dealership.RedMinutes)
				if state == models.AlertGreen {
					results <- result{index: job.index}
					continue
				}

				row := &OverdueRow{
					CheckoutReason: sess.CheckoutReason,
					CheckedOutAt:   sess.CheckedOutAt,
					ElapsedMinutes: elapsed,
					AlertState:     state,
				}
				if sess.CurrentLocation != nil {
					row.Location = *sess.CurrentLocation
				}
				if ks, err := s.KeyRepo.Get(ctx, dealershipID, sess.KeyID); err == nil {
					row.StockNumber = ks.Key.StockNumber
					row.VehicleModel = ks.Key.VehicleModel
				}
				if u, err := s.UserRepo.Get(ctx, sess.CheckedOutByUserID); err == nil {
					row.CheckedOutBy = u.Name
				}
				results <- result{index: job.index, row: row}
			}
		}()
	}

	for i, sess := range open {
		jobs <- struct {
			index   int
			session *models.CheckoutSession
		}{index: i, session: sess}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*OverdueRow, len(open))
	for r := range results {
		ordered[r.index] = r.row
	}

	// Drop the on-time sessions; the rest keep checkout order, longest first.
	var overdue []*OverdueRow
	for _, row := range ordered {
		if row != nil {
			overdue = append(overdue, row)
		}
	}
	sort.SliceStable(overdue, func(i, j int) bool {
		return overdue[i].ElapsedMinutes > overdue[j].ElapsedMinutes
	})

	return &OverdueReportData{
		Dealership:  dealership,
		GeneratedAt: now,
		Rows:        overdue,
	}, nil
}

// GenerateActivityPDF renders the event log as a landscape PDF
func (s *ReportService) GenerateActivityPDF(data *ActivityReportData) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "") // Landscape for more columns
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 18)
	pdf.CellFormat(277, 12, fmt.Sprintf("%s - Key Activity Report", data.Dealership.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(277, 8, fmt.Sprintf("Period: %s to %s", data.From.Format("02-Jan-2006"), data.To.Format("02-Jan-2006")), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(277, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Table header
	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(12, 7, "#", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Time", "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 7, "Action", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 7, "Stock No", "1", 0, "C", true, 0, "")
	pdf.CellFormat(45, 7, "User", "1", 0, "C", true, 0, "")
	pdf.CellFormat(105, 7, "Details", "1", 1, "C", true, 0, "")

	// Table rows
	pdf.SetFont("Arial", "", 9)
	for i, row := range data.Rows {
		// Alternate row colors
		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(245, 245, 245)
		}

		actor := row.ActorName
		if actor == "" {
			actor = "system"
		}
		if len(actor) > 20 {
			actor = actor[:17] + "..."
		}
		details := formatEventDetails(row.Details)
		if len(details) > 58 {
			details = details[:55] + "..."
		}

		pdf.CellFormat(12, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", true, 0, "")
		pdf.CellFormat(40, 6, row.CreatedAt.Format("02-Jan 03:04 PM"), "1", 0, "C", true, 0, "")
		pdf.CellFormat(40, 6, row.Action, "1", 0, "L", true, 0, "")
		pdf.CellFormat(35, 6, row.StockNumber, "1", 0, "C", true, 0, "")
		pdf.CellFormat(45, 6, actor, "1", 0, "L", true, 0, "")
		pdf.CellFormat(105, 6, details, "1", 1, "L", true, 0, "")
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateActivityCSV renders the event log as CSV
func (s *ReportService) GenerateActivityCSV(data *ActivityReportData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	// Header info
	w.Write([]string{"Key Activity Report", data.Dealership.Name})
	w.Write([]string{"Period", data.From.Format("02-Jan-2006"), data.To.Format("02-Jan-2006")})
	w.Write([]string{""})

	// Rows header
	w.Write([]string{"#", "Time", "Action", "Stock No", "User", "Details"})

	for i, row := range data.Rows {
		actor := row.ActorName
		if actor == "" {
			actor = "system"
		}
		w.Write([]string{
			fmt.Sprintf("%d", i+1),
			row.CreatedAt.Format(timeutil.DateTimeLayout),
			row.Action,
			row.StockNumber,
			actor,
			formatEventDetails(row.Details),
		})
	}

	w.Flush()
	return buf.Bytes(), nil
}

// GenerateOverduePDF renders the currently-overdue list as a PDF
func (s *ReportService) GenerateOverduePDF(data *OverdueReportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, fmt.Sprintf("%s - Overdue Keys", data.Dealership.Name), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", data.GeneratedAt.Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.CellFormat(190, 6, fmt.Sprintf("Thresholds: yellow %d min, red %d min", data.Dealership.YellowMinutes, data.Dealership.RedMinutes), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	if len(data.Rows) == 0 {
		pdf.SetFillColor(200, 255, 200)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 10, "No keys are currently overdue", "1", 1, "C", true, 0, "")
	} else {
		// Table header
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(200, 200, 200)
		pdf.CellFormat(25, 7, "Stock No", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Model", "1", 0, "C", true, 0, "")
		pdf.CellFormat(35, 7, "Out By", "1", 0, "C", true, 0, "")
		pdf.CellFormat(28, 7, "Reason", "1", 0, "C", true, 0, "")
		pdf.CellFormat(27, 7, "Location", "1", 0, "C", true, 0, "")
		pdf.CellFormat(22, 7, "Minutes", "1", 0, "C", true, 0, "")
		pdf.CellFormat(18, 7, "State", "1", 1, "C", true, 0, "")

		pdf.SetFont("Arial", "", 9)
		for _, row := range data.Rows {
			// Red rows get a light red fill so they stand out on paper
			if row.AlertState == models.AlertRed {
				pdf.SetFillColor(255, 200, 200)
			} else {
				pdf.SetFillColor(255, 245, 200)
			}

			model := row.VehicleModel
			if len(model) > 16 {
				model = model[:13] + "..."
			}
			name := row.CheckedOutBy
			if len(name) > 16 {
				name = name[:13] + "..."
			}
			location := row.Location
			if len(location) > 12 {
				location = location[:9] + "..."
			}

			pdf.CellFormat(25, 6, row.StockNumber, "1", 0, "C", true, 0, "")
			pdf.CellFormat(35, 6, model, "1", 0, "L", true, 0, "")
			pdf.CellFormat(35, 6, name, "1", 0, "L", true, 0, "")
			pdf.CellFormat(28, 6, row.CheckoutReason, "1", 0, "C", true, 0, "")
			pdf.CellFormat(27, 6, location, "1", 0, "C", true, 0, "")
			pdf.CellFormat(22, 6, fmt.Sprintf("%d", row.ElapsedMinutes), "1", 0, "C", true, 0, "")
			pdf.CellFormat(18, 6, row.AlertState, "1", 1, "C", true, 0, "")
		}
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateOverdueCSV renders the currently-overdue list as CSV
func (s *ReportService) GenerateOverdueCSV(data *OverdueReportData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"Overdue Keys", data.Dealership.Name, data.GeneratedAt.Format(timeutil.DateTimeLayout)})
	w.Write([]string{""})
	w.Write([]string{"Stock No", "Model", "Out By", "Reason", "Location", "Checked Out At", "Minutes Out", "State"})

	for _, row := range data.Rows {
		w.Write([]string{
			row.StockNumber,
			row.VehicleModel,
			row.CheckedOutBy,
			row.CheckoutReason,
			row.Location,
			row.CheckedOutAt.Format(timeutil.DateTimeLayout),
			fmt.Sprintf("%d", row.ElapsedMinutes),
			row.AlertState,
		})
	}

	w.Flush()
	return buf.Bytes(), nil
}

// formatEventDetails flattens a details map into "key=value" pairs with a
// stable field order.
func formatEventDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%s=%v", k, details[k])
	}
	return b.String()
}
