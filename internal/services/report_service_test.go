package services_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"keyflow-backend/internal/models"
	"keyflow-backend/internal/repositories"
	"keyflow-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportDealership() *models.Dealership {
	return &models.Dealership{
		ID:            "dealer-1",
		Name:          "Metro Ford",
		DealerType:    models.DealerTypeAuto,
		YellowMinutes: 30,
		RedMinutes:    60,
	}
}

func parseCSV(t *testing.T, raw []byte) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)
	return records
}

func TestGenerateActivityCSV(t *testing.T) {
	svc := services.NewReportService(nil, nil, nil, nil, nil, nil)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	data := &services.ActivityReportData{
		Dealership: reportDealership(),
		From:       from,
		To:         to,
		Rows: []*repositories.EventLogRow{
			{
				CreatedAt:   time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
				Action:      models.ActionCheckout,
				ActorName:   "Ana",
				StockNumber: "A1234",
				Details:     map[string]interface{}{"reason": "TEST_DRIVE"},
			},
			{
				CreatedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
				Action:    models.ActionStatusChange,
				// no actor: recorded by the system
				StockNumber: "A1234",
				Details:     map[string]interface{}{"from": "ACTIVE", "to": "SOLD"},
			},
		},
	}

	raw, err := svc.GenerateActivityCSV(data)
	require.NoError(t, err)

	records := parseCSV(t, raw)
	require.Len(t, records, 6)

	assert.Equal(t, []string{"Key Activity Report", "Metro Ford"}, records[0])
	assert.Equal(t, []string{"Period", "01-Mar-2026", "08-Mar-2026"}, records[1])
	assert.Equal(t, []string{"#", "Time", "Action", "Stock No", "User", "Details"}, records[3])

	first := records[4]
	assert.Equal(t, "1", first[0])
	assert.Equal(t, "2026-03-02 09:15:00", first[1])
	assert.Equal(t, models.ActionCheckout, first[2])
	assert.Equal(t, "A1234", first[3])
	assert.Equal(t, "Ana", first[4])
	assert.Equal(t, "reason=TEST_DRIVE", first[5])

	second := records[5]
	assert.Equal(t, "system", second[4], "events without an actor are attributed to the system")
	assert.Equal(t, "from=ACTIVE  to=SOLD", second[5], "details are sorted by field name")
}

func TestGenerateOverdueCSV(t *testing.T) {
	svc := services.NewReportService(nil, nil, nil, nil, nil, nil)

	generated := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	data := &services.OverdueReportData{
		Dealership:  reportDealership(),
		GeneratedAt: generated,
		Rows: []*services.OverdueRow{
			{
				StockNumber:    "A1234",
				VehicleModel:   "F-150",
				CheckedOutBy:   "Ana",
				CheckoutReason: "TEST_DRIVE",
				Location:       "",
				CheckedOutAt:   generated.Add(-95 * time.Minute),
				ElapsedMinutes: 95,
				AlertState:     models.AlertRed,
			},
			{
				StockNumber:    "B7.",
				VehicleModel:   "Escape",
				CheckedOutBy:   "Raj",
				CheckoutReason: "SERVICE",
				Location:       "Bay 2",
				CheckedOutAt:   generated.Add(-40 * time.Minute),
				ElapsedMinutes: 40,
				AlertState:     models.AlertYellow,
			},
		},
	}

	raw, err := svc.GenerateOverdueCSV(data)
	require.NoError(t, err)

	records := parseCSV(t, raw)
	require.Len(t, records, 5)

	assert.Equal(t, []string{"Overdue Keys", "Metro Ford", "2026-03-10 14:30:00"}, records[0])
	assert.Equal(t, []string{"Stock No", "Model", "Out By", "Reason", "Location", "Checked Out At", "Minutes Out", "State"}, records[2])
	assert.Equal(t, []string{"A1234", "F-150", "Ana", "TEST_DRIVE", "", "2026-03-10 12:55:00", "95", "RED"}, records[3])
	assert.Equal(t, []string{"B7.", "Escape", "Raj", "SERVICE", "Bay 2", "2026-03-10 13:50:00", "40", "YELLOW"}, records[4])
}

func TestGenerateOverdueCSV_Empty(t *testing.T) {
	svc := services.NewReportService(nil, nil, nil, nil, nil, nil)

	data := &services.OverdueReportData{
		Dealership:  reportDealership(),
		GeneratedAt: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}

	raw, err := svc.GenerateOverdueCSV(data)
	require.NoError(t, err)

	records := parseCSV(t, raw)
	assert.Len(t, records, 3, "header rows only when nothing is overdue")
}

func TestGeneratePDFs(t *testing.T) {
	svc := services.NewReportService(nil, nil, nil, nil, nil, nil)

	activity := &services.ActivityReportData{
		Dealership: reportDealership(),
		From:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		Rows: []*repositories.EventLogRow{
			{
				CreatedAt:   time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
				Action:      models.ActionCheckout,
				ActorName:   "A very long salesperson name that gets truncated",
				StockNumber: "A1234",
				Details:     map[string]interface{}{"reason": "TEST_DRIVE", "location": "Front lot", "notes": "long enough details string to exercise the truncation path"},
			},
		},
	}

	pdfBytes, err := svc.GenerateActivityPDF(activity)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF")))

	overdue := &services.OverdueReportData{
		Dealership:  reportDealership(),
		GeneratedAt: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		Rows: []*services.OverdueRow{
			{StockNumber: "A1234", VehicleModel: "F-150", CheckedOutBy: "Ana", CheckoutReason: "TEST_DRIVE", ElapsedMinutes: 95, AlertState: models.AlertRed},
		},
	}

	pdfBytes, err = svc.GenerateOverduePDF(overdue)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF")))

	// The empty list renders the "none overdue" banner instead of a table
	overdue.Rows = nil
	pdfBytes, err = svc.GenerateOverduePDF(overdue)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF")))
}
