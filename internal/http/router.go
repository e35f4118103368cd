package http

import (
	"net/http"

	"keyflow-backend/internal/handlers"
	"keyflow-backend/internal/live"
	"keyflow-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	authHandler *handlers.AuthHandler,
	totpHandler *handlers.TOTPHandler,
	dealershipHandler *handlers.DealershipHandler,
	keyHandler *handlers.KeyHandler,
	userHandler *handlers.UserHandler,
	inviteHandler *handlers.InviteHandler,
	repairHandler *handlers.RepairHandler,
	printerHandler *handlers.PrinterHandler,
	healthHandler *handlers.HealthHandler,
	hub *live.Hub,
	authMiddleware *middleware.AuthMiddleware,
) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	// Public API routes - Authentication
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/verify-totp", authHandler.VerifyTOTP).Methods("POST")

	// Public API routes - Invite claim (the token is the credential)
	r.HandleFunc("/api/invites/claim", inviteHandler.ClaimInvite).Methods("POST")

	// Protected API routes - Own account
	authAPI := r.PathPrefix("/api/auth").Subrouter()
	authAPI.Use(authMiddleware.Authenticate)
	authAPI.HandleFunc("/me", authHandler.Me).Methods("GET")
	authAPI.HandleFunc("/change-pin", authHandler.ChangePIN).Methods("POST")

	// Protected API routes - 2FA management (the service restricts setup to
	// the owner account)
	totpAPI := r.PathPrefix("/api/auth/2fa").Subrouter()
	totpAPI.Use(authMiddleware.Authenticate)
	totpAPI.HandleFunc("/setup", totpHandler.SetupTOTP).Methods("POST")
	totpAPI.HandleFunc("/enable", totpHandler.EnableTOTP).Methods("POST")
	totpAPI.HandleFunc("/disable", totpHandler.DisableTOTP).Methods("POST")
	totpAPI.HandleFunc("/status", totpHandler.GetStatus).Methods("GET")

	// Owner-only routes - dealership provisioning and the cross-store views
	r.HandleFunc("/api/dealerships", authMiddleware.RequireOwner(http.HandlerFunc(dealershipHandler.Create)).ServeHTTP).Methods("POST")
	r.HandleFunc("/api/dealerships", authMiddleware.RequireOwner(http.HandlerFunc(dealershipHandler.List)).ServeHTTP).Methods("GET")
	r.HandleFunc("/api/login-logs", authMiddleware.RequireOwner(http.HandlerFunc(userHandler.ListAllLoginLogs)).ServeHTTP).Methods("GET")

	// Protected API routes - everything scoped to one dealership. Non-owner
	// callers must belong to the dealership in the path.
	dealershipAPI := r.PathPrefix("/api/dealerships/{dealershipID}").Subrouter()
	dealershipAPI.Use(authMiddleware.Authenticate)
	dealershipAPI.Use(middleware.RequireDealershipAccess)

	// Dealership settings
	dealershipAPI.HandleFunc("", dealershipHandler.Get).Methods("GET")
	dealershipAPI.HandleFunc("", authMiddleware.RequireAdmin(http.HandlerFunc(dealershipHandler.Update)).ServeHTTP).Methods("PUT")
	dealershipAPI.HandleFunc("/alert-settings", authMiddleware.RequireAdmin(http.HandlerFunc(dealershipHandler.UpdateAlertSettings)).ServeHTTP).Methods("PUT")
	dealershipAPI.HandleFunc("/deactivate", authMiddleware.RequireOwner(http.HandlerFunc(dealershipHandler.Deactivate)).ServeHTTP).Methods("POST")
	dealershipAPI.HandleFunc("/reactivate", authMiddleware.RequireOwner(http.HandlerFunc(dealershipHandler.Reactivate)).ServeHTTP).Methods("POST")
	dealershipAPI.HandleFunc("/stats", dealershipHandler.GetStats).Methods("GET")
	dealershipAPI.HandleFunc("/events", keyHandler.ListDealershipEvents).Methods("GET")

	// Boards
	dealershipAPI.HandleFunc("/board", keyHandler.Board).Methods("GET")
	dealershipAPI.HandleFunc("/bays", keyHandler.BayBoard).Methods("GET")

	// Keys
	dealershipAPI.HandleFunc("/keys", keyHandler.ListKeys).Methods("GET")
	dealershipAPI.HandleFunc("/keys", keyHandler.CreateKey).Methods("POST")
	dealershipAPI.HandleFunc("/keys/bulk-import", authMiddleware.RequireAdmin(http.HandlerFunc(keyHandler.BulkImport)).ServeHTTP).Methods("POST")
	dealershipAPI.HandleFunc("/keys/by-stock/{stockNumber}", keyHandler.GetKeyByStockNumber).Methods("GET")
	dealershipAPI.HandleFunc("/keys/{id}", keyHandler.GetKey).Methods("GET")
	dealershipAPI.HandleFunc("/keys/{id}", keyHandler.UpdateKey).Methods("PUT")
	dealershipAPI.HandleFunc("/keys/{id}", authMiddleware.RequireAdmin(http.HandlerFunc(keyHandler.DeleteKey)).ServeHTTP).Methods("DELETE")
	dealershipAPI.HandleFunc("/keys/{id}/status", keyHandler.ChangeStatus).Methods("PUT")

	// Checkout lifecycle
	dealershipAPI.HandleFunc("/keys/{id}/checkout", keyHandler.Checkout).Methods("POST")
	dealershipAPI.HandleFunc("/keys/{id}/return", keyHandler.Return).Methods("POST")
	dealershipAPI.HandleFunc("/keys/{id}/location", keyHandler.UpdateLocation).Methods("PUT")
	dealershipAPI.HandleFunc("/keys/{id}/bay", keyHandler.MoveToBay).Methods("PUT")

	// PDI tracking
	dealershipAPI.HandleFunc("/keys/{id}/pdi", keyHandler.UpdatePDIStatus).Methods("PUT")
	dealershipAPI.HandleFunc("/keys/{id}/pdi-logs", keyHandler.ListPDILogs).Methods("GET")

	// Photos, notes, audit trail
	dealershipAPI.HandleFunc("/keys/{id}/photos", keyHandler.UploadPhoto).Methods("POST")
	dealershipAPI.HandleFunc("/keys/{id}/photos", keyHandler.DeletePhoto).Methods("DELETE")
	dealershipAPI.HandleFunc("/keys/{id}/events", keyHandler.ListEvents).Methods("GET")
	dealershipAPI.HandleFunc("/keys/{id}/notes", keyHandler.ListNotes).Methods("GET")
	dealershipAPI.HandleFunc("/keys/{id}/notes", keyHandler.AddNote).Methods("POST")

	// Key tag printing
	dealershipAPI.HandleFunc("/keys/{id}/print-tag", printerHandler.PrintKeyTag).Methods("POST")

	// Users (admin only)
	dealershipAPI.HandleFunc("/users", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.ListUsers)).ServeHTTP).Methods("GET")
	dealershipAPI.HandleFunc("/users", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.CreateUser)).ServeHTTP).Methods("POST")
	dealershipAPI.HandleFunc("/users/{id}", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.GetUser)).ServeHTTP).Methods("GET")
	dealershipAPI.HandleFunc("/users/{id}", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.UpdateUser)).ServeHTTP).Methods("PUT")
	dealershipAPI.HandleFunc("/users/{id}/deactivate", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.Deactivate)).ServeHTTP).Methods("POST")
	dealershipAPI.HandleFunc("/users/{id}/reactivate", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.Reactivate)).ServeHTTP).Methods("POST")

	// Invites (admin only)
	dealershipAPI.HandleFunc("/invites", authMiddleware.RequireAdmin(http.HandlerFunc(inviteHandler.ListInvites)).ServeHTTP).Methods("GET")
	dealershipAPI.HandleFunc("/invites", authMiddleware.RequireAdmin(http.HandlerFunc(inviteHandler.CreateInvite)).ServeHTTP).Methods("POST")
	dealershipAPI.HandleFunc("/invites/{id}", authMiddleware.RequireAdmin(http.HandlerFunc(inviteHandler.RevokeInvite)).ServeHTTP).Methods("DELETE")

	// Repair tickets
	dealershipAPI.HandleFunc("/repairs", repairHandler.ListRepairs).Methods("GET")
	dealershipAPI.HandleFunc("/repairs", repairHandler.ReportRepair).Methods("POST")
	dealershipAPI.HandleFunc("/repairs/{id}/fix", repairHandler.MarkFixed).Methods("POST")

	// Login activity (admin only)
	dealershipAPI.HandleFunc("/login-logs", authMiddleware.RequireAdmin(http.HandlerFunc(userHandler.ListLoginLogs)).ServeHTTP).Methods("GET")

	// Reports (admin only)
	dealershipAPI.HandleFunc("/reports/activity/pdf", authMiddleware.RequireAdmin(http.HandlerFunc(dealershipHandler.GetActivityReportPDF)).ServeHTTP).Methods("GET")
	dealershipAPI.HandleFunc("/reports/activity/csv", authMiddleware.RequireAdmin(http.HandlerFunc(dealershipHandler.GetActivityReportCSV)).ServeHTTP).Methods("GET")
	dealershipAPI.HandleFunc("/reports/overdue/pdf", authMiddleware.RequireAdmin(http.HandlerFunc(dealershipHandler.GetOverdueReportPDF)).ServeHTTP).Methods("GET")
	dealershipAPI.HandleFunc("/reports/overdue/csv", authMiddleware.RequireAdmin(http.HandlerFunc(dealershipHandler.GetOverdueReportCSV)).ServeHTTP).Methods("GET")

	// Live key board websocket. Auth happens in the handler because browsers
	// cannot set headers on websocket upgrades.
	r.HandleFunc("/ws/board/{dealershipID}", hub.HandleWS).Methods("GET")

	// Health endpoints (no auth required - for probes)
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")

	// Metrics endpoint (Prometheus format)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
