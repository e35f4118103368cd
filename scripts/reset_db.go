// Command reset_db wipes every table and seeds a fresh owner account.
// Interactive: it asks for confirmation before touching anything.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"keyflow-backend/internal/auth"
	"keyflow-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Truncation order respects foreign keys, children first.
var tables = []string{
	"login_logs",
	"totp_verification_attempts",
	"invites",
	"pdi_audit_logs",
	"repair_requests",
	"key_notes",
	"key_events",
	"checkout_sessions",
	"keys",
	"users",
	"dealerships",
}

const (
	ownerName = "Owner"
	ownerPIN  = "123456"
)

func main() {
	fmt.Println("This wipes ALL keyflow data: dealerships, users, keys, checkout")
	fmt.Println("history, repair requests, invites and audit logs. A fresh owner")
	fmt.Println("account is created afterwards.")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	confirm, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if strings.TrimSpace(confirm) != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	godotenv.Load()

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "keyflow_db"))

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range tables {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			log.Fatalf("Failed to truncate %s: %v", table, err)
		}
		fmt.Printf("  cleared %s\n", table)
	}

	// totp_verification_attempts is the only serial table; everything else
	// uses uuid keys
	if _, err := tx.Exec(ctx, "ALTER SEQUENCE totp_verification_attempts_id_seq RESTART WITH 1"); err != nil {
		log.Fatalf("Failed to reset attempt sequence: %v", err)
	}

	pinHash, err := auth.HashPIN(ownerPIN)
	if err != nil {
		log.Fatalf("Failed to hash owner PIN: %v", err)
	}
	if _, err := tx.Exec(ctx, `
        INSERT INTO users (id, dealership_id, name, role, pin_hash, is_active)
        VALUES ($1, NULL, $2, $3, $4, TRUE)`,
		uuid.NewString(), ownerName, models.RoleOwner, pinHash); err != nil {
		log.Fatalf("Failed to create owner account: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	fmt.Println()
	fmt.Println("Database reset. Owner login:")
	fmt.Printf("  name %s / PIN %s\n", ownerName, ownerPIN)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
