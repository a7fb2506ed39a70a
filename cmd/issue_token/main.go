// Command issue_token signs an API bearer token for a madrasah with the
// configured JWT secret.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/madrasahportal/golang_services/internal/platform/config"
	"github.com/madrasahportal/golang_services/internal/public_api_service/middleware"
)

func main() {
	tenantID := flag.String("madrasah", "", "madrasah id (token subject)")
	role := flag.String("role", middleware.RoleTenant, "tenant or admin")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "-madrasah is required")
		os.Exit(2)
	}
	if *role != middleware.RoleTenant && *role != middleware.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	token, err := middleware.IssueToken([]byte(cfg.JWTSecret), *tenantID, *role, *ttl)
	if err != nil {
		slog.Error("Failed to sign token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
