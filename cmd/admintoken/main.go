package main

import (
	"flag"
	"fmt"
	"os"

	"tourist-tax-engine/config"
	"tourist-tax-engine/internal/service"
)

// admintoken mints a JWT for the admin-only endpoints (reservation list and
// delete). The signing secret comes from the same config as the server.
func main() {
	subject := flag.String("subject", "admin", "token subject (operator identity)")
	configPath := flag.String("config", "", "config file path (default: ./config.yaml lookup)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is not configured (set TTE_JWT_SECRET or config.yaml)")
		os.Exit(1)
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	token, expiry, err := tokenSvc.Generate(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "subject=%s expires=%s\n", *subject, expiry.Format("2006-01-02T15:04:05Z07:00"))
}
