// Command admintoken prints an admin JWT signed with ADMIN_JWT_SECRET, or
// with -hash a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/crypto/bcrypt"

	"convoy_tracker/internal/config"
	"convoy_tracker/internal/middleware"
)

func main() {
	hash := flag.String("hash", "", "print the bcrypt hash of this password instead of a token")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to ADMIN_TOKEN_TTL)")
	flag.Parse()

	if *hash != "" {
		out, err := bcrypt.GenerateFromPassword([]byte(*hash), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	lifetime := cfg.AdminTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	token, err := middleware.NewJWT(cfg.AdminJWTSecret).GenerateToken(middleware.RoleAdmin, middleware.RoleAdmin, lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated admin token (valid %s): %s\n", lifetime, token)
}
