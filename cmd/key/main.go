package main

import (
	"flag"
	"fmt"
	"os"
	"smart-fleet/internal/cli"
	"time"
)

func main() {
	var (
		userID   = flag.String("user-id", "", "Numeric id of the user (subject)")
		username = flag.String("username", "", "Username carried in the token")
		role     = flag.String("role", "DRIVER", "User role: ADMIN | DRIVER")
		secret   = flag.String("secret", os.Getenv("SMARTFLEET_JWT_SECRET"), "JWT HMAC secret (HS256), default $SMARTFLEET_JWT_SECRET")
		ttl      = flag.Duration("ttl", 2*time.Hour, "Token lifetime")
	)
	flag.Parse()

	if *userID == "" || *username == "" || *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --user-id=<id> --username=<name> --role=DRIVER --secret='<secret>' [--ttl=2h]")
		os.Exit(2)
	}

	token, claims, err := cli.GenerateUserToken(*secret, *ttl, *userID, *username, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:      %s\n", claims.Subject)
	fmt.Printf("  username: %s\n", claims.Username)
	fmt.Printf("  role:     %s\n", claims.Role)
	fmt.Printf("  iat:      %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:      %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
