// Command tokengen mints a bearer token for the mutating user service routes.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
)

func main() {
	var operator string
	fs := flag.NewFlagSet("tokengen", flag.ExitOnError)
	fs.StringVar(&operator, "operator", "admin", "operator name placed in the token subject")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.SecretKey == "" {
		log.Fatal("USERSVC_SECRET_KEY is not set; the bearer guard is disabled")
	}

	token, err := auth.GenerateToken(operator, []byte(cfg.SecretKey), cfg.TokenValidity)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}
	fmt.Println(token)
}
