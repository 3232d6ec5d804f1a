// Package main выпускает токен администратора для административного API.
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/admin-token -name operator
//	go run ./cmd/admin-token -hash-password 's3cret'
//
// Второй вариант печатает bcrypt-хэш для ADMIN_PASSWORD_HASH.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/jwt"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/password"
)

func main() {
	name := flag.String("name", "admin", "operator name stored in the token")
	rawPassword := flag.String("hash-password", "", "print bcrypt hash of the given password and exit")
	flag.Parse()

	if *rawPassword != "" {
		hash, err := password.GetHash(*rawPassword)
		if err != nil {
			log.Fatalf("failed to hash password: %s", err)
		}
		fmt.Println(hash)
		return
	}

	_ = godotenv.Load()
	cfg := config.MustLoad()

	token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(*name, jwt.RoleAdmin)
	if err != nil {
		log.Fatalf("failed to generate token: %s", err)
	}
	fmt.Println(token)
}
