// Command gen_token prints a signed sambodhan_admin_user cookie value for local
// testing against a running dashboard.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	id := flag.Int("id", 1, "admin id")
	role := flag.String("role", "super_admin", "admin role")
	name := flag.String("name", "Local Admin", "display name")
	department := flag.String("department", "", "department (department_admin only)")
	municipality := flag.Int("municipality", 0, "municipality id")
	ward := flag.Int("ward", 0, "ward id (ward_admin only)")
	district := flag.Int("district", 0, "district id")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("APP_SIGNING_SECRET")
	if len(secret) < 16 {
		fmt.Fprintln(os.Stderr, "APP_SIGNING_SECRET must be at least 16 characters")
		os.Exit(1)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"id":   *id,
		"role": *role,
		"name": *name,
		"iat":  now.Unix(),
		"exp":  now.Add(*ttl).Unix(),
	}
	if *department != "" {
		claims["department"] = *department
	}
	if *municipality > 0 {
		claims["municipality_id"] = *municipality
	}
	if *ward > 0 {
		claims["ward_id"] = *ward
	}
	if *district > 0 {
		claims["district_id"] = *district
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	fmt.Println(signedToken)
}
