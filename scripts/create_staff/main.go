package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-student-records/internal/models"
	"github.com/noah-isme/sma-student-records/internal/repository"
	"github.com/noah-isme/sma-student-records/pkg/config"
	"github.com/noah-isme/sma-student-records/pkg/database"
)

type staffInput struct {
	Email    string `validate:"required,email"`
	FullName string `validate:"required"`
	Password string `validate:"required,min=8"`
	Role     string `validate:"required,oneof=SUPERADMIN ADMIN STAFF"`
}

func main() {
	var in staffInput
	flag.StringVar(&in.Email, "email", "", "Login email of the staff member")
	flag.StringVar(&in.FullName, "name", "", "Full name")
	flag.StringVar(&in.Role, "role", string(models.RoleStaff), "SUPERADMIN, ADMIN or STAFF")
	flag.StringVar(&in.Password, "password", os.Getenv("STAFF_PASSWORD"), "Initial password (defaults to $STAFF_PASSWORD)")
	flag.Parse()

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	if err := validator.New().Struct(in); err != nil {
		flag.Usage()
		log.Fatalf("invalid input: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: string(hash),
		Role:         models.UserRole(in.Role),
		Active:       true,
	}
	if err := repository.NewUserRepository(db).Create(ctx, user); err != nil {
		log.Fatalf("failed to create staff member: %v", err)
	}

	fmt.Printf("created %s %s (%s)\n", user.Role, user.Email, user.ID)
}
