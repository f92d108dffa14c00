package services

import (
	"context"
	"strings"
	"time"

	"learnhub/apperr"
	"learnhub/database"
	"learnhub/logger"
	"learnhub/models"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	maxFailedLogins = 3
	loginBlockFor   = time.Minute
)

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=STUDENT INSTRUCTOR"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginClient describes where a login came from.
type LoginClient struct {
	IPAddress string
	Device    string
}

type Accounts struct {
	db        *gorm.DB
	saltRound int
	log       *logger.Logger
}

func NewAccounts(db *gorm.DB, saltRound int, log *logger.Logger) *Accounts {
	if saltRound < bcrypt.MinCost {
		saltRound = bcrypt.DefaultCost
	}
	return &Accounts{db: db, saltRound: saltRound, log: log.With("component", "accounts")}
}

// Register creates a student or instructor account. Admins are only created out of band.
func (a *Accounts) Register(ctx context.Context, req SignupRequest) (*models.User, error) {
	db := a.db.WithContext(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, errors.Wrap(err, "check email")
	}
	if count > 0 {
		return nil, apperr.Conflict("Email is already registered!")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.saltRound)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Role:     role,
		Password: string(hashed),
	}
	if err := db.Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Email is already registered!")
		}
		return nil, errors.Wrap(err, "create user")
	}
	a.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

// Authenticate checks the password and blocks the account for a minute after three failures in a row.
func (a *Accounts) Authenticate(ctx context.Context, req LoginRequest, client LoginClient) (*models.User, error) {
	db := a.db.WithContext(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := db.Where("email = ? AND is_deleted = ?", email, false).First(&user).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.Unauthorized("Invalid credentials!")
		}
		return nil, errors.Wrap(err, "load user")
	}

	now := time.Now()
	if user.BlockedUntil != nil && user.BlockedUntil.After(now) {
		return nil, apperr.Unauthorized("Your account is temporarily blocked. Try again later.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		updates := map[string]interface{}{"failed_login_attempts": user.FailedLoginAttempts + 1}
		if user.FailedLoginAttempts+1 >= maxFailedLogins {
			updates["blocked_until"] = now.Add(loginBlockFor)
			updates["failed_login_attempts"] = 0
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			a.log.Error("failed to record login failure", "user_id", user.ID, "error", err)
		}
		return nil, apperr.Unauthorized("Invalid credentials!")
	}

	if err := db.Model(&user).Updates(map[string]interface{}{
		"last_login":            now,
		"failed_login_attempts": 0,
		"blocked_until":         nil,
	}).Error; err != nil {
		a.log.Error("failed to save last login", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now
	user.FailedLoginAttempts = 0
	user.BlockedUntil = nil

	tracking := models.LoginTracking{
		UserID:    user.ID,
		IPAddress: client.IPAddress,
		Device:    client.Device,
		Timestamp: now,
	}
	if err := db.Create(&tracking).Error; err != nil {
		a.log.Warn("failed to save login tracking", "user_id", user.ID, "error", err)
	}
	return &user, nil
}

// LoginHistory pages through the user's recorded logins, newest first.
func (a *Accounts) LoginHistory(ctx context.Context, actor Actor, page, limit int) ([]models.LoginTracking, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	db := a.db.WithContext(ctx).Model(&models.LoginTracking{}).Where("user_id = ?", actor.UserID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count logins")
	}
	var rows []models.LoginTracking
	if err := db.Order("timestamp desc").Offset((page - 1) * limit).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, errors.Wrap(err, "list logins")
	}
	return rows, total, nil
}
