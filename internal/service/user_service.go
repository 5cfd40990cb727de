package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"shopmart/internal/domain"
	"shopmart/internal/email"
	"shopmart/internal/events"
	"shopmart/internal/repository"
	"shopmart/internal/sms"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Token expiration times
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour

	// Phone verification limits
	SMSCodeTTL        = 5 * time.Minute
	MaxVerifyAttempts = 3
	ResendCooldown    = time.Minute

	smsCodeLength       = 6
	restorePasswordSize = 12
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
	ErrAlreadyVerified    = errors.New("phone is already verified")
	ErrCodeExpired        = errors.New("verification code has expired")
	ErrCodeMismatch       = errors.New("verification code does not match")
	ErrTooManyAttempts    = errors.New("too many verification attempts")
	ErrResendTooSoon      = errors.New("a code was sent recently, wait before requesting another")
)

// UserService defines the interface for user business logic
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	// VerifyPhone redeems a pending SMS code. Three wrong codes in a
	// row spend the code and a new one has to be requested.
	VerifyPhone(ctx context.Context, userID uuid.UUID, code string) error
	ResendCode(ctx context.Context, userID uuid.UUID) error
	// RestorePassword replaces the account password with a random one,
	// mails it to the user and revokes every active session.
	RestorePassword(ctx context.Context, email string) error
}

// RegisterInput carries the registration form fields
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	City      string
	Address   string
}

// Claims represents the JWT claims
type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	Verified bool      `json:"verified"`
	jwt.RegisteredClaims
}

type userService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	smsCodeRepo      repository.SMSCodeRepository
	smsSender        sms.Sender
	emailSender      email.Sender
	publisher        events.Publisher
	redisClient      *redis.Client
	logger           *zap.Logger
	jwtSecret        string
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	refreshTokenRepo repository.RefreshTokenRepository,
	smsCodeRepo repository.SMSCodeRepository,
	smsSender sms.Sender,
	emailSender email.Sender,
	publisher events.Publisher,
	redisClient *redis.Client,
	logger *zap.Logger,
	jwtSecret string,
) UserService {
	return &userService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		smsCodeRepo:      smsCodeRepo,
		smsSender:        smsSender,
		emailSender:      emailSender,
		publisher:        publisher,
		redisClient:      redisClient,
		logger:           logger,
		jwtSecret:        jwtSecret,
	}
}

// Register creates a new unverified account and sends the first SMS code
func (s *userService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	existingUser, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil && err != repository.ErrUserNotFound {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, repository.ErrUserAlreadyExists
	}

	hashedPassword, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: hashedPassword,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		City:         input.City,
		Address:      input.Address,
		Role:         "user",
		Verified:     false,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.issueCode(ctx, user); err != nil {
		// The account exists either way; the user can request a resend
		s.logger.Error("Failed to send verification code",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
	}

	event := map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID.String(),
		"email":   user.Email,
	}
	_ = s.publisher.PublishEvent(ctx, events.TopicUsers, user.ID.String(), event)

	return user, nil
}

// Login authenticates a user and returns JWT tokens
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// Logout invalidates the refresh token
func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.Revoke(ctx, refreshToken); err != nil {
		if err == repository.ErrRefreshTokenNotFound {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken string, err error) {
	refreshToken, err := s.refreshTokenRepo.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if err == repository.ErrRefreshTokenNotFound || err == repository.ErrRefreshTokenRevoked {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	user, err := s.userRepo.FindByID(ctx, refreshToken.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	newAccessToken, err = s.generateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// VerifyPhone redeems the pending SMS code of a user
func (s *userService) VerifyPhone(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	pending, err := s.smsCodeRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		if err == repository.ErrSMSCodeNotFound {
			return ErrCodeExpired
		}
		return err
	}

	now := time.Now()
	if pending.Expired(now) {
		return ErrCodeExpired
	}

	if pending.Code != code {
		attempts, err := s.smsCodeRepo.IncrementAttempts(ctx, pending.ID)
		if err != nil {
			return err
		}
		if attempts >= MaxVerifyAttempts {
			return ErrTooManyAttempts
		}
		return ErrCodeMismatch
	}

	if pending.Attempts >= MaxVerifyAttempts {
		return ErrTooManyAttempts
	}

	if err := s.smsCodeRepo.MarkVerified(ctx, pending.ID, now); err != nil {
		return err
	}
	if err := s.userRepo.SetVerified(ctx, userID, true); err != nil {
		return err
	}

	event := map[string]interface{}{
		"type":    "user_verified",
		"user_id": userID.String(),
	}
	_ = s.publisher.PublishEvent(ctx, events.TopicUsers, userID.String(), event)

	return nil
}

// ResendCode issues a fresh SMS code, at most once per cooldown window
func (s *userService) ResendCode(ctx context.Context, userID uuid.UUID) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	if s.redisClient != nil {
		key := fmt.Sprintf("sms_resend:%s", userID.String())
		ok, err := s.redisClient.SetNX(ctx, key, 1, ResendCooldown).Result()
		if err != nil {
			// Redis being down should not block verification
			s.logger.Warn("Resend throttle unavailable", zap.Error(err))
		} else if !ok {
			return ErrResendTooSoon
		}
	}

	return s.issueCode(ctx, user)
}

// RestorePassword replaces the password and mails the new one
func (s *userService) RestorePassword(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.FindByEmail(ctx, emailAddr)
	if err != nil {
		// Whether the address exists is not revealed to the caller
		if err == repository.ErrUserNotFound {
			return nil
		}
		return err
	}

	password, err := randomPassword(restorePasswordSize)
	if err != nil {
		return fmt.Errorf("failed to generate password: %w", err)
	}

	hashed, err := s.hashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return err
	}

	// Old sessions must not outlive the old password
	if err := s.refreshTokenRepo.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	body := fmt.Sprintf("Hello %s,\n\nYour new password is: %s\n\nPlease change it after signing in.", user.FirstName, password)
	if err := s.emailSender.Send(ctx, user.Email, "Your new password", body); err != nil {
		return fmt.Errorf("failed to send restore email: %w", err)
	}

	return nil
}

// issueCode creates a fresh code for the user and delivers it by SMS
func (s *userService) issueCode(ctx context.Context, user *domain.User) error {
	code, err := randomDigits(smsCodeLength)
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	smsCode := &domain.SMSCode{
		ID:        uuid.New(),
		UserID:    user.ID,
		Phone:     user.Phone,
		Code:      code,
		ExpiresAt: time.Now().Add(SMSCodeTTL),
		CreatedAt: time.Now(),
	}
	if err := s.smsCodeRepo.Replace(ctx, smsCode); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}

	message := fmt.Sprintf("Your verification code is %s", code)
	if err := s.smsSender.Send(ctx, user.Phone, message); err != nil {
		return fmt.Errorf("failed to deliver code: %w", err)
	}

	return nil
}

// hashPassword hashes a password using bcrypt
func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// verifyPassword verifies a password against a bcrypt hash
func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token with identity claims
func (s *userService) generateAccessToken(user *domain.User) (string, error) {
	expirationTime := time.Now().Add(AccessTokenExpiration)
	claims := &Claims{
		UserID:   user.ID,
		Role:     user.Role,
		Verified: user.Verified,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *userService) generateRefreshToken(ctx context.Context, user *domain.User) (string, error) {
	tokenString := uuid.New().String()

	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     tokenString,
		ExpiresAt: time.Now().Add(RefreshTokenExpiration),
		CreatedAt: time.Now(),
		Revoked:   false,
	}

	if err := s.refreshTokenRepo.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return tokenString, nil
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

func randomPassword(n int) (string, error) {
	const alphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		out[i] = alphabet[v.Int64()]
	}
	return string(out), nil
}
