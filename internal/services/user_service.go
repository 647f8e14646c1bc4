package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/edalik/electronics-store-user-service/internal/infrastructure/auth"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/kafka"
	"github.com/edalik/electronics-store-user-service/internal/infrastructure/redis"
	"github.com/edalik/electronics-store-user-service/internal/models"
	"github.com/edalik/electronics-store-user-service/internal/repository"
	pkgerrors "github.com/edalik/electronics-store-user-service/pkg/errors"
)

const (
	usersTopic = "users"
	tokenTTL   = time.Hour
)

type UserService interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	ExistsByLogin(ctx context.Context, login string) (bool, error)
	Register(ctx context.Context, login, password string) (*models.User, error)
	Login(ctx context.Context, login, password string) (string, error)
	GetOrCreate(ctx context.Context, identity auth.Identity) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	userRepo    repository.UserRepository
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
	jwtSecret   string
}

func NewUserService(
	userRepo repository.UserRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	jwtSecret string,
) *userService {
	return &userService{
		userRepo:    userRepo,
		redisClient: redisClient,
		producer:    producer,
		jwtSecret:   jwtSecret,
	}
}

func (s *userService) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *userService) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	return s.userRepo.GetByLogin(ctx, login)
}

func (s *userService) ExistsByLogin(ctx context.Context, login string) (bool, error) {
	return s.userRepo.ExistsByLogin(ctx, login)
}

// Register creates a user with a bcrypt-hashed password. The existence
// pre-check is a fast path only; the unique constraint on login is the
// backstop for two concurrent registrations, and its violation surfaces
// as ErrLoginExists from the repository.
func (s *userService) Register(ctx context.Context, login, password string) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if login == "" || password == "" {
		span.SetStatus(codes.Error, "empty login or password")
		return nil, fmt.Errorf("%w: login and password are required", pkgerrors.ErrInvalidInput)
	}

	exists, err := s.userRepo.ExistsByLogin(ctx, login)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login check failed")
		slog.Error("failed to check login existence", "login", login, "error", err)
		return nil, fmt.Errorf("%w: failed to check login existence", pkgerrors.ErrInternal)
	}
	if exists {
		span.SetStatus(codes.Error, "login already exists")
		slog.Warn("login already exists", "login", login)
		return nil, pkgerrors.ErrLoginExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "login", login, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		Login:        login,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user", "login", login, "error", err)
		return nil, err
	}

	s.publishUserEvent(user.ID, "user_registered", map[string]interface{}{"login": login})

	slog.Info("user registered", "user_id", user.ID, "login", login)
	return user, nil
}

func (s *userService) Login(ctx context.Context, login, password string) (string, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		slog.Warn("login failed", "login", login, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("invalid password", "login", login)
		return "", pkgerrors.ErrInvalidCredentials
	}

	claims := jwt.MapClaims{
		"sub":                user.ID.String(),
		"preferred_username": user.Login,
		"exp":                time.Now().Add(tokenTTL).Unix(),
		"iat":                time.Now().Unix(),
	}
	if user.Email != nil {
		claims["email"] = *user.Email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		slog.Error("failed to sign token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%s:token", user.ID), tokenString, tokenTTL); err != nil {
		slog.Error("failed to cache token", "user_id", user.ID, "error", err)
	}

	slog.Info("user logged in", "user_id", user.ID, "login", login)
	return tokenString, nil
}

// GetOrCreate returns the user matching the verified identity, creating
// one seeded from the token claims on first access. A unique-constraint
// conflict means a concurrent first access won the insert; the existing
// row is fetched instead of erroring.
func (s *userService) GetOrCreate(ctx context.Context, identity auth.Identity) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "GetOrCreate")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		return nil, err
	}

	login := identity.PreferredName
	if login == "" {
		login = identity.UserID.String()
	}
	user = &models.User{
		ID:    identity.UserID,
		Login: login,
	}
	if identity.Email != "" {
		email := identity.Email
		user.Email = &email
	}

	err = s.userRepo.Create(ctx, user)
	if errors.Is(err, pkgerrors.ErrLoginExists) {
		slog.Info("concurrent first access, fetching existing user", "user_id", identity.UserID)
		return s.userRepo.GetByID(ctx, identity.UserID)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user from identity", "user_id", identity.UserID, "error", err)
		return nil, err
	}

	s.publishUserEvent(user.ID, "user_registered", map[string]interface{}{"login": user.Login})

	slog.Info("user created on first access", "user_id", user.ID, "login", user.Login)
	return user, nil
}

// Update merges the non-nil fields of upd onto the stored user. Login,
// email and balance are never touched by this path.
func (s *userService) Update(ctx context.Context, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Update")
	defer span.End()

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.ApplyUpdate(upd)
	if err := s.userRepo.Update(ctx, user); err != nil {
		span.RecordError(err)
		slog.Error("failed to update user", "user_id", id, "error", err)
		return nil, err
	}

	slog.Info("user updated", "user_id", id)
	return user, nil
}

func (s *userService) Delete(ctx context.Context, id uuid.UUID) error {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Delete")
	defer span.End()

	rows, err := s.userRepo.DeleteByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to delete user", "user_id", id, "error", err)
		return err
	}
	if rows < 1 {
		return pkgerrors.ErrUserNotFound
	}

	if err := s.redisClient.Del(ctx, fmt.Sprintf("user:%s:balance", id)); err != nil {
		slog.Error("failed to drop cached balance", "user_id", id, "error", err)
	}
	s.publishUserEvent(id, "user_deleted", nil)

	slog.Info("user deleted", "user_id", id)
	return nil
}

func (s *userService) publishUserEvent(userID uuid.UUID, eventType string, extra map[string]interface{}) {
	event := map[string]interface{}{
		"event_type":  eventType,
		"user_id":     userID.String(),
		"occurred_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		event[k] = v
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal user event", "user_id", userID, "error", err)
		return
	}
	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := s.producer.Send(context.Background(), usersTopic, userID.String(), eventBytes); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send user event after retries", "user_id", userID, "event_type", eventType)
	}()
}
