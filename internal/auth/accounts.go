package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrEmailTaken indicates a registration against an existing email.
	ErrEmailTaken = errors.New("auth: email already registered")
	// ErrInvalidLogin covers both unknown email and wrong password so a
	// failed sign-in never reveals whether the account exists.
	ErrInvalidLogin = errors.New("auth: invalid email or password")
)

// Profile is the persisted account record. Roles is a comma-joined durable
// role list; membership of RoleAdmin is the administrator capability.
type Profile struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Email        string    `gorm:"column:email;size:254;not null;uniqueIndex" json:"email"`
	DisplayName  string    `gorm:"column:display_name;size:100;not null" json:"display_name"`
	PasswordHash string    `gorm:"column:password_hash;size:100;not null" json:"-"`
	Roles        string    `gorm:"column:roles;size:190;not null;default:''" json:"roles"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName exposes the table backing account profiles.
func (Profile) TableName() string {
	return "profiles"
}

// RoleList splits the stored role string into individual roles.
func (p Profile) RoleList() []string {
	if p.Roles == "" {
		return nil
	}
	parts := strings.Split(p.Roles, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		if role := strings.TrimSpace(part); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// IDProvider issues unique identifiers for new profiles.
type IDProvider interface {
	NewID() (string, error)
}

// AccountsConfig describes the dependencies for the accounts service.
type AccountsConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	HashCost   int
}

// Accounts is the credential-backed identity provider: it registers
// profiles, verifies passwords, and resolves profiles by id.
type Accounts struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
	hashCost   int
}

// NewAccounts validates the configuration and constructs the service.
func NewAccounts(cfg AccountsConfig) (*Accounts, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("auth: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("auth: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	hashCost := cfg.HashCost
	if hashCost <= 0 {
		hashCost = bcrypt.DefaultCost
	}
	return &Accounts{
		db:         cfg.Database,
		now:        clock,
		idProvider: cfg.IDProvider,
		hashCost:   hashCost,
	}, nil
}

// Register validates the input, hashes the password, and stores a new
// profile. The email is normalized to lower case before the uniqueness
// check so the same address cannot register twice with different casing.
func (a *Accounts) Register(ctx context.Context, name, email, password string) (*Profile, error) {
	if err := ValidateRegistration(name, email, password); err != nil {
		return nil, err
	}

	normalizedEmail := strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.hashCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing password: %w", err)
	}

	id, err := a.idProvider.NewID()
	if err != nil {
		return nil, fmt.Errorf("auth: generating profile id: %w", err)
	}

	now := a.now().UTC()
	profile := Profile{
		ID:           id,
		Email:        normalizedEmail,
		DisplayName:  strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.db.WithContext(ctx).Create(&profile).Error; err != nil {
		if isDuplicateEmail(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: storing profile: %w", err)
	}
	return &profile, nil
}

// Authenticate verifies the email/password pair. Unknown email and wrong
// password both come back as ErrInvalidLogin; the bcrypt comparison runs
// against a dummy hash for unknown emails to keep the two paths similar.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*Profile, error) {
	if err := ValidateLogin(email, password); err != nil {
		return nil, err
	}

	normalizedEmail := strings.ToLower(strings.TrimSpace(email))

	var profile Profile
	err := a.db.WithContext(ctx).Where("email = ?", normalizedEmail).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("auth: looking up profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidLogin
	}
	return &profile, nil
}

// GetProfile resolves a profile by its identifier.
func (a *Accounts) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	err := a.db.WithContext(ctx).Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("auth: looking up profile: %w", err)
	}
	return &profile, nil
}

// dummyHash is a valid bcrypt hash of an unguessable constant, used to even
// out timing between unknown-email and wrong-password failures.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

func isDuplicateEmail(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
