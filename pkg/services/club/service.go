// Package club manages club registration, lookup and the staff-facing claim desk.
package club

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/fadedpez/clubwheel/pkg/geo"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	clubRepo "github.com/fadedpez/clubwheel/pkg/repositories/club"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
	"github.com/google/uuid"
)

const (
	pinAttempts  = 20
	slugAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var pinPattern = regexp.MustCompile(`^\d{6}$`)

// RegisterInput describes a new club and its owner
type RegisterInput struct {
	Name       string
	OwnerPhone string
	OwnerName  string
	Latitude   *float64
	Longitude  *float64
	Address    string
	City       string
}

// UpdateInput carries the club fields to change; nil fields are left alone
type UpdateInput struct {
	Name      *string
	Address   *string
	City      *string
	Active    *bool
	Latitude  *float64
	Longitude *float64
}

// Service manages clubs
type Service struct {
	clubs    clubRepo.Repository
	accounts accountRepo.Repository
	spins    spinRepo.Repository
	now      func() time.Time
	log      *logging.Logger
}

// NewService creates a new club service
func NewService(clubs clubRepo.Repository, accounts accountRepo.Repository, spins spinRepo.Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default
	}
	return &Service{
		clubs:    clubs,
		accounts: accounts,
		spins:    spins,
		now:      time.Now,
		log:      logger.With("club"),
	}
}

// WithClock replaces the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Resolve finds a club by database ID, slug, join token or PIN, in that order
func (s *Service) Resolve(ctx context.Context, identifier string) (*entities.Club, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, types.New(types.ErrClubNotFound, "club identifier is required")
	}

	lookups := []func(context.Context, string) (*entities.Club, error){
		s.clubs.Get,
		s.clubs.GetBySlug,
		s.clubs.GetByJoinToken,
	}
	if pinPattern.MatchString(identifier) {
		lookups = append(lookups, s.clubs.GetByPIN)
	}

	for _, lookup := range lookups {
		club, err := lookup(ctx, identifier)
		if err == nil {
			return club, nil
		}
		if !errors.Is(err, clubRepo.ErrClubNotFound) {
			return nil, types.Wrap(types.ErrDatabaseError, "error resolving club", err)
		}
	}
	return nil, types.New(types.ErrClubNotFound, fmt.Sprintf("club %q not found", identifier))
}

// Get loads a club by ID
func (s *Service) Get(ctx context.Context, id string) (*entities.Club, error) {
	club, err := s.clubs.Get(ctx, id)
	if err != nil {
		return nil, translateClubErr(err)
	}
	return club, nil
}

// List returns every club
func (s *Service) List(ctx context.Context) ([]*entities.Club, error) {
	clubs, err := s.clubs.List(ctx)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing clubs", err)
	}
	return clubs, nil
}

// Register creates a club and links its owner account
func (s *Service) Register(ctx context.Context, input RegisterInput) (*entities.Club, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, types.New(types.ErrInvalidArgument, "club name is required")
	}
	if strings.TrimSpace(input.OwnerPhone) == "" {
		return nil, types.New(types.ErrInvalidArgument, "owner phone is required")
	}
	if input.Latitude == nil || input.Longitude == nil {
		return nil, types.New(types.ErrInvalidArgument, "club coordinates are required")
	}
	if !(&geo.Location{Latitude: *input.Latitude, Longitude: *input.Longitude}).Valid() {
		return nil, types.New(types.ErrInvalidArgument, "club coordinates are out of range")
	}

	owner, err := s.ownerFor(ctx, strings.TrimSpace(input.OwnerPhone), input.OwnerName)
	if err != nil {
		return nil, err
	}

	pin, err := s.generatePIN(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	club := &entities.Club{
		Name:      name,
		Slug:      generateSlug(now),
		JoinToken: uuid.New().String(),
		PIN:       pin,
		OwnerID:   owner.ID,
		Latitude:  input.Latitude,
		Longitude: input.Longitude,
		Address:   strings.TrimSpace(input.Address),
		City:      strings.TrimSpace(input.City),
		Active:    true,
		CreatedAt: now,
	}
	if err := s.clubs.Create(ctx, club); err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error creating club", err)
	}

	owner.ClubID = club.ID
	if err := s.accounts.Update(ctx, owner); err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error linking club owner", err)
	}

	s.log.Info("Registered club %s (%s) owned by %s", club.Name, club.Slug, owner.ID)
	return club, nil
}

// ownerFor returns a club account without a club, creating one for an unknown phone
func (s *Service) ownerFor(ctx context.Context, phone, name string) (*entities.Account, error) {
	owner, err := s.accounts.GetByPhone(ctx, phone)
	if errors.Is(err, accountRepo.ErrAccountNotFound) {
		owner = &entities.Account{
			Phone:  phone,
			Name:   strings.TrimSpace(name),
			Role:   entities.RoleClub,
			Active: true,
		}
		if err := s.accounts.Create(ctx, owner); err != nil {
			return nil, types.Wrap(types.ErrDatabaseError, "error creating club owner", err)
		}
		return owner, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error loading club owner", err)
	}

	if owner.Role != entities.RoleClub {
		return nil, types.New(types.ErrInvalidArgument, "phone belongs to a non-club account")
	}
	if _, err := s.clubs.GetByOwner(ctx, owner.ID); err == nil {
		return nil, types.New(types.ErrInvalidArgument, "owner already has a club")
	} else if !errors.Is(err, clubRepo.ErrClubNotFound) {
		return nil, types.Wrap(types.ErrDatabaseError, "error checking owner club", err)
	}
	return owner, nil
}

// RotateToken issues a new QR join token, invalidating printed codes
func (s *Service) RotateToken(ctx context.Context, clubID string) (*entities.Club, error) {
	club, err := s.Get(ctx, clubID)
	if err != nil {
		return nil, err
	}

	club.JoinToken = uuid.New().String()
	if err := s.clubs.Update(ctx, club); err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error rotating join token", err)
	}
	s.log.Info("Rotated join token for club %s", club.ID)
	return club, nil
}

// Update changes club details
func (s *Service) Update(ctx context.Context, clubID string, input UpdateInput) (*entities.Club, error) {
	club, err := s.Get(ctx, clubID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, types.New(types.ErrInvalidArgument, "club name cannot be empty")
		}
		club.Name = name
	}
	if input.Address != nil {
		club.Address = strings.TrimSpace(*input.Address)
	}
	if input.City != nil {
		club.City = strings.TrimSpace(*input.City)
	}
	if input.Active != nil {
		club.Active = *input.Active
	}
	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, types.New(types.ErrInvalidArgument, "latitude and longitude must be set together")
	}
	if input.Latitude != nil {
		if !(&geo.Location{Latitude: *input.Latitude, Longitude: *input.Longitude}).Valid() {
			return nil, types.New(types.ErrInvalidArgument, "club coordinates are out of range")
		}
		club.Latitude = input.Latitude
		club.Longitude = input.Longitude
	}

	if err := s.clubs.Update(ctx, club); err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error updating club", err)
	}
	return club, nil
}

// MyClub returns the club owned by an account, backfilling its PIN if needed
func (s *Service) MyClub(ctx context.Context, ownerID string) (*entities.Club, error) {
	club, err := s.clubs.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, translateClubErr(err)
	}
	if err := s.BackfillPIN(ctx, club); err != nil {
		return nil, err
	}
	return club, nil
}

// BackfillPIN assigns a PIN to a club created before PINs existed
func (s *Service) BackfillPIN(ctx context.Context, club *entities.Club) error {
	if club.PIN != "" {
		return nil
	}

	pin, err := s.generatePIN(ctx)
	if err != nil {
		return err
	}
	club.PIN = pin
	if err := s.clubs.Update(ctx, club); err != nil {
		return types.Wrap(types.ErrDatabaseError, "error saving club PIN", err)
	}
	s.log.Info("Backfilled PIN for club %s", club.ID)
	return nil
}

// BackfillMissing assigns PINs to every club lacking one and returns how many were updated
func (s *Service) BackfillMissing(ctx context.Context) (int, error) {
	clubs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, club := range clubs {
		if club.PIN != "" {
			continue
		}
		if err := s.BackfillPIN(ctx, club); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// generatePIN picks an unused 6-digit PIN, falling back to the clock when random picks keep colliding
func (s *Service) generatePIN(ctx context.Context) (string, error) {
	for i := 0; i < pinAttempts; i++ {
		pin := strconv.Itoa(100000 + rand.IntN(900000))
		_, err := s.clubs.GetByPIN(ctx, pin)
		if errors.Is(err, clubRepo.ErrClubNotFound) {
			return pin, nil
		}
		if err != nil {
			return "", types.Wrap(types.ErrDatabaseError, "error checking PIN", err)
		}
	}

	millis := strconv.FormatInt(s.now().UnixMilli(), 10)
	return millis[len(millis)-6:], nil
}

func generateSlug(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = slugAlphabet[rand.IntN(len(slugAlphabet))]
	}
	return fmt.Sprintf("club_%d_%s", now.UnixMilli(), suffix)
}

func translateClubErr(err error) error {
	if errors.Is(err, clubRepo.ErrClubNotFound) {
		return types.Wrap(types.ErrClubNotFound, "club not found", err)
	}
	return types.Wrap(types.ErrDatabaseError, "error loading club", err)
}
