// Package catalog is the admin surface for the prize wheel.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	prizeRepo "github.com/fadedpez/clubwheel/pkg/repositories/prize"
	"github.com/fadedpez/clubwheel/pkg/roulette"
)

// PrizeInput describes a new prize
type PrizeInput struct {
	Name          string
	Description   string
	ImageURL      string
	Category      entities.PrizeCategory
	Value         int64
	Weight        float64
	SlotIndex     int
	TotalQuantity *int64 // nil or zero means unlimited
}

// PrizeUpdate carries the fields to change; nil fields are left alone
type PrizeUpdate struct {
	Name          *string
	Description   *string
	ImageURL      *string
	Category      *entities.PrizeCategory
	Value         *int64
	Weight        *float64
	SlotIndex     *int
	Active        *bool
	TotalQuantity *int64
	Unlimited     bool // Clears TotalQuantity and RemainingQuantity
}

// FundAdjustment changes a prize's stock
type FundAdjustment struct {
	PrizeID           string
	TotalQuantity     *int64
	RemainingQuantity *int64
}

// Service manages the prize catalog
type Service struct {
	repo prizeRepo.Repository
	log  *logging.Logger
}

// NewService creates a new catalog service
func NewService(repo prizeRepo.Repository, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default
	}
	return &Service{
		repo: repo,
		log:  logger.With("catalog"),
	}
}

func validateFields(name string, category entities.PrizeCategory, value int64, weight float64, slot int) error {
	if strings.TrimSpace(name) == "" {
		return types.New(types.ErrInvalidArgument, "prize name is required")
	}
	if !category.Valid() {
		return types.New(types.ErrInvalidArgument, fmt.Sprintf("unknown prize category %q", category))
	}
	if value < 0 {
		return types.New(types.ErrInvalidArgument, "prize value cannot be negative")
	}
	if weight < 0 || weight > entities.MaxPrizeWeight {
		return types.New(types.ErrInvalidArgument, fmt.Sprintf("drop weight must be between 0 and %.0f", entities.MaxPrizeWeight))
	}
	if slot < 0 || slot > entities.MaxSlotIndex {
		return types.New(types.ErrInvalidArgument, fmt.Sprintf("slot index must be between 0 and %d", entities.MaxSlotIndex))
	}
	return nil
}

// SlotTaken reports whether another active prize occupies slot
func (s *Service) SlotTaken(ctx context.Context, slot int, exceptID string) (bool, error) {
	active, err := s.repo.List(ctx, true)
	if err != nil {
		return false, types.Wrap(types.ErrDatabaseError, "error listing prizes", err)
	}
	for _, p := range active {
		if p.SlotIndex == slot && p.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) ensureSlotFree(ctx context.Context, slot int, exceptID string) error {
	taken, err := s.SlotTaken(ctx, slot, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return types.New(types.ErrSlotTaken, fmt.Sprintf("slot %d is already taken", slot))
	}
	return nil
}

// Create adds an active prize to the wheel
func (s *Service) Create(ctx context.Context, input PrizeInput) (*entities.Prize, error) {
	if err := validateFields(input.Name, input.Category, input.Value, input.Weight, input.SlotIndex); err != nil {
		return nil, err
	}
	if err := s.ensureSlotFree(ctx, input.SlotIndex, ""); err != nil {
		return nil, err
	}

	prize := &entities.Prize{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Category:    input.Category,
		Value:       input.Value,
		Weight:      input.Weight,
		SlotIndex:   input.SlotIndex,
		Active:      true,
	}
	if input.TotalQuantity != nil && *input.TotalQuantity > 0 {
		prize.TotalQuantity = entities.Int64Ptr(*input.TotalQuantity)
		prize.RemainingQuantity = entities.Int64Ptr(*input.TotalQuantity)
	}

	if err := s.repo.Create(ctx, prize); err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error creating prize", err)
	}
	s.log.Info("Created prize %s in slot %d", prize.Name, prize.SlotIndex)
	return prize, nil
}

// Get loads a prize
func (s *Service) Get(ctx context.Context, id string) (*entities.Prize, error) {
	prize, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, prizeRepo.ErrPrizeNotFound) {
			return nil, types.Wrap(types.ErrPrizeNotFound, "prize not found", err)
		}
		return nil, types.Wrap(types.ErrDatabaseError, "error loading prize", err)
	}
	return prize, nil
}

// Update changes a prize
func (s *Service) Update(ctx context.Context, id string, update PrizeUpdate) (*entities.Prize, error) {
	prize, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	wasActive, oldSlot := prize.Active, prize.SlotIndex

	if update.Name != nil {
		prize.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		prize.Description = *update.Description
	}
	if update.ImageURL != nil {
		prize.ImageURL = *update.ImageURL
	}
	if update.Category != nil {
		prize.Category = *update.Category
	}
	if update.Value != nil {
		prize.Value = *update.Value
	}
	if update.Weight != nil {
		prize.Weight = *update.Weight
	}
	if update.SlotIndex != nil {
		prize.SlotIndex = *update.SlotIndex
	}
	if update.Active != nil {
		prize.Active = *update.Active
	}

	var stock *prizeRepo.StockChange
	switch {
	case update.Unlimited:
		stock = &prizeRepo.StockChange{Unlimited: true}
	case update.TotalQuantity != nil:
		if *update.TotalQuantity < 0 {
			return nil, types.New(types.ErrInvalidArgument, "total quantity cannot be negative")
		}
		stock = &prizeRepo.StockChange{Total: entities.Int64Ptr(*update.TotalQuantity)}
	}

	if err := validateFields(prize.Name, prize.Category, prize.Value, prize.Weight, prize.SlotIndex); err != nil {
		return nil, err
	}
	if prize.Active && (!wasActive || prize.SlotIndex != oldSlot) {
		if err := s.ensureSlotFree(ctx, prize.SlotIndex, prize.ID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, prize); err != nil {
		return nil, translatePrizeErr("error updating prize", err)
	}
	if stock == nil {
		return prize, nil
	}
	return s.setStock(ctx, prize.ID, *stock)
}

func (s *Service) setStock(ctx context.Context, id string, change prizeRepo.StockChange) (*entities.Prize, error) {
	prize, err := s.repo.SetStock(ctx, id, change)
	if err != nil {
		return nil, translatePrizeErr("error updating prize stock", err)
	}
	return prize, nil
}

func translatePrizeErr(msg string, err error) error {
	if errors.Is(err, prizeRepo.ErrPrizeNotFound) {
		return types.Wrap(types.ErrPrizeNotFound, "prize not found", err)
	}
	return types.Wrap(types.ErrDatabaseError, msg, err)
}

// Delete removes a prize
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, prizeRepo.ErrPrizeNotFound) {
			return types.Wrap(types.ErrPrizeNotFound, "prize not found", err)
		}
		return types.Wrap(types.ErrDatabaseError, "error deleting prize", err)
	}
	s.log.Info("Deleted prize %s", id)
	return nil
}

// AdjustFund sets stock levels. Setting a total without a remaining count refills the prize.
func (s *Service) AdjustFund(ctx context.Context, adj FundAdjustment) (*entities.Prize, error) {
	if adj.PrizeID == "" {
		return nil, types.New(types.ErrInvalidArgument, "prize ID is required")
	}

	change := prizeRepo.StockChange{Refill: true}
	if adj.TotalQuantity != nil {
		if *adj.TotalQuantity < 0 {
			return nil, types.New(types.ErrInvalidArgument, "total quantity cannot be negative")
		}
		change.Total = entities.Int64Ptr(*adj.TotalQuantity)
	}
	if adj.RemainingQuantity != nil {
		remaining := *adj.RemainingQuantity
		if remaining < 0 {
			remaining = 0
		}
		change.Remaining = entities.Int64Ptr(remaining)
	}

	prize, err := s.setStock(ctx, adj.PrizeID, change)
	if err != nil {
		return nil, err
	}
	s.log.Info("Prize fund for %s: total=%v remaining=%v", prize.ID, derefOrNil(prize.TotalQuantity), derefOrNil(prize.RemainingQuantity))
	return prize, nil
}

// List returns every prize ordered by slot
func (s *Service) List(ctx context.Context) ([]*entities.Prize, error) {
	prizes, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing prizes", err)
	}
	return prizes, nil
}

// ActivePrizes returns the prizes currently on the wheel
func (s *Service) ActivePrizes(ctx context.Context) ([]*entities.Prize, error) {
	prizes, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseError, "error listing prizes", err)
	}
	return prizes, nil
}

// Odds returns each active prize with its current chance of being drawn
func (s *Service) Odds(ctx context.Context) ([]roulette.Odds, error) {
	prizes, err := s.ActivePrizes(ctx)
	if err != nil {
		return nil, err
	}
	return roulette.ComputeOdds(prizes), nil
}

func derefOrNil(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
