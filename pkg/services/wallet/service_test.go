package wallet

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	"github.com/stretchr/testify/suite"
)

type WalletServiceTestSuite struct {
	suite.Suite
	repo    *accountRepo.MemoryRepository
	service *Service
	ctx     context.Context
}

func TestWalletService(t *testing.T) {
	suite.Run(t, new(WalletServiceTestSuite))
}

func (s *WalletServiceTestSuite) SetupTest() {
	s.repo = accountRepo.NewMemoryRepository()
	s.service = NewService(s.repo, 15, logging.NewLoggerTo(&bytes.Buffer{}, logging.DEBUG))
	s.ctx = context.Background()
}

func (s *WalletServiceTestSuite) register(phone string) *entities.Account {
	account, err := s.service.Register(s.ctx, RegisterInput{Phone: phone})
	s.Require().NoError(err)
	return account
}

func (s *WalletServiceTestSuite) TestRegisterCreditsBonus() {
	account := s.register("+77011112233")

	s.Equal(int64(15), account.Balance)
	s.Equal(entities.RolePlayer, account.Role)

	entries, err := s.service.Entries(s.ctx, accountRepo.LedgerFilter{AccountID: account.ID})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(entities.LedgerRegistrationBonus, entries[0].Category)
	s.Equal(int64(15), entries[0].Amount)
	s.NoError(s.service.VerifyLedger(s.ctx, account.ID))
}

func (s *WalletServiceTestSuite) TestRegisterRejectsDuplicatesAndBadInput() {
	s.register("+77011112233")

	_, err := s.service.Register(s.ctx, RegisterInput{Phone: "+77011112233"})
	s.True(types.Is(err, types.ErrInvalidArgument))

	_, err = s.service.Register(s.ctx, RegisterInput{Phone: "  "})
	s.True(types.Is(err, types.ErrInvalidArgument))

	_, err = s.service.Register(s.ctx, RegisterInput{Phone: "+77000000000", Role: "owner"})
	s.True(types.Is(err, types.ErrInvalidArgument))
}

func (s *WalletServiceTestSuite) TestGetOrCreate() {
	first, created, err := s.service.GetOrCreate(s.ctx, "+77011112233", "Dana")
	s.Require().NoError(err)
	s.True(created)

	second, created, err := s.service.GetOrCreate(s.ctx, "+77011112233", "ignored")
	s.Require().NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)
	s.Equal("Dana", second.Name)
}

func (s *WalletServiceTestSuite) TestDebitAndCredit() {
	account := s.register("+77011112233")

	_, err := s.service.Debit(s.ctx, account.ID, 20, entities.LedgerSpinCost, "spin", "")
	s.True(types.Is(err, types.ErrInsufficientBalance))

	credit, err := s.service.Credit(s.ctx, account.ID, 30, entities.LedgerPrizePoints, "prize", "spin-1")
	s.Require().NoError(err)
	s.Equal(int64(45), credit.BalanceAfter)
	s.Equal("spin-1", credit.SpinID)

	debit, err := s.service.Debit(s.ctx, account.ID, 20, entities.LedgerSpinCost, "spin", "spin-2")
	s.Require().NoError(err)
	s.Equal(int64(-20), debit.Amount)
	s.Equal(int64(25), debit.BalanceAfter)

	_, err = s.service.Credit(s.ctx, account.ID, 0, entities.LedgerPrizePoints, "nothing", "")
	s.True(types.Is(err, types.ErrInvalidArgument))

	_, err = s.service.Credit(s.ctx, "missing", 5, entities.LedgerPrizePoints, "", "")
	s.True(types.Is(err, types.ErrAccountNotFound))

	s.NoError(s.service.VerifyLedger(s.ctx, account.ID))
}

func (s *WalletServiceTestSuite) TestAdjustBalanceRecordsDelta() {
	account := s.register("+77011112233")

	entry, err := s.service.AdjustBalance(s.ctx, account.ID, 100, "")
	s.Require().NoError(err)
	s.Equal(entities.LedgerManualAdjustment, entry.Category)
	s.Equal(int64(85), entry.Amount)

	entry, err = s.service.AdjustBalance(s.ctx, account.ID, 100, "again")
	s.Require().NoError(err)
	s.Nil(entry)

	_, err = s.service.AdjustBalance(s.ctx, account.ID, -1, "")
	s.True(types.Is(err, types.ErrInvalidArgument))

	balance, err := s.service.Balance(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal(int64(100), balance)
	s.NoError(s.service.VerifyLedger(s.ctx, account.ID))
}

func (s *WalletServiceTestSuite) TestLedgerInvariantUnderConcurrentMovements() {
	account := s.register("+77011112233")
	_, err := s.service.AdjustBalance(s.ctx, account.ID, 200, "seed")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.service.Debit(s.ctx, account.ID, 20, entities.LedgerSpinCost, "spin", "")
		}()
		go func() {
			defer wg.Done()
			s.service.Credit(s.ctx, account.ID, 5, entities.LedgerPrizePoints, "prize", "")
		}()
	}
	wg.Wait()

	balance, err := s.service.Balance(s.ctx, account.ID)
	s.Require().NoError(err)
	s.GreaterOrEqual(balance, int64(0))
	s.NoError(s.service.VerifyLedger(s.ctx, account.ID))
}
