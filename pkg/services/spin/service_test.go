package spin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fadedpez/clubwheel/internal/logging"
	"github.com/fadedpez/clubwheel/internal/types"
	"github.com/fadedpez/clubwheel/pkg/entities"
	"github.com/fadedpez/clubwheel/pkg/feed"
	"github.com/fadedpez/clubwheel/pkg/geo"
	"github.com/fadedpez/clubwheel/pkg/notify"
	mock_notify "github.com/fadedpez/clubwheel/pkg/notify/mock"
	accountRepo "github.com/fadedpez/clubwheel/pkg/repositories/account"
	clubRepo "github.com/fadedpez/clubwheel/pkg/repositories/club"
	prizeRepo "github.com/fadedpez/clubwheel/pkg/repositories/prize"
	referralRepo "github.com/fadedpez/clubwheel/pkg/repositories/referral"
	spinRepo "github.com/fadedpez/clubwheel/pkg/repositories/spin"
	accountService "github.com/fadedpez/clubwheel/pkg/services/account"
	clubService "github.com/fadedpez/clubwheel/pkg/services/club"
	"github.com/fadedpez/clubwheel/pkg/services/referral"
	"github.com/fadedpez/clubwheel/pkg/services/wallet"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const (
	clubLat = 43.238949
	clubLon = 76.889709
)

type fixedSource struct {
	value float64
}

func (f fixedSource) Float64() float64 { return f.value }

// syncDispatcher runs referral approvals inline so tests can observe them
type syncDispatcher struct {
	approver *referral.Service
	errs     []error
}

func (d *syncDispatcher) Dispatch(spenderID string) {
	if err := d.approver.TryApprove(context.Background(), spenderID); err != nil {
		d.errs = append(d.errs, err)
	}
}

type SpinServiceTestSuite struct {
	suite.Suite
	ctx context.Context
	now time.Time
	log *logging.Logger

	accounts  *accountRepo.MemoryRepository
	clubs     *clubRepo.MemoryRepository
	prizes    *prizeRepo.MemoryRepository
	spins     *spinRepo.MemoryRepository
	referrals *referralRepo.MemoryRepository

	wallet     *wallet.Service
	referral   *referral.Service
	dispatcher *syncDispatcher
	feed       *feed.Ring

	club *entities.Club
}

func TestSpinService(t *testing.T) {
	suite.Run(t, new(SpinServiceTestSuite))
}

func (s *SpinServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)
	s.log = logging.NewLoggerTo(&bytes.Buffer{}, logging.DEBUG)

	s.accounts = accountRepo.NewMemoryRepository()
	s.clubs = clubRepo.NewMemoryRepository()
	s.prizes = prizeRepo.NewMemoryRepository()
	s.spins = spinRepo.NewMemoryRepository()
	s.referrals = referralRepo.NewMemoryRepository()

	s.wallet = wallet.NewService(s.accounts, 15, s.log)
	s.referral = referral.NewService(s.accounts, s.referrals, s.spins, s.wallet,
		referral.Config{Points: 50, MaxPerMonth: 20}, s.log).WithClock(s.clock)
	s.dispatcher = &syncDispatcher{approver: s.referral}
	s.feed = feed.NewRing(feed.DefaultCapacity)

	s.club = s.createClub("arena", true, true)
}

func (s *SpinServiceTestSuite) clock() time.Time {
	return s.now
}

func (s *SpinServiceTestSuite) newService(source float64, notifier notify.Notifier) *Service {
	return NewService(Config{
		Access:    accountService.NewService(s.accounts, s.clubs, s.log).WithClock(s.clock),
		Clubs:     clubService.NewService(s.clubs, s.accounts, s.spins, s.log),
		Prizes:    s.prizes,
		Spins:     s.spins,
		Ledger:    s.wallet,
		Geofence:  geo.NewGate(geo.DefaultRadiusMeters, "", false),
		Feed:      s.feed,
		Notifier:  notifier,
		Referrals: s.dispatcher,
		Cost:      20,
		Cooldown:  DefaultCooldown,
		Source:    fixedSource{value: source},
		Now:       s.clock,
		Logger:    s.log,
	})
}

func (s *SpinServiceTestSuite) createClub(slug string, active, withCoords bool) *entities.Club {
	club := &entities.Club{
		Name:      slug,
		Slug:      slug,
		JoinToken: "token-" + slug,
		Active:    active,
	}
	if withCoords {
		lat, lon := clubLat, clubLon
		club.Latitude, club.Longitude = &lat, &lon
	}
	s.Require().NoError(s.clubs.Create(s.ctx, club))
	return club
}

func (s *SpinServiceTestSuite) createPrize(name string, category entities.PrizeCategory, value int64, weight float64, slot int, remaining *int64) *entities.Prize {
	prize := &entities.Prize{
		Name:      name,
		Category:  category,
		Value:     value,
		Weight:    weight,
		SlotIndex: slot,
		Active:    true,
	}
	if remaining != nil {
		prize.TotalQuantity = entities.Int64Ptr(10)
		prize.RemainingQuantity = entities.Int64Ptr(*remaining)
	}
	s.Require().NoError(s.prizes.Create(s.ctx, prize))
	return prize
}

// player registers an account (15 bonus) and tops it up to balance
func (s *SpinServiceTestSuite) player(phone string, balance int64) *entities.Account {
	account, err := s.wallet.Register(s.ctx, wallet.RegisterInput{Phone: phone})
	s.Require().NoError(err)
	if balance != account.Balance {
		_, err = s.wallet.AdjustBalance(s.ctx, account.ID, balance, "test top-up")
		s.Require().NoError(err)
	}
	return account
}

func (s *SpinServiceTestSuite) request(accountID, club string) Request {
	lat, lon := clubLat, clubLon
	return Request{AccountID: accountID, ClubIdentifier: club, Latitude: &lat, Longitude: &lon}
}

func (s *SpinServiceTestSuite) balance(id string) int64 {
	balance, err := s.wallet.Balance(s.ctx, id)
	s.Require().NoError(err)
	return balance
}

func (s *SpinServiceTestSuite) spinCount() int {
	count, err := s.spins.Count(s.ctx, spinRepo.Filter{})
	s.Require().NoError(err)
	return count
}

func (s *SpinServiceTestSuite) assertCode(err error, code types.ErrorCode) *types.AppError {
	var appErr *types.AppError
	s.Require().True(types.As(err, &appErr), "expected AppError, got %v", err)
	s.Equal(code, appErr.Code)
	return appErr
}

func (s *SpinServiceTestSuite) TestPointsPrizeDebitsThenCredits() {
	prize := s.createPrize("50 баллов", entities.PrizePoints, 50, 100, 0, nil)
	account := s.player("+77011234567", 35)

	result, err := s.newService(0.5, nil).ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.Require().NoError(err)

	s.Equal(prize.ID, result.Prize.ID)
	s.Equal(int64(65), result.Balance, "net change is value minus cost")
	s.Require().NotNil(result.Payout)
	s.Equal(int64(50), result.Payout.Amount)
	s.Nil(result.Claim)

	entries, err := s.wallet.Entries(s.ctx, accountRepo.LedgerFilter{AccountID: account.ID, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(entities.LedgerPrizePoints, entries[0].Category)
	s.Equal(int64(65), entries[0].BalanceAfter)
	s.Equal(entities.LedgerSpinCost, entries[1].Category)
	s.Equal(int64(-20), entries[1].Amount)
	s.Equal(int64(15), entries[1].BalanceAfter, "cost is taken before the prize is paid")
	s.Equal(result.SpinID, entries[0].SpinID)
	s.Equal(result.SpinID, entries[1].SpinID)

	s.Equal(1, s.spinCount())
	_, total, err := s.spins.ListClaims(s.ctx, spinRepo.ClaimFilter{})
	s.Require().NoError(err)
	s.Zero(total)
	s.NoError(s.wallet.VerifyLedger(s.ctx, account.ID))
}

func (s *SpinServiceTestSuite) TestInsufficientBalanceLeavesNoTrace() {
	s.createPrize("50 баллов", entities.PrizePoints, 50, 100, 0, nil)
	service := s.newService(0.5, nil)

	for _, balance := range []int64{10, 15, 19} {
		account := s.player(fmt.Sprintf("+770100000%02d", balance), balance)

		_, err := service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
		s.assertCode(err, types.ErrInsufficientBalance)
		s.Equal(balance, s.balance(account.ID))
	}
	s.Zero(s.spinCount())
}

func (s *SpinServiceTestSuite) TestCooldownIsClubScoped() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	other := s.createClub("second", true, true)
	first := s.player("+77010000001", 100)
	second := s.player("+77010000002", 100)
	service := s.newService(0.1, nil)

	_, err := service.ExecuteSpin(s.ctx, s.request(first.ID, s.club.Slug))
	s.Require().NoError(err)

	s.now = s.now.Add(22*time.Second + 900*time.Millisecond)
	_, err = service.ExecuteSpin(s.ctx, s.request(second.ID, s.club.Slug))
	busy := s.assertCode(err, types.ErrRouletteBusy)
	s.Equal(1, busy.RetryAfterSeconds)
	s.Equal(int64(100), s.balance(second.ID))

	_, err = service.ExecuteSpin(s.ctx, s.request(first.ID, other.Slug))
	s.NoError(err, "the same player may spin at another club")

	s.now = s.now.Add(100 * time.Millisecond)
	_, err = service.ExecuteSpin(s.ctx, s.request(second.ID, s.club.Slug))
	s.NoError(err, "the window is over after exactly 23 seconds")
}

func (s *SpinServiceTestSuite) TestCooldownReportsRemainingSeconds() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	account := s.player("+77010000001", 100)
	service := s.newService(0.1, nil)

	_, err := service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.Require().NoError(err)

	s.now = s.now.Add(3 * time.Second)
	_, err = service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	busy := s.assertCode(err, types.ErrRouletteBusy)
	s.Equal(20, busy.RetryAfterSeconds)
}

func (s *SpinServiceTestSuite) TestCooldownDefaultsWhenUnset() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	first := s.player("+77010000001", 100)
	second := s.player("+77010000002", 100)
	service := NewService(Config{
		Access: accountService.NewService(s.accounts, s.clubs, s.log).WithClock(s.clock),
		Clubs:  clubService.NewService(s.clubs, s.accounts, s.spins, s.log),
		Prizes: s.prizes,
		Spins:  s.spins,
		Ledger: s.wallet,
		Feed:   s.feed,
		Source: fixedSource{value: 0.1},
		Now:    s.clock,
		Logger: s.log,
	})

	_, err := service.ExecuteSpin(s.ctx, s.request(first.ID, s.club.Slug))
	s.Require().NoError(err)

	s.now = s.now.Add(time.Second)
	_, err = service.ExecuteSpin(s.ctx, s.request(second.ID, s.club.Slug))
	busy := s.assertCode(err, types.ErrRouletteBusy)
	s.Equal(22, busy.RetryAfterSeconds)
	s.Equal(1, s.spinCount())
}

func (s *SpinServiceTestSuite) TestClubTimePrizeCreatesCompletedClaim() {
	prize := s.createPrize("1 час игры", entities.PrizeClubTime, 60, 100, 0, nil)
	account := s.player("+77010000001", 35)

	result, err := s.newService(0.3, nil).ExecuteSpin(s.ctx, s.request(account.ID, s.club.ID))
	s.Require().NoError(err)

	s.Equal(int64(15), result.Balance)
	s.Nil(result.Payout)
	s.Require().NotNil(result.Claim)
	s.Equal(entities.ClaimCompleted, result.Claim.Status)
	s.Require().NotNil(result.Claim.ConfirmedAt)
	s.True(s.now.Equal(*result.Claim.ConfirmedAt))
	s.Equal(int64(60), result.Claim.ClubTimeMinutes)
	s.Equal(prize.ID, result.Claim.PrizeID)
	s.Equal(s.club.ID, result.Claim.ClubID)
}

func (s *SpinServiceTestSuite) TestLimitedPrizeStockRunsOut() {
	prize := s.createPrize("Энергетик", entities.PrizePhysical, 0, 100, 0, entities.Int64Ptr(1))
	account := s.player("+77010000001", 100)
	service := s.newService(0.5, nil)

	result, err := service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.Require().NoError(err)
	s.Require().NotNil(result.Claim)
	s.Equal(entities.ClaimCompleted, result.Claim.Status)

	stored, err := s.prizes.Get(s.ctx, prize.ID)
	s.Require().NoError(err)
	s.Equal(int64(0), *stored.RemainingQuantity)

	s.now = s.now.Add(time.Minute)
	_, err = service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.assertCode(err, types.ErrPrizeExhausted)
	s.Equal(1, s.spinCount())
	s.Equal(int64(80), s.balance(account.ID))
}

func (s *SpinServiceTestSuite) TestExhaustedPrizeIsNeverDrawn() {
	s.createPrize("Энергетик", entities.PrizePhysical, 0, 100, 0, entities.Int64Ptr(0))
	fallback := s.createPrize("1 балл", entities.PrizePoints, 1, 1, 1, nil)
	account := s.player("+77010000001", 100)
	service := s.newService(0.0, nil)

	result, err := service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.Require().NoError(err)
	s.Equal(fallback.ID, result.Prize.ID)
}

func (s *SpinServiceTestSuite) TestGeofence() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	account := s.player("+77010000001", 100)
	service := s.newService(0.5, nil)

	_, err := service.ExecuteSpin(s.ctx, Request{AccountID: account.ID, ClubIdentifier: s.club.Slug})
	missing := s.assertCode(err, types.ErrGeofenceFailed)
	s.Equal(types.ErrMissingLocation, missing.Reason)

	far := s.request(account.ID, s.club.Slug)
	lat := clubLat + 0.01
	far.Latitude = &lat
	_, err = service.ExecuteSpin(s.ctx, far)
	tooFar := s.assertCode(err, types.ErrGeofenceFailed)
	s.Equal(types.ErrTooFarFromClub, tooFar.Reason)

	s.Zero(s.spinCount())

	open := s.createClub("no-coords", true, false)
	_, err = service.ExecuteSpin(s.ctx, Request{AccountID: account.ID, ClubIdentifier: open.Slug})
	s.NoError(err, "clubs without coordinates skip the geofence")
}

func (s *SpinServiceTestSuite) TestClubPreconditions() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	account := s.player("+77010000001", 100)
	closed := s.createClub("closed", false, true)
	service := s.newService(0.5, nil)

	_, err := service.ExecuteSpin(s.ctx, s.request(account.ID, "nowhere"))
	s.assertCode(err, types.ErrClubNotFound)

	_, err = service.ExecuteSpin(s.ctx, s.request(account.ID, closed.Slug))
	s.assertCode(err, types.ErrClubInactive)
}

func (s *SpinServiceTestSuite) TestAccountPreconditions() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	account := s.player("+77010000001", 100)
	service := s.newService(0.5, nil)

	_, err := service.ExecuteSpin(s.ctx, s.request("missing", s.club.Slug))
	s.assertCode(err, types.ErrAccountNotFound)

	banned, err := s.accounts.Get(s.ctx, account.ID)
	s.Require().NoError(err)
	banned.Banned = true
	s.Require().NoError(s.accounts.Update(s.ctx, banned))

	_, err = service.ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.assertCode(err, types.ErrAccountBanned)
}

func (s *SpinServiceTestSuite) TestNoPrizesAvailable() {
	account := s.player("+77010000001", 100)

	_, err := s.newService(0.5, nil).ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.assertCode(err, types.ErrNoPrizesAvailable)
	s.Zero(s.spinCount())
	s.Equal(int64(100), s.balance(account.ID))
}

func (s *SpinServiceTestSuite) TestReferralApprovedOnFirstSpinOnly() {
	s.createPrize("1 балл", entities.PrizePoints, 1, 100, 0, nil)
	inviter := s.player("+77010000001", 15)
	friend := s.player("+77010000002", 100)

	code, err := s.referral.EnsureCode(s.ctx, inviter.ID)
	s.Require().NoError(err)
	linked, err := s.referral.Attach(s.ctx, friend.ID, referral.Payload(code))
	s.Require().NoError(err)
	s.Require().True(linked)

	service := s.newService(0.5, nil)
	_, err = service.ExecuteSpin(s.ctx, s.request(friend.ID, s.club.Slug))
	s.Require().NoError(err)
	s.Equal(int64(65), s.balance(inviter.ID))

	s.now = s.now.Add(time.Minute)
	_, err = service.ExecuteSpin(s.ctx, s.request(friend.ID, s.club.Slug))
	s.Require().NoError(err)
	s.Equal(int64(65), s.balance(inviter.ID))

	s.Empty(s.dispatcher.errs)
	s.NoError(s.wallet.VerifyLedger(s.ctx, inviter.ID))
}

func (s *SpinServiceTestSuite) TestAnnouncesWinAndKeepsSpinWhenNotifierFails() {
	s.createPrize("Энергетик", entities.PrizePhysical, 0, 100, 0, nil)
	account := s.player("+77011234567", 100)

	ctrl := gomock.NewController(s.T())
	notifier := mock_notify.NewMockNotifier(ctrl)
	notifier.EXPECT().
		NotifyWin(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, event notify.WinEvent) error {
			s.Equal(s.club.ID, event.ClubID)
			s.Equal("Энергетик", event.PrizeName)
			s.Equal("+7 701 *** 4567", event.PlayerDisplay)
			s.Require().Len(event.Recent, 1)
			s.Equal("+7 701 *** 4567 выиграл Энергетик", event.Recent[0].Text)
			return errors.New("socket closed")
		})

	result, err := s.newService(0.5, notifier).ExecuteSpin(s.ctx, s.request(account.ID, s.club.Slug))
	s.Require().NoError(err)
	s.NotEmpty(result.SpinID)

	wins, err := s.newService(0.5, nil).RecentWins(s.ctx)
	s.Require().NoError(err)
	s.Len(wins, 1)
}

func (s *SpinServiceTestSuite) TestLedgerInvariantUnderConcurrentSpins() {
	s.createPrize("5 баллов", entities.PrizePoints, 5, 50, 0, nil)
	s.createPrize("Кофе", entities.PrizeOther, 0, 50, 1, nil)
	account := s.player("+77010000001", 100)

	clubs := make([]*entities.Club, 12)
	for i := range clubs {
		clubs[i] = s.createClub(fmt.Sprintf("club-%d", i), true, true)
	}

	service := s.newService(0.3, nil)
	var wg sync.WaitGroup
	for _, club := range clubs {
		wg.Add(1)
		go func(slug string) {
			defer wg.Done()
			service.ExecuteSpin(s.ctx, s.request(account.ID, slug))
		}(club.Slug)
	}
	wg.Wait()

	s.GreaterOrEqual(s.balance(account.ID), int64(0))
	s.NoError(s.wallet.VerifyLedger(s.ctx, account.ID))
}
