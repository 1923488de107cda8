package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/rocketscienceinc/bingo-backend/internal/entity"
	"github.com/rocketscienceinc/bingo-backend/internal/repository"
)

type mockSessionRepo struct {
	mock.Mock
}

func (that *mockSessionRepo) CreateSession(ctx context.Context, session repository.NewSession) (*entity.Session, error) {
	args := that.Called(ctx, session)
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (that *mockSessionRepo) CreatePlayer(ctx context.Context, player repository.NewPlayer) (*entity.Player, error) {
	args := that.Called(ctx, player)
	return args.Get(0).(*entity.Player), args.Error(1)
}

func (that *mockSessionRepo) GetSessionByCode(ctx context.Context, code string) (*entity.Session, error) {
	args := that.Called(ctx, code)
	return args.Get(0).(*entity.Session), args.Error(1)
}

func (that *mockSessionRepo) ListPlayers(ctx context.Context, sessionID string) ([]*entity.Player, error) {
	args := that.Called(ctx, sessionID)
	return args.Get(0).([]*entity.Player), args.Error(1)
}

// codes returns a generator that hands out the given codes in order.
func codes(values ...string) func() (string, error) {
	next := 0

	return func() (string, error) {
		code := values[next%len(values)]
		next++

		return code, nil
	}
}
