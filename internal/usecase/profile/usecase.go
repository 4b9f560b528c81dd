package profile

import (
	"context"
	"errors"
	"strings"

	domain "bitguardian/internal/domain/profile"
)

var ErrInvalidInput = errors.New("name, email and wallet address are required")

type Usecase struct{ repo domain.Repository }

func NewUsecase(r domain.Repository) *Usecase { return &Usecase{repo: r} }

type SignupInput struct {
	Name          string
	Email         string
	WalletAddress string
}

func (u *Usecase) Signup(ctx context.Context, in SignupInput) (*domain.Profile, error) {
	p := &domain.Profile{
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		WalletAddress: strings.TrimSpace(in.WalletAddress),
	}
	if p.Name == "" || p.Email == "" || p.WalletAddress == "" {
		return nil, ErrInvalidInput
	}
	if err := u.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *Usecase) Get(ctx context.Context, wallet string) (*domain.Profile, error) {
	return u.repo.GetByWallet(ctx, wallet)
}
