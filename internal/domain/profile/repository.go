package profile

import "context"

type Repository interface {
	Save(ctx context.Context, p *Profile) error
	GetByWallet(ctx context.Context, wallet string) (*Profile, error)
}
