package gormdb

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model/auth"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"gorm.io/gorm"
)

type tokenRow struct {
	ID        string `gorm:"primaryKey;size:64"`
	Secret    string `gorm:"size:64;not null"`
	Sub       string `gorm:"size:255;not null"`
	Role      string `gorm:"size:32;not null"`
	CreatedAt time.Time `gorm:"type:datetime(6)"`
	ExpiresAt time.Time `gorm:"type:datetime(6);index"`
}

func (tokenRow) TableName() string {
	return "tokens"
}

func (g *GormDB) PutToken(ctx context.Context, token *auth.Token) error {
	if err := token.Validate(); err != nil {
		return err
	}

	row := &tokenRow{
		ID:        string(token.ID),
		Secret:    string(token.Secret),
		Sub:       token.Sub,
		Role:      string(token.Role),
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	}
	if err := g.db.WithContext(ctx).Save(row).Error; err != nil {
		return goerr.Wrap(err, "failed to put token", goerr.V("token_id", token.ID))
	}
	return nil
}

func (g *GormDB) GetToken(ctx context.Context, tokenID auth.TokenID) (*auth.Token, error) {
	var row tokenRow
	if err := g.db.WithContext(ctx).First(&row, "id = ?", string(tokenID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
		}
		return nil, goerr.Wrap(err, "failed to get token", goerr.V("token_id", tokenID))
	}

	return &auth.Token{
		ID:        auth.TokenID(row.ID),
		Secret:    auth.TokenSecret(row.Secret),
		Sub:       row.Sub,
		Role:      types.Role(row.Role),
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

func (g *GormDB) DeleteToken(ctx context.Context, tokenID auth.TokenID) error {
	result := g.db.WithContext(ctx).Delete(&tokenRow{}, "id = ?", string(tokenID))
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete token", goerr.V("token_id", tokenID))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "token not found", goerr.V("token_id", tokenID))
	}
	return nil
}
