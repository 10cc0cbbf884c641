package repository

import (
	"context"
	"errors"

	"github.com/afriproperty/payment-gateway/internal/model"
	"github.com/afriproperty/payment-gateway/pkg/pg"
	"gorm.io/gorm"
)

var ErrInvestorNotFound = errors.New("investor not found")

type InvestorEntity struct {
	ID       int64  `db:"id"        gorm:"primaryKey;autoIncrement;column:id"`
	FullName string `db:"full_name" gorm:"column:full_name;not null"`
	Email    string `db:"email"     gorm:"column:email;not null;uniqueIndex"`
	Phone    string `db:"phone"     gorm:"column:phone"`
	APIKey   string `db:"api_key"   gorm:"column:api_key;not null;uniqueIndex"`
}

func (InvestorEntity) TableName() string {
	return "investors"
}

type InvestorRepository struct {
	*pg.DB
}

func NewInvestorRepository(db *pg.DB) *InvestorRepository {
	return &InvestorRepository{
		db,
	}
}

func (r *InvestorRepository) GetByID(ctx context.Context, id int64) (*model.Investor, error) {
	var entity InvestorEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvestorNotFound
		}
		return nil, err
	}
	return toInvestorModel(&entity), nil
}

func (r *InvestorRepository) GetByAPIKey(ctx context.Context, apiKey string) (*model.Investor, error) {
	var entity InvestorEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("api_key = ?", apiKey).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvestorNotFound
		}
		return nil, err
	}
	return toInvestorModel(&entity), nil
}

func toInvestorModel(e *InvestorEntity) *model.Investor {
	if e == nil {
		return nil
	}
	return &model.Investor{
		ID:       e.ID,
		FullName: e.FullName,
		Email:    e.Email,
		Phone:    e.Phone,
		APIKey:   e.APIKey,
	}
}
