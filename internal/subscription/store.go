package subscription

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"gatekeeper-bot/internal/models"
)

// Store is the persistence surface the ledger and the sweeper need.
type Store interface {
	FindOrCreateUser(ctx context.Context, telegramID int64, username, fullName string) (*models.User, error)
	SubscriptionFor(ctx context.Context, user *models.User) (*models.Subscription, error)
	// SaveSubscription persists the subscription and, when payment is
	// non-nil, the applied-payment row in one transaction. Committing the
	// extension without its dedup record (or the other way around) would
	// either let a provider retry double-extend or lose the grant.
	SaveSubscription(ctx context.Context, sub *models.Subscription, payment *models.Payment) error
	ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)
	OrderReferenceApplied(ctx context.Context, orderReference string) (bool, error)
	Stats(ctx context.Context) (total int64, active int64, err error)
}

// GormStore backs the Store interface with postgres via gorm.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindOrCreateUser(ctx context.Context, telegramID int64, username, fullName string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).FirstOrCreate(&user, models.User{TelegramID: telegramID}).Error; err != nil {
		return nil, fmt.Errorf("failed to find/create user: %w", err)
	}

	// Refresh profile fields when the caller knows them.
	if (username != "" && user.Username != username) || (fullName != "" && user.FullName != fullName) {
		if username != "" {
			user.Username = username
		}
		if fullName != "" {
			user.FullName = fullName
		}
		if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to update user profile: %w", err)
		}
	}
	return &user, nil
}

func (s *GormStore) SubscriptionFor(ctx context.Context, user *models.User) (*models.Subscription, error) {
	var sub models.Subscription
	if err := s.db.WithContext(ctx).FirstOrCreate(&sub, models.Subscription{UserID: user.ID}).Error; err != nil {
		return nil, fmt.Errorf("failed to find/create subscription: %w", err)
	}
	sub.User = *user
	return &sub, nil
}

func (s *GormStore) SaveSubscription(ctx context.Context, sub *models.Subscription, payment *models.Payment) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(sub).Error; err != nil {
			return err
		}
		if payment != nil {
			if err := tx.Create(payment).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

func (s *GormStore) ActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := s.db.WithContext(ctx).Preload("User").Where("active = ?", true).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to query active subscriptions: %w", err)
	}
	return subs, nil
}

func (s *GormStore) OrderReferenceApplied(ctx context.Context, orderReference string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("order_reference = ?", orderReference).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check order reference: %w", err)
	}
	return count > 0, nil
}

func (s *GormStore) Stats(ctx context.Context) (int64, int64, error) {
	var total, active int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count users: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to count active subscriptions: %w", err)
	}
	return total, active, nil
}
