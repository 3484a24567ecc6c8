package repository

import (
	"context"
	"errors"
	"time"
	"order_core/internal/domain/coupon/model"
	"order_core/internal/pkg/txn"
	"order_core/pkg/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CouponRepository interface {
	CreateCampaign(ctx context.Context, campaign *model.Campaign) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
	UpdateValidity(ctx context.Context, id string, from, until time.Time) error

	SeedTickets(ctx context.Context, tickets []*model.Ticket, batchSize int) error
	// ClaimOneSkippingLocked 取一张未被其他事务锁住的 AVAILABLE 券，没有时返回 nil, nil
	ClaimOneSkippingLocked(ctx context.Context, campaignID string) (*model.Ticket, error)
	MarkTicketClaimed(ctx context.Context, ticketID, userID string, at time.Time) error
	CountAvailable(ctx context.Context, campaignID string) (int64, error)

	HasGrant(ctx context.Context, campaignID, userID string) (bool, error)
	// CreateGrant 违反 (campaign_id, user_id) 唯一约束时返回 apperr.ErrDuplicateClaim
	CreateGrant(ctx context.Context, grant *model.Grant) error
	LockGrant(ctx context.Context, grantID string) (*model.Grant, error)
	ConsumeGrant(ctx context.Context, grantID, orderID string, at time.Time) error
	ExpireGrants(ctx context.Context, now time.Time) (int64, error)
	ListGrants(ctx context.Context, userID string) ([]model.Grant, error)
}

type couponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) CouponRepository {
	return &couponRepository{db: db}
}

func (r *couponRepository) CreateCampaign(ctx context.Context, campaign *model.Campaign) error {
	return txn.DB(ctx, r.db).Create(campaign).Error
}

func (r *couponRepository) GetCampaign(ctx context.Context, id string) (*model.Campaign, error) {
	var campaign model.Campaign
	if err := txn.DB(ctx, r.db).Where("id = ?", id).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *couponRepository) UpdateValidity(ctx context.Context, id string, from, until time.Time) error {
	return txn.DB(ctx, r.db).Model(&model.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"valid_from":  from,
			"valid_until": until,
		}).Error
}

// SeedTickets 分批插入，避免单条 INSERT 参数过多
func (r *couponRepository) SeedTickets(ctx context.Context, tickets []*model.Ticket, batchSize int) error {
	return txn.DB(ctx, r.db).CreateInBatches(tickets, batchSize).Error
}

// ClaimOneSkippingLocked SELECT ... FOR UPDATE SKIP LOCKED LIMIT 1
// 并发领取者各自拿到不同的行，而不是排队等同一个计数器
func (r *couponRepository) ClaimOneSkippingLocked(ctx context.Context, campaignID string) (*model.Ticket, error) {
	var tickets []model.Ticket
	err := txn.DB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("campaign_id = ? AND status = ?", campaignID, model.TicketAvailable).
		Order("seq").
		Limit(1).
		Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, nil
	}
	return &tickets[0], nil
}

func (r *couponRepository) MarkTicketClaimed(ctx context.Context, ticketID, userID string, at time.Time) error {
	return txn.DB(ctx, r.db).Model(&model.Ticket{}).
		Where("id = ? AND status = ?", ticketID, model.TicketAvailable).
		Updates(map[string]interface{}{
			"status":             model.TicketClaimed,
			"claimed_by_user_id": userID,
			"claimed_at":         at,
		}).Error
}

func (r *couponRepository) CountAvailable(ctx context.Context, campaignID string) (int64, error) {
	var count int64
	err := txn.DB(ctx, r.db).Model(&model.Ticket{}).
		Where("campaign_id = ? AND status = ?", campaignID, model.TicketAvailable).
		Count(&count).Error
	return count, err
}

func (r *couponRepository) HasGrant(ctx context.Context, campaignID, userID string) (bool, error) {
	var count int64
	err := txn.DB(ctx, r.db).Model(&model.Grant{}).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *couponRepository) CreateGrant(ctx context.Context, grant *model.Grant) error {
	err := txn.DB(ctx, r.db).Create(grant).Error
	if isUniqueViolation(err) {
		return apperr.ErrDuplicateClaim.WithDetail("campaign %s, user %s", grant.CampaignID, grant.UserID)
	}
	return err
}

func (r *couponRepository) LockGrant(ctx context.Context, grantID string) (*model.Grant, error) {
	var grants []model.Grant
	err := txn.DB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", grantID).
		Limit(1).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}
	return &grants[0], nil
}

func (r *couponRepository) ConsumeGrant(ctx context.Context, grantID, orderID string, at time.Time) error {
	return txn.DB(ctx, r.db).Model(&model.Grant{}).
		Where("id = ? AND status = ?", grantID, model.GrantGranted).
		Updates(map[string]interface{}{
			"status":               model.GrantConsumed,
			"consumed_by_order_id": orderID,
			"consumed_at":          at,
		}).Error
}

// ExpireGrants 活动有效期结束后，未使用的领取记录置为 EXPIRED
func (r *couponRepository) ExpireGrants(ctx context.Context, now time.Time) (int64, error) {
	db := txn.DB(ctx, r.db)
	ended := db.Session(&gorm.Session{NewDB: true}).Model(&model.Campaign{}).
		Select("id").
		Where("valid_until <= ?", now)
	result := db.Model(&model.Grant{}).
		Where("status = ? AND campaign_id IN (?)", model.GrantGranted, ended).
		Update("status", model.GrantExpired)
	return result.RowsAffected, result.Error
}

func (r *couponRepository) ListGrants(ctx context.Context, userID string) ([]model.Grant, error) {
	var grants []model.Grant
	err := txn.DB(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&grants).Error
	return grants, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
