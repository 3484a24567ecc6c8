package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"order_core/internal/domain/coupon/model"
	"order_core/internal/domain/coupon/repository"
	"order_core/internal/pkg/txn"
	"order_core/pkg/apperr"
	"order_core/pkg/logger"
	"order_core/pkg/metrics"
	baseModel "order_core/pkg/model"

	"go.uber.org/zap"
)

// Allocator 优惠券发放能力
type Allocator interface {
	CreateCampaign(ctx context.Context, input CreateCampaignInput) (*model.Campaign, error)
	UpdateValidity(ctx context.Context, campaignID string, from, until time.Time) (*model.Campaign, error)
	Claim(ctx context.Context, campaignID, userID string) (*model.Grant, error)
	// Redeem 只在订单协调器的事务内调用，核销后的券总是关联到已落库的订单
	Redeem(ctx context.Context, input RedeemInput) (int64, error)
	ExpireGrants(ctx context.Context) (int64, error)
	Grants(ctx context.Context, userID string) ([]model.Grant, error)
}

// UserChecker 用户身份协作方
type UserChecker interface {
	EnsureActive(ctx context.Context, userID string) error
}

type CreateCampaignInput struct {
	Name           string
	TotalTickets   int
	DiscountType   model.DiscountType
	DiscountValue  int64
	MaxDiscount    int64
	MinOrderAmount int64
	ValidFrom      time.Time
	ValidUntil     time.Time
}

type RedeemInput struct {
	GrantID     string
	UserID      string
	OrderID     string
	OrderAmount int64
}

type Options struct {
	MaxTickets   int
	SeedBatch    int
	ClaimBackoff time.Duration
	Clock        func() time.Time
}

// errNoTicket 本轮没有可用（未被锁住）的券
var errNoTicket = errors.New("no unlocked ticket")

type allocator struct {
	repo    repository.CouponRepository
	tx      txn.Manager
	users   UserChecker
	soldOut SoldOutMarker
	metrics *metrics.MetricsCollector
	opts    Options
}

func NewAllocator(
	repo repository.CouponRepository,
	tx txn.Manager,
	users UserChecker,
	soldOut SoldOutMarker,
	collector *metrics.MetricsCollector,
	opts Options,
) Allocator {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.SeedBatch <= 0 {
		opts.SeedBatch = 500
	}
	if soldOut == nil {
		soldOut = NopSoldOutMarker{}
	}
	return &allocator{
		repo:    repo,
		tx:      tx,
		users:   users,
		soldOut: soldOut,
		metrics: collector,
		opts:    opts,
	}
}

// CreateCampaign 创建活动并预生成 TotalTickets 张券
// "还剩多少张" 从一个共享计数器变成一批可以各自加锁的行
func (s *allocator) CreateCampaign(ctx context.Context, input CreateCampaignInput) (*model.Campaign, error) {
	if err := s.validateCampaign(input); err != nil {
		return nil, err
	}

	campaign := &model.Campaign{
		Name:           strings.TrimSpace(input.Name),
		TotalTickets:   input.TotalTickets,
		DiscountType:   input.DiscountType,
		DiscountValue:  input.DiscountValue,
		MaxDiscount:    input.MaxDiscount,
		MinOrderAmount: input.MinOrderAmount,
		ValidFrom:      input.ValidFrom,
		ValidUntil:     input.ValidUntil,
	}
	campaign.EnsureID()

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateCampaign(ctx, campaign); err != nil {
			return err
		}
		tickets := make([]*model.Ticket, input.TotalTickets)
		for i := range tickets {
			t := &model.Ticket{
				CampaignID: campaign.ID,
				Seq:        i + 1,
				Status:     model.TicketAvailable,
			}
			t.EnsureID()
			tickets[i] = t
		}
		return s.repo.SeedTickets(ctx, tickets, s.opts.SeedBatch)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("coupon campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.Int("tickets", campaign.TotalTickets),
	)
	return campaign, nil
}

func (s *allocator) validateCampaign(input CreateCampaignInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return apperr.ErrInvalidArgument.WithDetail("campaign name is required")
	}
	if input.TotalTickets < 1 || (s.opts.MaxTickets > 0 && input.TotalTickets > s.opts.MaxTickets) {
		return apperr.ErrInvalidQuantity.WithDetail("total tickets must be within [1, %d], got %d",
			s.opts.MaxTickets, input.TotalTickets)
	}
	switch input.DiscountType {
	case model.DiscountFixed:
	case model.DiscountPercent:
		if input.DiscountValue > 100 {
			return apperr.ErrInvalidAmount.WithDetail("percent discount must not exceed 100, got %d", input.DiscountValue)
		}
	default:
		return apperr.ErrInvalidArgument.WithDetail("unknown discount type %q", input.DiscountType)
	}
	if input.DiscountValue <= 0 || input.MaxDiscount < 0 || input.MinOrderAmount < 0 {
		return apperr.ErrInvalidAmount.WithDetail("discount amounts must be positive")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return apperr.ErrInvalidArgument.WithDetail("validUntil must be after validFrom")
	}
	return nil
}

func (s *allocator) UpdateValidity(ctx context.Context, campaignID string, from, until time.Time) (*model.Campaign, error) {
	if !until.After(from) {
		return nil, apperr.ErrInvalidArgument.WithDetail("validUntil must be after validFrom")
	}
	if !baseModel.ValidID(campaignID) {
		return nil, apperr.ErrCampaignNotFound.WithDetail("campaign %s", campaignID)
	}

	var campaign *model.Campaign
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.ErrCampaignNotFound.WithDetail("campaign %s", campaignID)
		}
		if err := s.repo.UpdateValidity(ctx, campaignID, from, until); err != nil {
			return err
		}
		c.ValidFrom, c.ValidUntil = from, until
		campaign = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return campaign, nil
}

// Claim 领券
// 1. 已领过 → DuplicateClaim
// 2. 不在有效期 → CampaignNotActive
// 3. SKIP LOCKED 取一张券；全部被锁或已领完时短暂退避后重试一次，仍没有则 SoldOut
// 4. 标记券已领取并写入领取记录
func (s *allocator) Claim(ctx context.Context, campaignID, userID string) (*model.Grant, error) {
	grant, err := s.claim(ctx, campaignID, userID)
	s.metrics.RecordCouponClaim(err)
	if err != nil {
		logger.Log.Debug("coupon claim rejected",
			zap.String("campaign_id", campaignID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, err
	}

	logger.Log.Info("coupon granted",
		zap.String("campaign_id", campaignID),
		zap.String("user_id", userID),
		zap.String("ticket_id", grant.TicketID),
	)
	return grant, nil
}

func (s *allocator) claim(ctx context.Context, campaignID, userID string) (*model.Grant, error) {
	if err := s.users.EnsureActive(ctx, userID); err != nil {
		return nil, err
	}
	if !baseModel.ValidID(campaignID) {
		return nil, apperr.ErrCampaignNotFound.WithDetail("campaign %s", campaignID)
	}

	var (
		grant *model.Grant
		err   error
	)
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.metrics.RecordCouponRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.opts.ClaimBackoff):
			}
		}
		grant, err = s.tryClaim(ctx, campaignID, userID)
		if !errors.Is(err, errNoTicket) {
			return grant, err
		}
	}

	// 两轮都没拿到：只有确认池子真的空了才写售罄标记，短暂争用不算
	if n, cerr := s.repo.CountAvailable(ctx, campaignID); cerr == nil && n == 0 {
		s.soldOut.MarkSoldOut(ctx, campaignID)
	}
	return nil, apperr.ErrSoldOut.WithDetail("campaign %s", campaignID)
}

func (s *allocator) tryClaim(ctx context.Context, campaignID, userID string) (*model.Grant, error) {
	var grant *model.Grant
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		claimed, err := s.repo.HasGrant(ctx, campaignID, userID)
		if err != nil {
			return err
		}
		if claimed {
			return apperr.ErrDuplicateClaim.WithDetail("campaign %s, user %s", campaignID, userID)
		}

		campaign, err := s.repo.GetCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return apperr.ErrCampaignNotFound.WithDetail("campaign %s", campaignID)
		}
		now := s.opts.Clock()
		if !campaign.ActiveAt(now) {
			return apperr.ErrCampaignNotActive.WithDetail("campaign %s valid %s ~ %s", campaignID,
				campaign.ValidFrom.Format(time.RFC3339), campaign.ValidUntil.Format(time.RFC3339))
		}

		if s.soldOut.IsSoldOut(ctx, campaignID) {
			return apperr.ErrSoldOut.WithDetail("campaign %s", campaignID)
		}

		ticket, err := s.repo.ClaimOneSkippingLocked(ctx, campaignID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return errNoTicket
		}
		if err := s.repo.MarkTicketClaimed(ctx, ticket.ID, userID, now); err != nil {
			return err
		}

		g := &model.Grant{
			UserID:     userID,
			CampaignID: campaignID,
			TicketID:   ticket.ID,
			Status:     model.GrantGranted,
		}
		g.EnsureID()
		if err := s.repo.CreateGrant(ctx, g); err != nil {
			return err
		}
		grant = g
		return nil
	})
	return grant, err
}

func (s *allocator) Redeem(ctx context.Context, input RedeemInput) (int64, error) {
	if input.OrderAmount < 0 {
		return 0, apperr.ErrInvalidAmount.WithDetail("order amount must not be negative")
	}
	if !baseModel.ValidID(input.GrantID) {
		return 0, apperr.ErrGrantNotFound.WithDetail("grant %s", input.GrantID)
	}

	var discount int64
	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		grant, err := s.repo.LockGrant(ctx, input.GrantID)
		if err != nil {
			return err
		}
		if grant == nil {
			return apperr.ErrGrantNotFound.WithDetail("grant %s", input.GrantID)
		}
		if grant.UserID != input.UserID {
			return apperr.ErrCouponNotUsable.WithDetail("grant %s belongs to another user", input.GrantID)
		}
		switch grant.Status {
		case model.GrantConsumed:
			return apperr.ErrCouponAlreadyConsumed.WithDetail("grant %s", input.GrantID)
		case model.GrantExpired:
			return apperr.ErrCouponNotUsable.WithDetail("grant %s expired", input.GrantID)
		}

		campaign, err := s.repo.GetCampaign(ctx, grant.CampaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return apperr.ErrCampaignNotFound.WithDetail("campaign %s", grant.CampaignID)
		}
		now := s.opts.Clock()
		if !campaign.ActiveAt(now) {
			return apperr.ErrCouponNotUsable.WithDetail("campaign %s is outside its validity window", campaign.ID)
		}
		if input.OrderAmount < campaign.MinOrderAmount {
			return apperr.ErrCouponBelowMinimum.WithDetail("order amount %d, minimum %d",
				input.OrderAmount, campaign.MinOrderAmount)
		}

		discount = campaign.Discount(input.OrderAmount)
		return s.repo.ConsumeGrant(ctx, grant.ID, input.OrderID, now)
	})
	if err != nil {
		return 0, err
	}
	return discount, nil
}

func (s *allocator) ExpireGrants(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireGrants(ctx, s.opts.Clock())
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSwept("coupon_grant", n)
	if n > 0 {
		logger.Log.Info("unused coupon grants expired", zap.Int64("rows", n))
	}
	return n, nil
}

func (s *allocator) Grants(ctx context.Context, userID string) ([]model.Grant, error) {
	return s.repo.ListGrants(ctx, userID)
}
