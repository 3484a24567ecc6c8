package apperr

// 业务错误码，与 pkg/response 的通用码同一编号空间
const (
	// 通用 100xx
	CodeUserNotFound    = 10002
	CodeInvalidQuantity = 10010
	CodeInvalidAmount   = 10011
	CodeInvalidArgument = 10012

	// 库存/预占 300xx
	CodeSKUNotFound          = 30001
	CodeStockUnavailable     = 30002
	CodeMaxStockExceeded     = 30003
	CodeDuplicateReservation = 30004
	CodeReservationNotFound  = 30005
	CodeReservationExpired   = 30006
	CodeReservationMismatch  = 30007
	CodeProductInactive      = 30008

	// 优惠券 200xx
	CodeCampaignNotFound      = 20001
	CodeSoldOut               = 20002
	CodeDuplicateClaim        = 20003
	CodeCampaignNotActive     = 20004
	CodeGrantNotFound         = 20005
	CodeCouponNotUsable       = 20006
	CodeCouponAlreadyConsumed = 20007
	CodeCouponBelowMinimum    = 20008

	// 余额 400xx
	CodeInsufficientBalance    = 40001
	CodeBalanceCeilingExceeded = 40002

	// 订单 410xx
	CodeOrderNotFound = 41001

	// 系统 500xx
	CodeBusy = 50004
)

var (
	ErrUserNotFound    = New(KindNotFound, CodeUserNotFound, "user not found")
	ErrInvalidQuantity = New(KindValidation, CodeInvalidQuantity, "invalid quantity")
	ErrInvalidAmount   = New(KindValidation, CodeInvalidAmount, "invalid amount")
	ErrInvalidArgument = New(KindValidation, CodeInvalidArgument, "invalid argument")

	ErrSKUNotFound          = New(KindNotFound, CodeSKUNotFound, "sku not found")
	ErrStockUnavailable     = New(KindConflict, CodeStockUnavailable, "stock unavailable")
	ErrMaxStockExceeded     = New(KindExhausted, CodeMaxStockExceeded, "max stock exceeded")
	ErrDuplicateReservation = New(KindConflict, CodeDuplicateReservation, "user already holds an active reservation")
	ErrReservationNotFound  = New(KindNotFound, CodeReservationNotFound, "inventory reservation not found")
	ErrReservationExpired   = New(KindConflict, CodeReservationExpired, "inventory reservation expired")
	ErrReservationMismatch  = New(KindConflict, CodeReservationMismatch, "inventory reservation does not match order lines")
	ErrProductInactive      = New(KindConflict, CodeProductInactive, "product is not on sale")

	ErrCampaignNotFound      = New(KindNotFound, CodeCampaignNotFound, "coupon campaign not found")
	ErrSoldOut               = New(KindConflict, CodeSoldOut, "coupon sold out")
	ErrDuplicateClaim        = New(KindConflict, CodeDuplicateClaim, "coupon already claimed")
	ErrCampaignNotActive     = New(KindConflict, CodeCampaignNotActive, "coupon campaign not active")
	ErrGrantNotFound         = New(KindNotFound, CodeGrantNotFound, "coupon grant not found")
	ErrCouponNotUsable       = New(KindConflict, CodeCouponNotUsable, "coupon not usable")
	ErrCouponAlreadyConsumed = New(KindConflict, CodeCouponAlreadyConsumed, "coupon already consumed")
	ErrCouponBelowMinimum    = New(KindConflict, CodeCouponBelowMinimum, "order amount below coupon minimum")

	ErrInsufficientBalance    = New(KindExhausted, CodeInsufficientBalance, "insufficient balance")
	ErrBalanceCeilingExceeded = New(KindExhausted, CodeBalanceCeilingExceeded, "balance ceiling exceeded")

	ErrOrderNotFound = New(KindNotFound, CodeOrderNotFound, "order not found")

	// ErrBusy 锁等待超时 / 死锁检测 / 序列化失败，调用方可带退避重试
	ErrBusy = New(KindTransient, CodeBusy, "resource busy, retry later")
)
