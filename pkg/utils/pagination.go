package utils

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination 列表查询参数，按时间倒序取最近 Limit 条
type Pagination struct {
	Limit int `json:"limit" form:"limit"`
}

// GetLimit 越界时回落到默认值 / 上限
func (p *Pagination) GetLimit() int {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p.Limit
}
