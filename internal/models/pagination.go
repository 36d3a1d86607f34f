package models

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

type Pagination struct {
	Page  int `query:"page"`
	Limit int `query:"limit"`
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.Limit }
