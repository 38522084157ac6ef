package api

import "github.com/CamDog38/ShopDelta2-sub001/internal/share"

// CreateShareRequest is the JSON body for POST /api/shares
type CreateShareRequest struct {
	Title     string `json:"title,omitempty" validate:"max=200"`
	Mode      string `json:"mode" validate:"required,oneof=year month"`
	YearA     *int   `json:"yearA,omitempty" validate:"omitempty,min=1970,max=9999"`
	YearB     *int   `json:"yearB,omitempty" validate:"omitempty,min=1970,max=9999"`
	Month     *int   `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Password  string `json:"password,omitempty" validate:"max=256"`
	ExpiresIn string `json:"expiresIn,omitempty" validate:"omitempty,oneof=1d 7d 30d never"`
}

func (r CreateShareRequest) options() share.IssueOptions {
	return share.IssueOptions{
		Title:     r.Title,
		Mode:      share.Mode(r.Mode),
		YearA:     r.YearA,
		YearB:     r.YearB,
		Month:     r.Month,
		Password:  r.Password,
		ExpiresIn: r.ExpiresIn,
	}
}

// UpdateShareRequest is the JSON body for PATCH /api/shares/{id}
type UpdateShareRequest struct {
	Title          *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Password       *string `json:"password,omitempty" validate:"omitempty,min=1,max=256"`
	RemovePassword bool    `json:"removePassword,omitempty"`
	ExpiresIn      *string `json:"expiresIn,omitempty" validate:"omitempty,oneof=1d 7d 30d never"`
	IsActive       *bool   `json:"isActive,omitempty"`
}

func (r UpdateShareRequest) options() share.UpdateOptions {
	return share.UpdateOptions{
		Title:          r.Title,
		Password:       r.Password,
		RemovePassword: r.RemovePassword,
		ExpiresIn:      r.ExpiresIn,
		IsActive:       r.IsActive,
	}
}

// UnlockShareRequest is the JSON body for POST /s/{code}/unlock
type UnlockShareRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// ShareListResponse is returned by GET /api/shares
type ShareListResponse struct {
	Shares []share.View `json:"shares"`
}

// PublicShareResponse is returned by the public share endpoints. Share is
// omitted until the visitor is allowed to see the report.
type PublicShareResponse struct {
	State share.AccessState `json:"state"`
	Title string            `json:"title,omitempty"`
	Share *share.View       `json:"share,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string            `json:"error"`
	State share.AccessState `json:"state,omitempty"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
