package models

import "time"

// BotUser пользователь, хотя бы раз обратившийся к боту.
type BotUser struct {
	UserID          int64     `json:"user_id"`
	Username        string    `json:"username"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	LanguageCode    string    `json:"language_code"`
	LastInteraction time.Time `json:"last_interaction"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Handle возвращает имя для обращения к пользователю.
func (u BotUser) Handle() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// MembershipStatus статус участника в канале.
type MembershipStatus string

const (
	MemberOwner         MembershipStatus = "creator"
	MemberAdministrator MembershipStatus = "administrator"
	MemberMember        MembershipStatus = "member"
	MemberRestricted    MembershipStatus = "restricted"
	MemberLeft          MembershipStatus = "left"
	MemberKicked        MembershipStatus = "kicked"
)

// IsMember возвращает false для вышедших и исключённых пользователей.
func (s MembershipStatus) IsMember() bool {
	return s != MemberLeft && s != MemberKicked && s != ""
}

// Session состояние диалога покупки для одного пользователя.
type Session struct {
	ProductID         string `json:"product_id,omitempty"`
	Months            int    `json:"months,omitempty"`
	MethodID          string `json:"method_id,omitempty"`
	PaymentKey        int64  `json:"payment_key,omitempty"`
	WaitingForReceipt bool   `json:"waiting_for_receipt,omitempty"`
}
