package models

import "errors"

var (
	// ErrNotFound запись не найдена по ключу.
	ErrNotFound = errors.New("not found")
	// ErrDecisionConflict запись уже покинула ожидаемый статус.
	ErrDecisionConflict = errors.New("payment is no longer in expected status")
	// ErrInviteIssue не удалось выпустить пригласительную ссылку.
	ErrInviteIssue = errors.New("invite link issue failed")
	// ErrRenewalNotCredited продление подтверждено, но месяцы не начислены.
	ErrRenewalNotCredited = errors.New("renewal approved but not credited")
	// ErrNoActiveLink у пользователя нет неотозванной ссылки.
	ErrNoActiveLink = errors.New("no active invite link")
	// ErrNotMember пользователь не состоит в канале.
	ErrNotMember = errors.New("user is not a channel member")
	// ErrMembershipUnknown не удалось проверить членство.
	ErrMembershipUnknown = errors.New("membership lookup failed")
	// ErrAlreadyScheduled напоминание уже запланировано.
	ErrAlreadyScheduled = errors.New("reminder already scheduled")
	// ErrUnknownBroadcastType неизвестный тип сообщения в очереди.
	ErrUnknownBroadcastType = errors.New("unknown broadcast type")
)
