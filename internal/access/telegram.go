package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ChannelEnforcer manages membership of the gated Telegram channel:
// single-use invite links in, ban/unban out.
type ChannelEnforcer struct {
	bot       *telego.Bot
	channelID int64
	log       *slog.Logger
}

func NewChannelEnforcer(bot *telego.Bot, channelID int64, log *slog.Logger) *ChannelEnforcer {
	return &ChannelEnforcer{bot: bot, channelID: channelID, log: log}
}

// EnsureUnbanned lifts a previous expulsion so a fresh invite link can work.
func (e *ChannelEnforcer) EnsureUnbanned(ctx context.Context, userID int64) error {
	err := e.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID:       tu.ID(e.channelID),
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		return fmt.Errorf("failed to unban user %d: %w", userID, err)
	}
	return nil
}

// CreateInvite issues a single-use invite link. The link has no time
// expiry; it dies after one join.
func (e *ChannelEnforcer) CreateInvite(ctx context.Context, userID int64) (string, error) {
	invite, err := e.bot.CreateChatInviteLink(ctx, &telego.CreateChatInviteLinkParams{
		ChatID:      tu.ID(e.channelID),
		Name:        fmt.Sprintf("user_%d", userID),
		MemberLimit: 1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create invite link for user %d: %w", userID, err)
	}
	e.log.Info("issued invite link", "user_id", userID)
	return invite.InviteLink, nil
}

// RevokeInvite invalidates an outstanding invite link.
func (e *ChannelEnforcer) RevokeInvite(ctx context.Context, inviteLink string) error {
	_, err := e.bot.RevokeChatInviteLink(ctx, &telego.RevokeChatInviteLinkParams{
		ChatID:     tu.ID(e.channelID),
		InviteLink: inviteLink,
	})
	if err != nil {
		return fmt.Errorf("failed to revoke invite link: %w", err)
	}
	return nil
}

// ExpelThenReadmit kicks the user out of the channel and immediately
// lifts the ban, so the next paid period can grant entry without manual
// unbanning.
func (e *ChannelEnforcer) ExpelThenReadmit(ctx context.Context, userID int64) error {
	err := e.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
		ChatID: tu.ID(e.channelID),
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("failed to ban user %d: %w", userID, err)
	}
	err = e.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{
		ChatID: tu.ID(e.channelID),
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("failed to lift ban for user %d: %w", userID, err)
	}
	return nil
}
