package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"gatekeeper-bot/internal/subscription"
	"gatekeeper-bot/internal/tariff"
	"gatekeeper-bot/internal/wayforpay"
)

// Bot is the conversational surface: plan selection, payment buttons,
// profile and the admin commands. All entitlement changes go through the
// ledger; the bot itself never mutates subscription state directly.
type Bot struct {
	Instance *telego.Bot
	Payments *wayforpay.Client
	Ledger   *subscription.Ledger
	Store    subscription.Store
	Catalog  *tariff.Catalog
	AdminID  int64
	Log      *slog.Logger
}

func New(instance *telego.Bot, payments *wayforpay.Client, ledger *subscription.Ledger, store subscription.Store, catalog *tariff.Catalog, adminID int64, log *slog.Logger) *Bot {
	return &Bot{
		Instance: instance,
		Payments: payments,
		Ledger:   ledger,
		Store:    store,
		Catalog:  catalog,
		AdminID:  adminID,
		Log:      log,
	}
}

func (b *Bot) tariffsKeyboard() *telego.InlineKeyboardMarkup {
	var rows [][]telego.InlineKeyboardButton
	for _, plan := range b.Catalog.All() {
		rows = append(rows, tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(fmt.Sprintf("%s - %.0f UAH", plan.Name, plan.Price)).
				WithCallbackData("buy_"+plan.ID),
		))
	}
	rows = append(rows, tu.InlineKeyboardRow(
		tu.InlineKeyboardButton("👤 Мой профиль").WithCallbackData("profile"),
	))
	return tu.InlineKeyboard(rows...)
}

func (b *Bot) Start(ctx context.Context) error {
	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	// /start command
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		from := message.From

		fullName := strings.TrimSpace(from.FirstName + " " + from.LastName)
		if _, err := b.Store.FindOrCreateUser(ctx.Context(), from.ID, from.Username, fullName); err != nil {
			b.Log.Error("failed to register user", "user_id", from.ID, "error", err)
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			"Привет! Это бот для доступа к закрытому каналу.\nВыберите тарифный план для оформления подписки:",
		).WithReplyMarkup(b.tariffsKeyboard()))
		return nil
	}, th.CommandEqual("start"))

	// Plan selection -> payment link
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		telegramID := callback.From.ID
		planID := strings.TrimPrefix(callback.Data, "buy_")

		plan, ok := b.Catalog.ByID(planID)
		if !ok {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), "❌ Такой тариф не найден."))
			_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
			return nil
		}

		payURL, orderRef, err := b.Payments.CreatePayment(ctx.Context(), telegramID, plan)
		if err != nil {
			var rejection *wayforpay.RejectionError
			switch {
			case errors.As(err, &rejection):
				b.Log.Warn("payment session rejected", "user_id", telegramID, "reason", rejection.Reason)
				_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
					"❌ Платежная система отклонила запрос. Попробуйте другой тариф или напишите в поддержку."))
			default:
				b.Log.Error("failed to create payment session", "user_id", telegramID, "error", err)
				_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID),
					"⏳ Платежная система временно недоступна. Попробуйте еще раз через пару минут."))
			}
			_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
			return nil
		}

		b.Log.Info("payment session created", "user_id", telegramID, "tariff", plan.ID, "order_reference", orderRef)

		markup := tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("💳 Оплатить").WithURL(payURL),
			),
		)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(telegramID),
			fmt.Sprintf("Вы выбрали тариф: %s.\nНажмите кнопку ниже для оплаты.", plan.Name),
		).WithReplyMarkup(markup))
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataPrefix("buy_"))

	// Profile
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		callback := update.CallbackQuery
		telegramID := callback.From.ID

		user, err := b.Store.FindOrCreateUser(ctx.Context(), telegramID, callback.From.Username, "")
		if err != nil {
			b.Log.Error("failed to load user", "user_id", telegramID, "error", err)
			_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
			return nil
		}
		sub, err := b.Store.SubscriptionFor(ctx.Context(), user)
		if err != nil {
			b.Log.Error("failed to load subscription", "user_id", telegramID, "error", err)
			_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
			return nil
		}

		var text string
		if sub.Active {
			text = fmt.Sprintf("✅ Подписка активна\nТариф: %s\nДействует до: %s",
				sub.TariffLabel, sub.ExpiryDate.Format("02.01.2006"))
			if sub.InviteLink != "" {
				text += "\n\nСсылка для входа:\n" + sub.InviteLink
			}
		} else {
			text = "⛔ Подписка не активна. Выберите тариф, чтобы оформить доступ."
		}

		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(telegramID), text))
		_ = ctx.Bot().AnswerCallbackQuery(ctx.Context(), tu.CallbackQuery(callback.ID))
		return nil
	}, th.CallbackDataEqual("profile"))

	// /admin command
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if message.From.ID != b.AdminID {
			return nil
		}

		total, active, err := b.Store.Stats(ctx.Context())
		if err != nil {
			b.Log.Error("failed to load stats", "error", err)
			return nil
		}

		text := fmt.Sprintf("👥 Всего пользователей: %d\n✅ Активных подписок: %d\n\nКоманды:\n/add ID DAYS - Выдать доступ вручную",
			total, active)
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), text))
		return nil
	}, th.CommandEqual("admin"))

	// /add command: manual grant, admin only
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		message := update.Message
		if message.From.ID != b.AdminID {
			return nil
		}

		parts := strings.Fields(message.Text)
		if len(parts) != 3 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "Использование: /add ID DAYS"))
			return nil
		}
		targetID, err1 := strconv.ParseInt(parts[1], 10, 64)
		days, err2 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || days <= 0 {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), "Использование: /add ID DAYS"))
			return nil
		}

		err := b.Ledger.Grant(ctx.Context(), subscription.GrantRequest{
			TelegramID:  targetID,
			Days:        days,
			TariffLabel: "Manual_Admin",
		})
		if err != nil {
			_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(tu.ID(message.Chat.ID), fmt.Sprintf("Ошибка: %v", err)))
			return nil
		}
		_, _ = ctx.Bot().SendMessage(ctx.Context(), tu.Message(
			tu.ID(message.Chat.ID),
			fmt.Sprintf("Пользователь %d добавлен на %d дней.", targetID, days),
		))
		return nil
	}, th.CommandEqual("add"))

	b.Log.Info("bot handlers registered, polling for updates")
	handler.Start()
	return nil
}
