package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/qifbot/qifbot/internal/chat"
)

const helpText = `These commands are supported:
/help - show this text
/start - register with the bot
/cancel - discard the current receipt
/newaccount <name> - add an account to your list
/accounts - list your expense accounts
/request - show what I'm currently waiting for
/delete - request removal of your data`

// handleCommand processes /-prefixed messages. Commands work in any
// conversation phase.
func (e *Engine) handleCommand(ctx context.Context, event chat.TextEvent) error {
	fields := strings.Fields(event.Text)
	name := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// Group chats address commands as /cmd@botname.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	args := strings.TrimSpace(strings.TrimPrefix(event.Text, fields[0]))

	switch name {
	case "help":
		return e.transport.SendMessage(ctx, event.ChatID, helpText)

	case "start":
		return e.transport.SendMessage(ctx, event.ChatID,
			fmt.Sprintf("You are registered with id %d. Send a receipt file to begin.", event.UserID))

	case "cancel":
		// Hard reset; repeating it is a no-op by construction.
		e.states.Reset(event.ChatID)
		return e.transport.SendMessage(ctx, event.ChatID,
			"Canceled. Send a receipt file when you're ready.")

	case "newaccount":
		if args == "" {
			return e.transport.SendMessage(ctx, event.ChatID,
				"Usage: /newaccount Expenses:Groceries:Dairy")
		}
		if err := e.users.AddAccount(ctx, event.UserID, args); err != nil {
			return e.reportf(ctx, event.ChatID, "I couldn't save that account, please try again.",
				"failed to add account %q: %w", args, err)
		}
		return e.transport.SendMessage(ctx, event.ChatID,
			fmt.Sprintf("Added account %q.", args))

	case "accounts":
		accounts, err := e.users.ExpenseAccounts(ctx, event.UserID)
		if err != nil {
			return e.reportf(ctx, event.ChatID, "I couldn't load your accounts, please try again.",
				"failed to list accounts: %w", err)
		}
		if len(accounts) == 0 {
			return e.transport.SendMessage(ctx, event.ChatID,
				"No expense accounts yet. Import them or add one with /newaccount.")
		}
		return e.transport.SendMessage(ctx, event.ChatID, strings.Join(accounts, "\n"))

	case "request":
		state, _ := e.states.Get(event.ChatID)
		msg := fmt.Sprintf("State: %s. Items: %d, categorized: %d.",
			state.Phase, len(state.Items), len(state.Decided))
		if state.Query != "" {
			msg += fmt.Sprintf(" Current filter: %q.", state.Query)
		}
		return e.transport.SendMessage(ctx, event.ChatID, msg)

	case "delete":
		if err := e.users.Delete(ctx, event.UserID); err != nil {
			return e.reportf(ctx, event.ChatID, "I couldn't delete your data, please try again.",
				"failed to delete user %d: %w", event.UserID, err)
		}
		e.states.Reset(event.ChatID)
		return e.transport.SendMessage(ctx, event.ChatID,
			"Your stored data has been removed.")

	default:
		return e.transport.SendMessage(ctx, event.ChatID,
			fmt.Sprintf("Unknown command %q. Try /help.", fields[0]))
	}
}
