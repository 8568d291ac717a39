package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qifbot/qifbot/internal/category"
	"github.com/qifbot/qifbot/internal/chat"
	"github.com/qifbot/qifbot/internal/common"
	"github.com/qifbot/qifbot/internal/monitoring"
	"github.com/qifbot/qifbot/internal/qif"
	"github.com/qifbot/qifbot/internal/receipt"
	"github.com/qifbot/qifbot/internal/user"
)

// editPrefix marks callback payloads that reopen categorization for an
// item; everything else is a literal account string.
const editPrefix = "edit:"

// maxKeyboardRows caps how many matched accounts are offered at once.
const maxKeyboardRows = 10

// Config holds the collaborators and settings for a conversation engine.
type Config struct {
	Transport chat.Transport
	Users     *user.Manager
	Metrics   *monitoring.Metrics
	Account   qif.Account
}

// Engine walks each chat through categorizing every item of an uploaded
// receipt. It implements chat.Handler; the dispatcher guarantees events
// for one chat arrive serially.
type Engine struct {
	transport chat.Transport
	users     *user.Manager
	states    *Store
	metrics   *monitoring.Metrics
	account   qif.Account
}

// NewEngine creates a conversation engine.
func NewEngine(cfg Config) *Engine {
	account := cfg.Account
	if account.Name == "" {
		account = qif.Account{Name: "Wallet", Type: qif.Cash}
	}
	return &Engine{
		transport: cfg.Transport,
		users:     cfg.Users,
		states:    NewStore(),
		metrics:   cfg.Metrics,
		account:   account,
	}
}

// States exposes the state store for inspection in diagnostics and tests.
func (e *Engine) States() *Store {
	return e.states
}

func (e *Engine) countEvent() {
	if e.metrics != nil {
		e.metrics.IncomingRequests.Inc()
	}
}

// HandleFile treats any uploaded attachment as a receipt candidate:
// download it, parse it, auto-categorize what the user's statistics
// already cover and start the dialogue for the rest.
func (e *Engine) HandleFile(ctx context.Context, event chat.FileEvent) error {
	e.countEvent()

	_, gen := e.states.Get(event.ChatID)

	data, err := e.transport.DownloadFile(ctx, event.FileID)
	if err != nil {
		// Transport failure: no transition, the user can resend the file.
		if sendErr := e.transport.SendMessage(ctx, event.ChatID,
			"I couldn't fetch that file. Please send it again."); sendErr != nil {
			slog.Error("Failed to deliver download failure message", "chat_id", event.ChatID, "error", sendErr)
		}
		return fmt.Errorf("failed to download file %q: %w", event.FileID, err)
	}

	parsed, err := e.parseReceipt(ctx, event, data)
	if err != nil || parsed == nil {
		return err
	}

	rec, err := e.users.Get(ctx, event.UserID)
	if err != nil {
		return e.reportf(ctx, event.ChatID, "I couldn't load your data, please try again.",
			"failed to load user record: %w", err)
	}

	state := State{
		Phase:    AwaitingFile,
		FileName: event.FileName,
		Items:    materializeItems(parsed.Items),
		Decided:  make(map[string]string),
		Date:     parsed.Date,
		TotalSum: parsed.TotalSum,
	}

	// Auto-categorization: every item with learned statistics is decided
	// up front; the dialogue only covers the remainder.
	auto := category.NewAutomatic(rec.Categories)
	for _, item := range state.Items {
		cat, resolveErr := auto.Resolve(ctx, item.Name)
		if resolveErr != nil {
			return resolveErr
		}
		if cat != "" {
			state.Decided[item.ID] = cat
		} else {
			state.Remaining = append(state.Remaining, item.ID)
		}
	}

	if len(state.Remaining) == 0 {
		state.Phase = Ready
		if err := e.sendSummary(ctx, event.ChatID, &state); err != nil {
			return err
		}
	} else {
		state.Current, state.Remaining = state.Remaining[0], state.Remaining[1:]
		state.Phase = SelectingCategory
		if err := e.sendCategoryPrompt(ctx, event.ChatID, rec, &state); err != nil {
			return err
		}
	}

	if !e.states.SetIf(event.ChatID, gen, state) {
		slog.Info("Discarding stale receipt result", "chat_id", event.ChatID, "file", event.FileName)
	}
	return nil
}

// parseReceipt decodes the downloaded data. A malformed file is reported
// to the user and moves the chat to AwaitingFile for a fresh attempt.
func (e *Engine) parseReceipt(ctx context.Context, event chat.FileEvent, data []byte) (*receipt.Receipt, error) {
	r, err := receipt.Parse(data)
	if err != nil {
		slog.Warn("Rejected receipt file", "chat_id", event.ChatID, "file", event.FileName, "error", err)
		e.states.Set(event.ChatID, State{Phase: AwaitingFile, FileName: event.FileName})
		if sendErr := e.transport.SendMessage(ctx, event.ChatID,
			fmt.Sprintf("I couldn't read %q as a receipt. Please send a valid receipt file.", event.FileName)); sendErr != nil {
			return nil, sendErr
		}
		return nil, nil
	}
	return r, nil
}

// HandleText interprets a free text message according to the current
// phase. Commands work in every phase.
func (e *Engine) HandleText(ctx context.Context, event chat.TextEvent) error {
	e.countEvent()

	if strings.HasPrefix(event.Text, "/") {
		return e.handleCommand(ctx, event)
	}

	state, gen := e.states.Get(event.ChatID)

	switch state.Phase {
	case SelectingCategory:
		return e.handleCategoryQuery(ctx, event, state, gen)
	case SelectingSubcategory:
		return e.transport.SendMessage(ctx, event.ChatID,
			"Please pick one of the category buttons above, or /cancel to start over.")
	case Ready:
		return e.finalize(ctx, event.ChatID, event.UserID, state, event.Text)
	case AwaitingFile:
		return e.transport.SendMessage(ctx, event.ChatID,
			"I'm waiting for a receipt file. Send one as an attachment.")
	case Idle:
		return e.transport.SendMessage(ctx, event.ChatID,
			"Send me a receipt file to get started, or /help for commands.")
	default:
		return fmt.Errorf("chat %d is in unknown phase %d", event.ChatID, state.Phase)
	}
}

// handleCategoryQuery narrows the user's expense accounts by the typed
// query and offers the matches as buttons.
func (e *Engine) handleCategoryQuery(ctx context.Context, event chat.TextEvent, state State, gen uint64) error {
	accounts, err := e.users.ExpenseAccounts(ctx, event.UserID)
	if err != nil {
		return e.reportf(ctx, event.ChatID, "I couldn't load your accounts, please try again.",
			"failed to load accounts: %w", err)
	}

	query := strings.TrimSpace(event.Text)
	matches := category.Match(accounts, query)
	if len(matches) == 0 {
		return e.transport.SendMessage(ctx, event.ChatID,
			fmt.Sprintf("No account matches %q. Try a shorter part of the name, like \"groc\" or \"exp:groc\".", query))
	}

	item, ok := state.item(state.Current)
	if !ok {
		return e.internalFault(ctx, event.ChatID, fmt.Errorf("current item %q not in state", state.Current))
	}

	shown := matches
	note := ""
	if len(shown) > maxKeyboardRows {
		shown = shown[:maxKeyboardRows]
		note = fmt.Sprintf(" (showing %d of %d, refine to see others)", maxKeyboardRows, len(matches))
	}

	rows := make([][]chat.Button, 0, len(shown))
	for _, match := range shown {
		rows = append(rows, []chat.Button{{Label: match, Data: match}})
	}

	if err := e.transport.SendKeyboard(ctx, event.ChatID,
		fmt.Sprintf("Pick a category for %q%s:", item.Name, note), rows); err != nil {
		return err
	}

	state.Phase = SelectingSubcategory
	state.Query = query
	if !e.states.SetIf(event.ChatID, gen, state) {
		slog.Info("Discarding stale category query", "chat_id", event.ChatID)
	}
	return nil
}

// HandleCallback handles button clicks: either a literal account string
// selecting the category for the current item, or edit:<id> reopening a
// decided item.
func (e *Engine) HandleCallback(ctx context.Context, event chat.CallbackEvent) error {
	e.countEvent()

	state, gen := e.states.Get(event.ChatID)

	if id, ok := strings.CutPrefix(event.Data, editPrefix); ok {
		return e.handleEdit(ctx, event, state, gen, id)
	}

	switch state.Phase {
	case SelectingCategory, SelectingSubcategory:
		return e.handleCategoryChoice(ctx, event, state, gen)
	case Idle, AwaitingFile, Ready:
		return e.transport.SendMessage(ctx, event.ChatID,
			"That choice isn't active anymore. Send a receipt file or /help.")
	default:
		return fmt.Errorf("chat %d is in unknown phase %d", event.ChatID, state.Phase)
	}
}

// handleCategoryChoice records the clicked category for the current item
// and moves on to the next unresolved item, or to Ready.
func (e *Engine) handleCategoryChoice(ctx context.Context, event chat.CallbackEvent, state State, gen uint64) error {
	choice := event.Data
	if choice == "" {
		return e.transport.SendMessage(ctx, event.ChatID,
			"That button carried no category. Please pick another one.")
	}

	if state.Decided == nil {
		state.Decided = make(map[string]string)
	}
	state.Decided[state.Current] = choice

	if len(state.Remaining) > 0 {
		state.Current, state.Remaining = state.Remaining[0], state.Remaining[1:]
		state.Phase = SelectingCategory
		state.Query = ""

		rec, err := e.users.Get(ctx, event.UserID)
		if err != nil {
			return e.reportf(ctx, event.ChatID, "I couldn't load your data, please try again.",
				"failed to load user record: %w", err)
		}
		if err := e.sendCategoryPrompt(ctx, event.ChatID, rec, &state); err != nil {
			return err
		}
	} else {
		state.Current = ""
		state.Phase = Ready
		state.Query = ""
		if err := e.sendSummary(ctx, event.ChatID, &state); err != nil {
			return err
		}
	}

	if !e.states.SetIf(event.ChatID, gen, state) {
		slog.Info("Discarding stale category choice", "chat_id", event.ChatID)
	}
	return nil
}

// handleEdit reopens categorization for one already-decided item from the
// Ready summary.
func (e *Engine) handleEdit(ctx context.Context, event chat.CallbackEvent, state State, gen uint64, id string) error {
	if state.Phase != Ready {
		return e.transport.SendMessage(ctx, event.ChatID,
			"There is nothing to edit right now.")
	}

	item, ok := state.item(id)
	if !ok {
		return e.transport.SendMessage(ctx, event.ChatID,
			"That item isn't part of the current receipt anymore.")
	}

	delete(state.Decided, id)
	state.Current = id
	state.Phase = SelectingCategory
	state.Query = ""

	rec, err := e.users.Get(ctx, event.UserID)
	if err != nil {
		return e.reportf(ctx, event.ChatID, "I couldn't load your data, please try again.",
			"failed to load user record: %w", err)
	}
	if err := e.sendCategoryPrompt(ctx, event.ChatID, rec, &state); err != nil {
		return err
	}
	slog.Debug("Reopened item for categorization", "chat_id", event.ChatID, "item", item.Name)

	if !e.states.SetIf(event.ChatID, gen, state) {
		slog.Info("Discarding stale edit", "chat_id", event.ChatID)
	}
	return nil
}

// finalize renders the QIF transaction, records every decision in the
// user's statistics and resets the chat.
func (e *Engine) finalize(ctx context.Context, chatID, userID int64, state State, memo string) error {
	memo = strings.TrimSpace(memo)
	if memo == "" {
		memo = "New"
	}

	txn := &qif.Transaction{Date: state.Date, Memo: memo}
	for _, item := range state.Items {
		cat := state.Decided[item.ID]
		if cat == "" {
			// Every SelectingSubcategory -> Ready edge supplies a non-empty
			// category, so reaching this is an internal-logic fault.
			return e.internalFault(ctx, chatID,
				fmt.Errorf("finalize reached with no category for item %q", item.Name))
		}
		txn.Splits = append(txn.Splits, qif.Split{
			Memo:     item.Name,
			Category: cat,
			Amount:   item.Sum,
		})
	}

	doc, err := qif.Document(e.account, txn, state.TotalSum)
	if err != nil {
		return e.internalFault(ctx, chatID, err)
	}

	name := state.FileName
	if name == "" {
		name = "receipt"
	}
	if err := e.transport.SendDocument(ctx, chatID, name+".qif", []byte(doc)); err != nil {
		// No transition: the user may retry by sending the memo again.
		return fmt.Errorf("failed to send transaction document: %w", err)
	}

	for _, item := range state.Items {
		if err := e.users.Assign(ctx, userID, item.Name, state.Decided[item.ID]); err != nil {
			slog.Error("Failed to record category assignment",
				"chat_id", chatID, "item", item.Name, "error", err)
		}
	}

	if e.metrics != nil {
		e.metrics.ProcessedItems.Add(float64(len(state.Items)))
	}

	e.states.Reset(chatID)
	return e.transport.SendMessage(ctx, chatID,
		fmt.Sprintf("Done! %d items written against %s. Send another receipt any time.",
			len(state.Items), e.account.Name))
}

// sendCategoryPrompt asks for the current item's category, offering the
// top learned suggestions as shortcuts when any exist.
func (e *Engine) sendCategoryPrompt(ctx context.Context, chatID int64, rec *user.Record, state *State) error {
	item, ok := state.item(state.Current)
	if !ok {
		return fmt.Errorf("current item %q not in state", state.Current)
	}

	done := len(state.Decided)
	total := len(state.Items)
	text := fmt.Sprintf("What category is %q? (%d of %d left)\nType part of an account name, like \"groc\" or \"exp:groc\".",
		item.Name, total-done, total)

	stats := rec.Categories.Stats(item.Name)
	if len(stats) == 0 {
		return e.transport.SendMessage(ctx, chatID, text)
	}

	if len(stats) > maxKeyboardRows {
		stats = stats[:maxKeyboardRows]
	}
	rows := make([][]chat.Button, 0, len(stats))
	for _, stat := range stats {
		rows = append(rows, []chat.Button{{Label: stat.Category, Data: stat.Category}})
	}
	return e.transport.SendKeyboard(ctx, chatID, text, rows)
}

// sendSummary shows the full decision list with per-item edit buttons and
// asks for the closing memo line.
func (e *Engine) sendSummary(ctx context.Context, chatID int64, state *State) error {
	var b strings.Builder
	b.WriteString("All items are categorized:\n")
	for _, item := range state.Items {
		fmt.Fprintf(&b, "• %s → %s\n", item.Name, state.Decided[item.ID])
	}
	b.WriteString("Send a memo line to finish, or tap an item to change it.")

	rows := make([][]chat.Button, 0, len(state.Items))
	for _, item := range state.Items {
		rows = append(rows, []chat.Button{{
			Label: "Edit " + item.Name,
			Data:  editPrefix + item.ID,
		}})
	}
	return e.transport.SendKeyboard(ctx, chatID, b.String(), rows)
}

// reportf tells the user something went wrong in plain language and
// returns the wrapped internal error. The state is left untouched.
func (e *Engine) reportf(ctx context.Context, chatID int64, userMsg, format string, args ...any) error {
	if sendErr := e.transport.SendMessage(ctx, chatID, userMsg); sendErr != nil {
		slog.Error("Failed to deliver error message", "chat_id", chatID, "error", sendErr)
	}
	return common.NewUserError(userMsg, fmt.Errorf(format, args...))
}

// internalFault handles invariant violations: log loudly, tell the user,
// reset the chat to a safe state.
func (e *Engine) internalFault(ctx context.Context, chatID int64, err error) error {
	slog.Error("Conversation invariant violated", "chat_id", chatID, "error", err)
	e.states.Reset(chatID)
	if sendErr := e.transport.SendMessage(ctx, chatID,
		"Something went wrong on my side; the receipt was discarded. Please send it again."); sendErr != nil {
		slog.Error("Failed to deliver fault message", "chat_id", chatID, "error", sendErr)
	}
	return err
}
