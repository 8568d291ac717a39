package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/qifbot/qifbot/internal/category"
)

// Prompter asks for item categories on a terminal. It implements
// category.Categorizer for the tty path of one-shot conversion.
type Prompter struct {
	reader   *bufio.Reader
	writer   io.Writer
	store    *category.Store
	accounts []string
}

// NewPrompter creates a terminal prompter answering from store and
// narrowing free input against accounts. Nil reader/writer default to
// stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer, store *category.Store, accounts []string) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader:   bufio.NewReader(reader),
		writer:   writer,
		store:    store,
		accounts: accounts,
	}
}

// Resolve prompts for the item's category. An empty reply accepts the
// learned suggestion when one exists. Partial input is narrowed against
// the account list; input matching nothing is taken as a literal new
// category.
func (p *Prompter) Resolve(ctx context.Context, item string) (string, error) {
	suggestion, _ := p.store.Top(item)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if suggestion != "" {
			fmt.Fprintf(p.writer, "Category for %s [%s]: ",
				ItemStyle.Render(item), SuggestionStyle.Render(suggestion))
		} else {
			fmt.Fprintf(p.writer, "Category for %s: ", ItemStyle.Render(item))
		}

		line, err := p.reader.ReadString('\n')
		if err != nil && line == "" {
			if err == io.EOF && suggestion != "" {
				return suggestion, nil
			}
			return "", fmt.Errorf("failed to read category input: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			if suggestion != "" {
				return suggestion, nil
			}
			fmt.Fprintln(p.writer, SubtleStyle.Render("No suggestion known, please type a category."))
			continue
		}

		matches := category.Match(p.accounts, input)
		switch len(matches) {
		case 0:
			// Not matching any account: a brand new category.
			return input, nil
		case 1:
			return matches[0], nil
		default:
			fmt.Fprintln(p.writer, SubtleStyle.Render("Matches:"))
			for _, match := range matches {
				fmt.Fprintf(p.writer, "  %s\n", match)
			}
			fmt.Fprintln(p.writer, SubtleStyle.Render("Refine your input to a single match."))
		}
	}
}
