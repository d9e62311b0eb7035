package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/indextec/unit-uploader/internal/models"
	"github.com/indextec/unit-uploader/internal/units"
	"github.com/indextec/unit-uploader/internal/util/sanitize"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// errPickAborted is returned when the user quits the unit picker.
var errPickAborted = errors.New("unit selection aborted")

// promptProxyPassword reads the proxy password without echo.
func promptProxyPassword(user string) (string, error) {
	fmt.Fprintf(os.Stderr, "Proxy password for %s: ", user)
	password, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// pickUnit lets the user choose a unit, loading further pages on demand.
// Input is a list number, "m" for more, "q" to abort, or text to filter by.
func pickUnit(ctx context.Context, loader *units.Loader, in io.Reader, out io.Writer) (*models.Unit, error) {
	reader := bufio.NewReader(in)
	query := ""

	if len(loader.Options()) == 0 && !loader.Exhausted() {
		loader.FetchNextPage(ctx)
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		options := loader.Search(query)
		fmt.Fprintln(out)
		if query != "" {
			fmt.Fprintf(out, "Units matching %q:\n", query)
		} else {
			fmt.Fprintln(out, "Units:")
		}
		for i, opt := range options {
			fmt.Fprintf(out, "  %d. %s\n", i+1, sanitize.Label(opt.Label))
		}
		if len(options) == 0 {
			fmt.Fprintln(out, "  (none)")
		}
		if err := loader.LastError(); err != nil {
			printHint(out, "  Loading failed: %v", err)
		}

		prompt := "Choose a number, type to filter"
		if !loader.Exhausted() {
			prompt += ", m for more"
		}
		fmt.Fprintf(out, "%s, q to quit: ", prompt)

		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return nil, fmt.Errorf("failed to read selection: %w", err)
		}
		input = strings.TrimSpace(input)

		switch {
		case input == "":
			continue
		case input == "q":
			return nil, errPickAborted
		case input == "m":
			if loader.Exhausted() {
				fmt.Fprintln(out, "All units are loaded.")
				continue
			}
			loader.FetchNextPage(ctx)
			continue
		}

		if n, err := strconv.Atoi(input); err == nil {
			if n < 1 || n > len(options) {
				fmt.Fprintln(out, "Invalid choice, please try again.")
				continue
			}
			unit, ok := loader.Lookup(options[n-1].Key)
			if !ok {
				continue
			}
			return &unit, nil
		}

		query = input
	}
}
