package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"golang.org/x/term"
)

var (
	errEmptyEmail       = errors.New("email must not be empty")
	errPasswordMismatch = errors.New("passwords do not match")
	errPasswordLength   = fmt.Errorf("password must be %d to %d characters", common.MinPasswordLength, common.MaxPasswordLength)
)

// readPassword reads from the terminal without echo. Tests replace it.
var readPassword = term.ReadPassword

// PromptEmail asks for the account email on a single line. Blank answers
// are refused before any request is made.
func PromptEmail(reader *bufio.Reader, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, "Email: "); err != nil {
		return "", err
	}

	line, err := reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}

	email := strings.TrimSpace(line)
	if email == "" {
		return "", errEmptyEmail
	}
	return email, nil
}

// PromptPassword prints label and reads a password without echo.
// The caller clears the returned slice.
func PromptPassword(w io.Writer, label string) ([]byte, error) {
	if _, err := fmt.Fprint(w, label); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// PromptNewPassword is used on registration: it shows the length policy,
// asks twice and checks both answers locally.
func PromptNewPassword(w io.Writer) ([]byte, error) {
	hint := fmt.Sprintf("Password (%d-%d characters): ", common.MinPasswordLength, common.MaxPasswordLength)
	pw, err := PromptPassword(w, hint)
	if err != nil {
		return nil, err
	}

	confirm, err := PromptPassword(w, "Repeat password: ")
	if err != nil {
		clear(pw)
		return nil, err
	}
	defer clear(confirm)

	if !bytes.Equal(pw, confirm) {
		clear(pw)
		return nil, errPasswordMismatch
	}
	if n := utf8.RuneCount(pw); n < common.MinPasswordLength || n > common.MaxPasswordLength {
		clear(pw)
		return nil, errPasswordLength
	}
	return pw, nil
}
