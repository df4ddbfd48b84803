package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PasswordCredentials contains the passwords for a PDF file.
type PasswordCredentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// Empty reports whether no password is set.
func (c *PasswordCredentials) Empty() bool {
	return c == nil || (c.UserPassword == "" && c.OwnerPassword == "")
}

// IsEncrypted checks if a PDF file is password protected.
func IsEncrypted(filename string) (bool, error) {
	if _, err := api.PageCountFile(filename); err != nil {
		if IsPasswordError(err) {
			return true, nil
		}
		return false, fmt.Errorf("failed to check PDF encryption status: %w", err)
	}
	return false, nil
}

// Decrypt returns a path to a readable copy of filename and a cleanup func.
// Unencrypted files are returned as-is with a no-op cleanup.
func Decrypt(filename string, creds *PasswordCredentials) (string, func(), error) {
	noop := func() {}
	encrypted, err := IsEncrypted(filename)
	if err != nil {
		return "", noop, err
	}
	if !encrypted {
		return filename, noop, nil
	}
	if creds.Empty() {
		return "", noop, errors.New("PDF is password protected and no password was given")
	}

	tmp, err := os.CreateTemp("", "cutout-decrypted-*.pdf")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temporary file: %w", err)
	}
	_ = tmp.Close()
	cleanup := func() { _ = os.Remove(tmp.Name()) }

	conf := model.NewDefaultConfiguration()
	conf.UserPW = creds.UserPassword
	conf.OwnerPW = creds.OwnerPassword
	if err := api.DecryptFile(filename, tmp.Name(), conf); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to decrypt PDF: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

// IsPasswordError checks if an error is related to password/encryption issues.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "authentication", "invalid credentials"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
