package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rx3lixir/astro_rtc/pkg/password"
)

// hashSecret reads one secret line and writes its bcrypt hash, ready for
// general_params.operator_secret_hash
func hashSecret(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read secret: %w", err)
		}
		return errors.New("no secret on stdin")
	}

	secret := strings.TrimRight(scanner.Text(), "\r")
	if secret == "" {
		return errors.New("secret is empty")
	}

	hash, err := password.Hash(secret)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, hash)
	return err
}
