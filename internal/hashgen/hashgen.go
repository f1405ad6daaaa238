// Package hashgen implements the operator tool that produces and checks the
// bcrypt hashes the gateway is configured with.
package hashgen

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/resumegate/internal/common"
	"github.com/dmitrijs2005/resumegate/internal/cryptox"
)

// Cost is the bcrypt cost of generated hashes.
const Cost = 10

var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordMismatch = errors.New("passwords do not match")
	errUsage            = errors.New("usage")
)

const usage = `Usage:
  hashgen generate         prompt for a password and print its bcrypt hash
  hashgen verify <hash>    prompt for a password and check it against hash
`

// Run executes one command and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	err := run(args, stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprint(stderr, usage)
		return 2
	case errors.Is(err, common.ErrInvalidCredential):
		return 1
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "generate":
		if len(args) != 1 {
			return errUsage
		}
		return generate(stdout, stderr)
	case "verify":
		if len(args) != 2 {
			return errUsage
		}
		return verify(args[1], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	}
	return errUsage
}

func generate(stdout, prompts io.Writer) error {
	pw, err := getPassword(prompts, "Enter password to hash: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	if len(pw) == 0 {
		return ErrEmptyPassword
	}

	confirm, err := getPassword(prompts, "Confirm password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pw, confirm) {
		return ErrPasswordMismatch
	}

	hash, err := cryptox.HashPassword(pw, Cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, hash)
	fmt.Fprintf(prompts, "Set it in your environment, e.g. PASSWORD_HASH=%s\n", hash)
	return nil
}

func verify(hash string, stdout, prompts io.Writer) error {
	pw, err := getPassword(prompts, "Enter password to verify: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if !cryptox.ComparePassword(hash, pw) {
		fmt.Fprintln(stdout, "mismatch")
		return common.ErrInvalidCredential
	}
	fmt.Fprintln(stdout, "match")
	return nil
}
