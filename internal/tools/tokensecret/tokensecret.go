// Package tokensecret generates bearer token signing secrets.
package tokensecret

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// EnvVar is the variable the server reads its signing secret from.
const EnvVar = "AGI_COSMIC_TOKEN_SECRET"

// DefaultBytes is the secret size used when none is requested.
const DefaultBytes = 32

// Config holds configuration for secret generation.
type Config struct {
	Bytes int
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: DefaultBytes}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (default: 32)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Generate returns n random bytes hex-encoded. A nil reader uses crypto/rand.
func Generate(reader io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", errors.New("bytes must be greater than zero")
	}
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Run generates the secret and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	secret, err := Generate(reader, cfg.Bytes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s=%s\n", EnvVar, secret)
	return err
}
