package port

import "github.com/cockroachdb/errors"

// Error categories. Errors are tagged with errors.Mark and tested with errors.Is from
// github.com/cockroachdb/errors; the message is kept unchanged.
var (
	// ErrConfiguration marks a missing or unusable configuration value. Fatal.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks user input that violates amount constraints.
	ErrValidation = errors.New("validation error")
	// ErrWallet marks a wallet that is unavailable or refused to sign.
	ErrWallet = errors.New("wallet error")
	// ErrChain marks a failed or reverted RPC/contract call.
	ErrChain = errors.New("chain error")
)

// ConfigurationErrorf creates an error marked as ErrConfiguration.
func ConfigurationErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrConfiguration)
}

// MarkChain tags err as a chain error. Nil stays nil.
func MarkChain(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrChain)
}

// MarkWallet tags err as a wallet error unless it already carries a category.
func MarkWallet(err error) error {
	if err == nil || errors.Is(err, ErrChain) || errors.Is(err, ErrConfiguration) {
		return err
	}
	return errors.Mark(err, ErrWallet)
}
