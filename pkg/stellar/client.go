// Package stellar wraps the Horizon API behind the four network calls the
// airdrop pipeline needs: address format, account existence, trustline
// presence and payment submission.
package stellar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/txnbuild"
)

// Sentinel errors for client construction and payment submission
var (
	ErrInvalidDistributionSeed = errors.New("invalid distribution account seed")
	ErrInvalidAssetIssuer      = errors.New("invalid asset issuer address")
	ErrUnknownNetwork          = errors.New("unknown stellar network")
	ErrAccountLookupFailed     = errors.New("account lookup failed")
	ErrPaymentFailed           = errors.New("payment submission failed")
)

// Result codes Horizon reports when the distribution account runs dry.
const (
	codeOpUnderfunded         = "op_underfunded"
	codeTxInsufficientBalance = "tx_insufficient_balance"
)

// TransientError marks a failure worth retrying: timeouts, connection
// resets, rate limiting, Horizon 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: transient: %v", e.Op, e.Err) }

func (e *TransientError) Unwrap() error { return e.Err }

// TransientNetwork reports that the operation may succeed if retried.
func (e *TransientError) TransientNetwork() bool { return true }

// FundingError signals that the distribution account cannot cover further
// payments. The pipeline halts the run on this class.
type FundingError struct {
	Err error
}

func (e *FundingError) Error() string { return fmt.Sprintf("distribution funds exhausted: %v", e.Err) }

func (e *FundingError) Unwrap() error { return e.Err }

// FundingExhausted reports that continuing the run would only fail.
func (e *FundingError) FundingExhausted() bool { return true }

// Config holds the network parameters for a Client.
type Config struct {
	HorizonURL string
	// Network selects the passphrase: "public" or "testnet".
	Network          string
	AssetCode        string
	AssetIssuer      string
	DistributionSeed string
	BaseFee          int64
	// SubmitTimeout bounds transaction validity (Stellar timebounds).
	SubmitTimeout time.Duration
}

// Client talks to a Horizon server. Horizon requests carry no context of
// their own; deadlines are enforced by the injected http.Client timeout, so
// callers should size it to their slowest acceptable call.
type Client struct {
	horizon    *horizonclient.Client
	passphrase string
	asset      txnbuild.CreditAsset
	source     *keypair.Full
	baseFee    int64
	timeout    time.Duration
}

// NewClient creates a Horizon-backed client with the given HTTP client and config.
func NewClient(httpClient *http.Client, cfg Config) (*Client, error) {
	var passphrase string
	switch cfg.Network {
	case "public":
		passphrase = network.PublicNetworkPassphrase
	case "testnet":
		passphrase = network.TestNetworkPassphrase
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, cfg.Network)
	}

	source, err := keypair.ParseFull(cfg.DistributionSeed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDistributionSeed, err)
	}

	if !strkey.IsValidEd25519PublicKey(cfg.AssetIssuer) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAssetIssuer, cfg.AssetIssuer)
	}

	baseFee := cfg.BaseFee
	if baseFee == 0 {
		baseFee = txnbuild.MinBaseFee
	}
	timeout := cfg.SubmitTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		horizon: &horizonclient.Client{
			HorizonURL: cfg.HorizonURL,
			HTTP:       httpClient,
		},
		passphrase: passphrase,
		asset:      txnbuild.CreditAsset{Code: cfg.AssetCode, Issuer: cfg.AssetIssuer},
		source:     source,
		baseFee:    baseFee,
		timeout:    timeout,
	}, nil
}

// AddressIsWellFormed reports whether address is a valid ed25519 public key
// in strkey encoding (56 characters, 'G' prefix, valid checksum).
func (c *Client) AddressIsWellFormed(address string) bool {
	return strkey.IsValidEd25519PublicKey(address)
}

// AccountExists reports whether the account is present on the ledger.
// A Horizon 404 is a definitive negative, not an error.
func (c *Client) AccountExists(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return false, nil
		}
		return false, classify("account lookup", err)
	}
	return true, nil
}

// HasPrerequisite reports whether the account holds a trustline for the
// distribution asset. A missing account is reported as an error since
// existence must be checked first.
func (c *Client) HasPrerequisite(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	account, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: address})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return false, fmt.Errorf("%w: account %s not found", ErrAccountLookupFailed, address)
		}
		return false, classify("trustline lookup", err)
	}

	for _, balance := range account.Balances {
		if balance.Code == c.asset.Code && balance.Issuer == c.asset.Issuer {
			return true, nil
		}
	}
	return false, nil
}

// SubmitPayment sends amount of the distribution asset to address and
// returns the transaction hash. The source sequence number is fetched per
// payment; the pipeline issues payments strictly sequentially, so there is
// no sequence contention.
func (c *Client) SubmitPayment(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sourceAccount, err := c.horizon.AccountDetail(horizonclient.AccountRequest{AccountID: c.source.Address()})
	if err != nil {
		return "", classify("source account lookup", err)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &sourceAccount,
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.Payment{
				Destination: address,
				Amount:      amount.StringFixed(7),
				Asset:       c.asset,
			},
		},
		BaseFee:       c.baseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewTimeout(int64(c.timeout.Seconds()))},
	})
	if err != nil {
		return "", fmt.Errorf("%w: building transaction: %w", ErrPaymentFailed, err)
	}

	tx, err = tx.Sign(c.passphrase, c.source)
	if err != nil {
		return "", fmt.Errorf("%w: signing transaction: %w", ErrPaymentFailed, err)
	}

	resp, err := c.horizon.SubmitTransaction(tx)
	if err != nil {
		if fundingExhausted(err) {
			return "", &FundingError{Err: err}
		}
		return "", classify("payment submission", err)
	}

	return resp.Hash, nil
}

// classify separates retryable Horizon/transport failures from permanent ones.
func classify(op string, err error) error {
	if hErr := horizonclient.GetError(err); hErr != nil {
		status := hErr.Problem.Status
		if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
			return &TransientError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	// No problem document means the request never got a Horizon response:
	// timeout, DNS failure, connection reset.
	return &TransientError{Op: op, Err: err}
}

// fundingExhausted inspects transaction result codes for the markers of a
// drained distribution account.
func fundingExhausted(err error) bool {
	hErr := horizonclient.GetError(err)
	if hErr == nil {
		return false
	}
	codes, codesErr := hErr.ResultCodes()
	if codesErr != nil {
		return false
	}
	if codes.TransactionCode == codeTxInsufficientBalance {
		return true
	}
	for _, code := range codes.OperationCodes {
		if code == codeOpUnderfunded {
			return true
		}
	}
	return false
}
