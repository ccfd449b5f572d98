package utils

import (
	"fmt"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// ChainClientInterface talks to the Pi blockchain, which speaks the Stellar
// protocol. The wallet lookup side is a read-only oracle; SubmitPayout is
// the only write and comes from the app's custodial wallet.
type ChainClientInterface interface {
	SubmitPayout(destination string, amount float64) (string, error)
	ValidateAccount(accountID string) error
	WalletInfo(accountID string) (*WalletSummary, error)
}

// WalletSummary is the balance/history view served to callers.
type WalletSummary struct {
	Address       string `json:"address"`
	NativeBalance string `json:"native_balance"`
	SequenceNum   int64  `json:"sequence"`
	Exists        bool   `json:"exists"`
}

type ChainClient struct {
	client            *horizonclient.Client
	networkPassphrase string
	walletSecret      string
}

func NewChainClient(horizonURL, networkPassphrase, walletSecret string) ChainClientInterface {
	return &ChainClient{
		client:            &horizonclient.Client{HorizonURL: horizonURL},
		networkPassphrase: networkPassphrase,
		walletSecret:      walletSecret,
	}
}

// SubmitPayout builds, signs and submits a native-asset payment from the
// custodial wallet and returns the transaction hash.
func (s *ChainClient) SubmitPayout(destination string, amount float64) (string, error) {
	sourceKP, err := keypair.ParseFull(s.walletSecret)
	if err != nil {
		return "", fmt.Errorf("invalid custodial wallet secret: %w", err)
	}

	sourceAccount, err := s.client.AccountDetail(horizonclient.AccountRequest{
		AccountID: sourceKP.Address(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to load custodial account: %w", err)
	}

	tx, err := txnbuild.NewTransaction(
		txnbuild.TransactionParams{
			SourceAccount:        &sourceAccount,
			IncrementSequenceNum: true,
			BaseFee:              txnbuild.MinBaseFee,
			Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
			Operations: []txnbuild.Operation{
				&txnbuild.Payment{
					Destination: destination,
					Amount:      fmt.Sprintf("%.7f", amount),
					Asset:       txnbuild.NativeAsset{},
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to build payout transaction: %w", err)
	}

	tx, err = tx.Sign(s.networkPassphrase, sourceKP)
	if err != nil {
		return "", fmt.Errorf("failed to sign payout transaction: %w", err)
	}

	txResp, err := s.client.SubmitTransaction(tx)
	if err != nil {
		return "", fmt.Errorf("failed to submit payout transaction: %w", err)
	}

	return txResp.Hash, nil
}

func (s *ChainClient) ValidateAccount(accountID string) error {
	_, err := s.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		return fmt.Errorf("invalid or non-existent account: %w", err)
	}
	return nil
}

// WalletInfo looks up an address on the explorer. An unknown account is not
// an error; it just reports Exists false.
func (s *ChainClient) WalletInfo(accountID string) (*WalletSummary, error) {
	account, err := s.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		if horizonclient.IsNotFoundError(err) {
			return &WalletSummary{Address: accountID, Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	summary := &WalletSummary{Address: accountID, Exists: true}
	summary.SequenceNum = account.Sequence
	for _, b := range account.Balances {
		if b.Type == "native" {
			summary.NativeBalance = b.Balance
		}
	}
	return summary, nil
}
