package rpcclient

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/Klingon-tech/octwallet/internal/errs"
	"github.com/Klingon-tech/octwallet/pkg/crypto"
	"github.com/Klingon-tech/octwallet/pkg/tx"
)

// GetBalance returns the confirmed balance and nonce of addr. An address
// the node has never seen reads as zero balance, nonce 0.
func (c *Client) GetBalance(ctx context.Context, addr string) (*Balance, error) {
	const op = "rpc.GetBalance"
	resp, err := c.do(ctx, op, request{method: http.MethodGet, path: "/balance/" + url.PathEscape(addr)})
	if errs.Is(err, errs.NotFound) {
		return &Balance{}, nil
	}
	if err != nil {
		return nil, err
	}

	var r balanceResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	b := &Balance{}
	if r.BalanceRaw != "" {
		b.Micro, err = parseUint("balance_raw", r.BalanceRaw)
	} else {
		b.Micro, err = parseOCT("balance", r.Balance)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, op, err)
	}
	if b.Nonce, err = parseUint("nonce", r.Nonce); err != nil {
		return nil, errs.Wrap(errs.Unknown, op, err)
	}
	return b, nil
}

// GetStaging returns the staged transactions sent by addr. A node that does
// not know the address reports no staged transactions.
func (c *Client) GetStaging(ctx context.Context, addr string) ([]StagedTx, error) {
	const op = "rpc.GetStaging"
	resp, err := c.do(ctx, op, request{method: http.MethodGet, path: "/staging"})
	if errs.Is(err, errs.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var r stagingResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	var out []StagedTx
	for _, s := range r.Staged {
		if s.From != addr {
			continue
		}
		n, err := parseUint("nonce", s.Nonce)
		if err != nil {
			return nil, errs.Wrap(errs.Unknown, op, err)
		}
		out = append(out, StagedTx{From: s.From, To: s.To, Nonce: n, Hash: s.Hash})
	}
	return out, nil
}

// GetEncryptedBalance returns the public/encrypted split of addr. auth is
// the owner's node credential.
func (c *Client) GetEncryptedBalance(ctx context.Context, addr, auth string) (*EncryptedBalance, error) {
	const op = "rpc.GetEncryptedBalance"
	resp, err := c.do(ctx, op, request{
		method: http.MethodGet,
		path:   "/view_encrypted_balance/" + url.PathEscape(addr),
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}

	var r encryptedBalanceResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	eb := &EncryptedBalance{
		Public:     r.Public,
		Encrypted:  r.Encrypted,
		Total:      r.Total,
		Ciphertext: r.Ciphertext,
	}
	if eb.PublicRaw, err = parseUint("public_balance_raw", r.PublicRaw); err != nil {
		return nil, errs.Wrap(errs.Unknown, op, err)
	}
	if eb.EncryptedRaw, err = parseUint("encrypted_balance_raw", r.EncryptedRaw); err != nil {
		return nil, errs.Wrap(errs.Unknown, op, err)
	}
	return eb, nil
}

// GetPublicKey returns the 32-byte public key addr has published. An
// address that never sent a transaction fails with NoRecipientKey.
func (c *Client) GetPublicKey(ctx context.Context, addr string) ([]byte, error) {
	const op = "rpc.GetPublicKey"
	resp, err := c.do(ctx, op, request{
		method:   http.MethodGet,
		path:     "/public_key/" + url.PathEscape(addr),
		notFound: errs.NoRecipientKey,
	})
	if err != nil {
		return nil, err
	}

	var r publicKeyResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	if r.PublicKey == "" {
		return nil, errs.E(errs.NoRecipientKey, op, "recipient has no public key")
	}
	pub, err := base64.StdEncoding.DecodeString(r.PublicKey)
	if err != nil || len(pub) != crypto.PublicKeySize {
		return nil, errs.E(errs.NodeRejected, op, "node returned a malformed public key")
	}
	return pub, nil
}

// SubmitTransaction submits a signed public transfer.
func (c *Client) SubmitTransaction(ctx context.Context, t tx.WireTx) (*SubmitResult, error) {
	return c.submit(ctx, "rpc.SubmitTransaction", "/send-tx", t)
}

// SubmitEncrypt moves part of the public balance into the encrypted one.
func (c *Client) SubmitEncrypt(ctx context.Context, op tx.WireBalanceOp) (*SubmitResult, error) {
	return c.submit(ctx, "rpc.SubmitEncrypt", "/encrypt_balance", op)
}

// SubmitDecrypt moves part of the encrypted balance back to public.
func (c *Client) SubmitDecrypt(ctx context.Context, op tx.WireBalanceOp) (*SubmitResult, error) {
	return c.submit(ctx, "rpc.SubmitDecrypt", "/decrypt_balance", op)
}

// SubmitPrivateTransfer submits a private transfer with its envelope.
func (c *Client) SubmitPrivateTransfer(ctx context.Context, t tx.WirePrivateTransfer) (*SubmitResult, error) {
	return c.submit(ctx, "rpc.SubmitPrivateTransfer", "/private_transfer", t)
}

func (c *Client) submit(ctx context.Context, op, path string, body any) (*SubmitResult, error) {
	resp, err := c.do(ctx, op, request{method: http.MethodPost, path: path, body: body})
	if err != nil {
		return nil, err
	}
	return &SubmitResult{TxHash: resp.env.hash(), RetryAttempts: resp.attempts}, nil
}

// ListPendingTransfers returns unclaimed private transfers addressed to
// addr.
func (c *Client) ListPendingTransfers(ctx context.Context, addr, auth string) ([]PendingTransfer, error) {
	const op = "rpc.ListPendingTransfers"
	resp, err := c.do(ctx, op, request{
		method: http.MethodGet,
		path:   "/pending_private_transfers?address=" + url.QueryEscape(addr),
		auth:   auth,
	})
	if err != nil {
		return nil, err
	}

	var r pendingResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	out := make([]PendingTransfer, 0, len(r.Transfers))
	for _, p := range r.Transfers {
		epoch, err := parseUint("epoch_id", p.Epoch)
		if err != nil {
			return nil, errs.Wrap(errs.Unknown, op, err)
		}
		out = append(out, PendingTransfer{
			ID:            rawID(p.ID),
			Sender:        p.Sender,
			EncryptedData: p.EncryptedData,
			EphemeralKey:  p.EphemeralKey,
			Epoch:         epoch,
		})
	}
	return out, nil
}

// ClaimTransfer claims pending transfer id into addr's encrypted balance.
func (c *Client) ClaimTransfer(ctx context.Context, addr, auth, id string) (*SubmitResult, error) {
	const op = "rpc.ClaimTransfer"
	resp, err := c.do(ctx, op, request{
		method: http.MethodPost,
		path:   "/claim_private_transfer",
		auth:   auth,
		body:   claimRequest{RecipientAddress: addr, TransferID: id},
	})
	if err != nil {
		return nil, err
	}
	return &SubmitResult{TxHash: resp.env.hash(), RetryAttempts: resp.attempts}, nil
}

// GetTransaction returns the status of a submitted transaction. Unknown
// hashes fail with NotFound.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*TxStatus, error) {
	const op = "rpc.GetTransaction"
	resp, err := c.do(ctx, op, request{method: http.MethodGet, path: "/tx/" + url.PathEscape(hash)})
	if err != nil {
		return nil, err
	}

	var r txResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	epoch, err := parseUint("epoch", r.Epoch)
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, op, err)
	}
	st := &TxStatus{Hash: r.Hash, Status: r.Status, Epoch: epoch, Error: r.Error}
	if st.Hash == "" {
		st.Hash = hash
	}
	return st, nil
}

// GetNetworkStatus returns the ledger's current epoch.
func (c *Client) GetNetworkStatus(ctx context.Context) (*NetworkStatus, error) {
	const op = "rpc.GetNetworkStatus"
	resp, err := c.do(ctx, op, request{method: http.MethodGet, path: "/status"})
	if err != nil {
		return nil, err
	}

	var r statusResponse
	if err := decode(op, resp, &r); err != nil {
		return nil, err
	}
	n := r.Epoch
	if n == "" {
		n = r.CurrentEpoch
	}
	epoch, err := parseUint("epoch", n)
	if err != nil {
		return nil, errs.Wrap(errs.Unknown, op, err)
	}
	return &NetworkStatus{Epoch: epoch}, nil
}
