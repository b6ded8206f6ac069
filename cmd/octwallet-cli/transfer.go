package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Klingon-tech/octwallet/internal/errs"
	klog "github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/sender"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// recipientLine is one entry of a --recipients file.
type recipientLine struct {
	To     string `json:"to"`
	Amount string `json:"amount"` // OCT, e.g. "1.5"
}

// readRecipients loads a JSON array of {"to", "amount"} entries.
func readRecipients(path string) ([]recipientLine, []uint64) {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("read recipients file: %v", err)
	}
	var lines []recipientLine
	if err := json.Unmarshal(data, &lines); err != nil {
		fatal("parse recipients file: %v", err)
	}
	if len(lines) == 0 {
		fatal("recipients file is empty")
	}
	amounts := make([]uint64, len(lines))
	for i, l := range lines {
		if l.To == "" {
			fatal("recipient %d: missing address", i)
		}
		amounts[i] = parseAmount(l.Amount)
	}
	return lines, amounts
}

func parseAmount(s string) uint64 {
	amount, err := types.ParseOCT(strings.TrimSpace(s))
	if err != nil {
		fatal("invalid amount %q: %v", s, err)
	}
	return amount
}

// describe turns a wallet error into one line with a hint where there is one.
func describe(err error) string {
	if errs.KindOf(err).LogsStack() {
		klog.Failure(klog.Logger, err).Msg("Command failed")
	}
	switch errs.KindOf(err) {
	case errs.InsufficientFunds:
		return fmt.Sprintf("%v (balance must cover amount plus fee)", err)
	case errs.InsufficientEncrypted:
		return fmt.Sprintf("%v (encrypt more funds first)", err)
	case errs.NoRecipientKey:
		return fmt.Sprintf("%v (the recipient has not published a public key yet)", err)
	case errs.Busy:
		return fmt.Sprintf("%v (another send is in progress)", err)
	case errs.Timeout, errs.Transient:
		return fmt.Sprintf("%v (node unreachable, try again)", err)
	}
	return err.Error()
}

// ── send ────────────────────────────────────────────────────────────────

func cmdSend(e *env, args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	to := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount in OCT (e.g. 1.5)")
	message := fs.String("message", "", "Optional message")
	fs.Parse(args)

	if *name == "" || *to == "" || *amountStr == "" {
		fatal("Usage: octwallet-cli send --wallet <name> --to <address> --amount <oct> [--message <text>]")
	}
	amount := parseAmount(*amountStr)

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	res, err := c.Sender.Send(ctx, sender.Request{To: *to, Amount: amount, Message: *message})
	if err != nil {
		done()
		fatal("send: %s", describe(err))
	}

	fmt.Printf("Sent %s to %s\n", types.FormatOCT(amount), *to)
	fmt.Printf("Fee:   %s\n", types.FormatOCT(res.Fee))
	fmt.Printf("Nonce: %d\n", res.Nonce)
	if res.TxHash != "" {
		fmt.Printf("Tx:    %s\n", res.TxHash)
	} else {
		fmt.Println("Tx:    accepted, node returned no hash")
	}
	if res.RetryAttempts > 0 {
		fmt.Printf("Retries: %d\n", res.RetryAttempts)
	}
}

// ── sendmany ────────────────────────────────────────────────────────────

func cmdSendMany(e *env, args []string) {
	fs := flag.NewFlagSet("sendmany", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	recipientsFile := fs.String("recipients", "", "JSON file: [{\"to\":\"oct...\",\"amount\":\"1.5\"}, ...]")
	fs.Parse(args)

	if *name == "" || *recipientsFile == "" {
		fatal("Usage: octwallet-cli sendmany --wallet <name> --recipients <file.json>")
	}
	lines, amounts := readRecipients(*recipientsFile)
	reqs := make([]sender.Request, len(lines))
	for i, l := range lines {
		reqs[i] = sender.Request{To: l.To, Amount: amounts[i]}
	}

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	results, err := c.Sender.SendMany(ctx, reqs)
	if err != nil {
		done()
		fatal("sendmany: %s", describe(err))
	}

	failed := 0
	for i, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("  [%d] %s  FAILED: %s\n", i, r.Request.To, describe(r.Err))
			continue
		}
		fmt.Printf("  [%d] %s  %s  nonce %d  %s\n", i, r.Request.To,
			types.FormatOCT(r.Request.Amount), r.Result.Nonce, r.Result.TxHash)
	}
	fmt.Printf("\n%d sent, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		done()
		os.Exit(1)
	}
}
