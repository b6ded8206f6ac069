package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Klingon-tech/octwallet/internal/bulk"
	"github.com/Klingon-tech/octwallet/internal/core"
	"github.com/Klingon-tech/octwallet/pkg/types"
)

// ── encrypt / decrypt ───────────────────────────────────────────────────

func cmdEncrypt(e *env, args []string) { balanceOp(e, "encrypt", args) }

func cmdDecrypt(e *env, args []string) { balanceOp(e, "decrypt", args) }

func balanceOp(e *env, op string, args []string) {
	fs := flag.NewFlagSet(op, flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	amountStr := fs.String("amount", "", "Amount in OCT")
	fs.Parse(args)

	if *name == "" || *amountStr == "" {
		fatal("Usage: octwallet-cli %s --wallet <name> --amount <oct>", op)
	}
	amount := parseAmount(*amountStr)

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	run := c.Private.Encrypt
	if op == "decrypt" {
		run = c.Private.Decrypt
	}
	res, err := run(ctx, amount)
	if err != nil {
		done()
		fatal("%s: %s", op, describe(err))
	}
	fmt.Printf("%sed %s\n", op, types.FormatOCT(amount))
	fmt.Printf("Encrypted balance: %s\n", types.FormatOCT(res.NewEncryptedRaw))
	if res.TxHash != "" {
		fmt.Printf("Tx: %s\n", res.TxHash)
	}
}

// ── private-send ────────────────────────────────────────────────────────

func cmdPrivateSend(e *env, args []string) {
	fs := flag.NewFlagSet("private-send", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	to := fs.String("to", "", "Recipient address")
	amountStr := fs.String("amount", "", "Amount in OCT")
	fs.Parse(args)

	if *name == "" || *to == "" || *amountStr == "" {
		fatal("Usage: octwallet-cli private-send --wallet <name> --to <address> --amount <oct>")
	}
	amount := parseAmount(*amountStr)

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	res, err := c.Private.Transfer(ctx, *to, amount)
	if err != nil {
		done()
		fatal("private-send: %s", describe(err))
	}
	fmt.Printf("Sent %s privately to %s\n", types.FormatOCT(amount), *to)
	fmt.Printf("Fee:   %s\n", types.FormatOCT(res.Fee))
	fmt.Printf("Nonce: %d\n", res.Nonce)
	if res.TxHash != "" {
		fmt.Printf("Tx:    %s\n", res.TxHash)
	}
}

// ── bulk-private ────────────────────────────────────────────────────────

func cmdBulkPrivate(e *env, args []string) {
	fs := flag.NewFlagSet("bulk-private", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	recipientsFile := fs.String("recipients", "", "JSON file: [{\"to\":\"oct...\",\"amount\":\"1.5\"}, ...]")
	fs.Parse(args)

	if *name == "" || *recipientsFile == "" {
		fatal("Usage: octwallet-cli bulk-private --wallet <name> --recipients <file.json>")
	}
	lines, amounts := readRecipients(*recipientsFile)
	recipients := make([]bulk.Recipient, len(lines))
	for i, l := range lines {
		recipients[i] = bulk.Recipient{Address: l.To, Amount: amounts[i]}
	}

	// Ctrl-C stops after the current recipient.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, done := openCore(ctx, e, *name, core.WithBulkEvents(printBulkEvent))
	defer done()

	rep, err := c.Bulk.Run(ctx, recipients)
	if err != nil {
		done()
		fatal("bulk-private: %s", describe(err))
	}

	fmt.Printf("\nBulk %s: %d sent, %d failed, %d cancelled", rep.BulkID,
		len(rep.Success), len(rep.Failed), len(rep.Cancelled))
	if rep.TimedOut > 0 {
		fmt.Printf(" (%d without confirmation)", rep.TimedOut)
	}
	fmt.Println()
	for _, l := range rep.Failed {
		fmt.Printf("  failed    [%d] %s: %s\n", l.Index, l.Address, l.Reason)
	}
	for _, l := range rep.Cancelled {
		fmt.Printf("  cancelled [%d] %s\n", l.Index, l.Address)
	}
}

func printBulkEvent(ev bulk.Event) {
	switch ev.Kind {
	case bulk.EventSubmitted:
		fmt.Printf("[%d] %s submitted %s\n", ev.Index, ev.Address, ev.TxHash)
	case bulk.EventConfirmed:
		fmt.Printf("[%d] confirmed in epoch %d\n", ev.Index, ev.Epoch)
	case bulk.EventEpochAdvanced:
		fmt.Printf("[%d] epoch advanced to %d\n", ev.Index, ev.Epoch)
	case bulk.EventTimeoutAdvance:
		fmt.Printf("[%d] no confirmation yet, moving on\n", ev.Index)
	case bulk.EventCountdown:
		fmt.Printf("\r[%d] next transfer in %ds ", ev.Index, int(ev.Remaining.Seconds()))
		if ev.Remaining <= 0 {
			fmt.Println()
		}
	case bulk.EventFailed:
		fmt.Printf("[%d] %s failed: %s\n", ev.Index, ev.Address, ev.Reason)
	case bulk.EventCancelled:
		fmt.Printf("[%d] %s cancelled\n", ev.Index, ev.Address)
	}
}

// ── pending / claim ─────────────────────────────────────────────────────

func cmdPending(e *env, args []string) {
	fs := flag.NewFlagSet("pending", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	fs.Parse(args)

	if *name == "" {
		fatal("Usage: octwallet-cli pending --wallet <name>")
	}

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	items, err := c.Private.Pending(ctx)
	if err != nil {
		done()
		fatal("pending: %s", describe(err))
	}
	if len(items) == 0 {
		fmt.Println("No pending transfers.")
		return
	}
	fmt.Printf("%-12s %-48s %-8s %s\n", "ID", "FROM", "EPOCH", "AMOUNT")
	for _, it := range items {
		amount := it.Display
		if it.Err != "" {
			amount = "unreadable: " + it.Err
		}
		fmt.Printf("%-12s %-48s %-8d %s\n", it.ID, it.Sender, it.Epoch, amount)
	}
}

func cmdClaim(e *env, args []string) {
	fs := flag.NewFlagSet("claim", flag.ExitOnError)
	name := fs.String("wallet", "", "Wallet name")
	id := fs.String("id", "", "Pending transfer id")
	fs.Parse(args)

	if *name == "" || *id == "" {
		fatal("Usage: octwallet-cli claim --wallet <name> --id <id>")
	}

	ctx := context.Background()
	c, done := openCore(ctx, e, *name)
	defer done()

	res, err := c.Private.Claim(ctx, *id)
	if err != nil {
		done()
		fatal("claim: %s", describe(err))
	}
	fmt.Printf("Claimed %s\n", *id)
	if res.TxHash != "" {
		fmt.Printf("Tx: %s\n", res.TxHash)
	}
}
