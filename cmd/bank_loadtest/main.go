package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-custody-bank/internal/app/core/domain"
	grpcpkg "github.com/JoeShih716/go-custody-bank/pkg/grpc"
	"github.com/JoeShih716/go-custody-bank/pkg/logger"
	pb "github.com/JoeShih716/go-custody-bank/proto"
)

func main() {
	app := &cli.App{
		Name:  "bank_loadtest",
		Usage: "deposit load against a running bank service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "target", Value: "localhost:50051", Usage: "bank service address"},
			&cli.IntFlag{Name: "total", Value: 100000, Usage: "number of deposits"},
			&cli.IntFlag{Name: "concurrency", Value: 500, Usage: "in-flight requests"},
			&cli.Uint64Flag{Name: "amount", Value: 1, Usage: "amount per deposit"},
			&cli.StringFlag{Name: "owner-seed", Value: "0101010101010101010101010101010101010101010101010101010101010101", Usage: "ed25519 seed of the account owner (needs genesis value)"},
			&cli.StringFlag{Name: "depositor-seed", Value: "0202020202020202020202020202020202020202020202020202020202020202", Usage: "ed25519 seed of the depositor (needs genesis value)"},
			&cli.DurationFlag{Name: "timeout", Value: 120 * time.Second},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := logger.New(logger.Config{Level: "info", Encoding: "console"})
	if err != nil {
		return err
	}
	defer log.Sync()

	ownerKey, err := parseSeed(c.String("owner-seed"))
	if err != nil {
		return fmt.Errorf("owner-seed: %w", err)
	}
	depositorKey, err := parseSeed(c.String("depositor-seed"))
	if err != nil {
		return fmt.Errorf("depositor-seed: %w", err)
	}
	owner := domain.IdentityFromKey(ownerKey)
	depositor := domain.IdentityFromKey(depositorKey)

	pool := grpcpkg.NewPool(grpcpkg.WithLogger(log))
	defer pool.Close()
	client, err := pool.BankClient(c.String("target"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	// 開戶 (已存在就沿用)
	createRef := uuid.New()
	create := domain.NewCreateTransaction(createRef, owner, "loadtest")
	_, err = client.CreateAccount(ctx, &pb.CreateAccountRequest{
		RefId:     createRef.String(),
		Owner:     owner.String(),
		Name:      "loadtest",
		Signature: hex.EncodeToString(create.Sign(ownerKey)),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create account: %w", err)
	}
	address := domain.DeriveAddress(owner)
	account := address.String()

	totalCount := c.Int("total")
	amount := c.Uint64("amount")
	var failed atomic.Int64

	var wg sync.WaitGroup
	wg.Add(totalCount)
	sem := make(chan struct{}, c.Int("concurrency"))

	startTime := time.Now()
	for i := 0; i < totalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			ref := uuid.New()
			deposit := domain.NewDepositTransaction(ref, address, depositor, amount)
			_, err := client.Deposit(ctx, &pb.DepositRequest{
				RefId:     ref.String(),
				Account:   account,
				Depositor: depositor.String(),
				Amount:    amount,
				Signature: hex.EncodeToString(deposit.Sign(depositorKey)),
			})
			if err != nil {
				failed.Add(1)
				if idx%10000 == 0 {
					log.Warn("deposit failed", zap.Int("index", idx), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	final, err := client.GetAccount(ctx, &pb.GetAccountRequest{Account: account})
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}

	log.Info("load test completed",
		zap.Int("requests", totalCount),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", elapsed),
		zap.Float64("tps", float64(totalCount)/elapsed.Seconds()),
		zap.Uint64("balance", final.GetAccount().GetBalance()),
	)
	return nil
}

// parseSeed 64 字元 hex 的 ed25519 seed
func parseSeed(raw string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
