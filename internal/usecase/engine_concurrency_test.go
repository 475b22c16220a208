package usecase_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iho/gobank/internal/adapter/idgen"
	"github.com/iho/gobank/internal/adapter/repository/memory"
	"github.com/iho/gobank/internal/domain"
	"github.com/iho/gobank/internal/usecase"
	"github.com/iho/gobank/internal/usecase/mocks"
)

func TestConcurrentOpposingTransfers(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a", 10000)
	env.register(t, "b", 10000)

	ctx := context.Background()

	// A->B of 50.00 and B->A of 30.00 issued concurrently must converge
	// to A=80.00, B=120.00 with no deadlock.
	var wg sync.WaitGroup
	wg.Add(2)

	errs := make(chan error, 2)

	go func() {
		defer wg.Done()
		_, err := env.engine.Transfer(ctx, usecase.TransferInput{Sender: "a", Recipient: "b", Amount: 5000})
		errs <- err
	}()

	go func() {
		defer wg.Done()
		_, err := env.engine.Transfer(ctx, usecase.TransferInput{Sender: "b", Recipient: "a", Amount: 3000})
		errs <- err
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("transfer failed: %v", err)
		}
	}

	if got := env.balance(t, "a"); got != 8000 {
		t.Errorf("expected a=8000, got %d", got)
	}
	if got := env.balance(t, "b"); got != 12000 {
		t.Errorf("expected b=12000, got %d", got)
	}
}

func TestConcurrentWithdrawalsNoOverdraft(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "source", 50000)

	ctx := context.Background()

	numWithdrawals := 100
	amount := domain.Amount(1000)

	var (
		wg           sync.WaitGroup
		successCount atomic.Int32
		failureCount atomic.Int32
	)

	wg.Add(numWithdrawals)

	for range numWithdrawals {
		go func() {
			defer wg.Done()

			_, err := env.engine.Withdraw(ctx, usecase.DepositInput{Username: "source", Amount: amount})
			if err != nil {
				failureCount.Add(1)
			} else {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// 500.00 funds 50 withdrawals of 10.00; the other 50 must fail.
	if successCount.Load() != 50 {
		t.Errorf("expected 50 successful withdrawals, got %d (failures: %d)", successCount.Load(), failureCount.Load())
	}

	if got := env.balance(t, "source"); got != 0 {
		t.Errorf("expected final balance 0, got %d", got)
	}

	if records := env.history(t, "source"); len(records) != 50 {
		t.Errorf("expected 50 ledger records, got %d", len(records))
	}
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	env := newTestEnv(t)
	users := []string{"u1", "u2", "u3", "u4"}
	for _, u := range users {
		env.register(t, u, 25000)
	}

	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Add(1)
		sender := users[i%len(users)]
		recipient := users[(i+1+i%3)%len(users)]
		go func() {
			defer wg.Done()
			if sender == recipient {
				return
			}
			// Failures (insufficient funds) are fine; they must be no-ops.
			_, _ = env.engine.Transfer(ctx, usecase.TransferInput{
				Sender:    sender,
				Recipient: recipient,
				Amount:    domain.Amount(100 + i%7*50),
			})
		}()
	}

	wg.Wait()

	total, err := env.accounts.TotalBalance(ctx)
	if err != nil {
		t.Fatalf("total balance failed: %v", err)
	}
	if total != 100000 {
		t.Errorf("conservation violated: expected total 100000, got %d", total)
	}

	for _, u := range users {
		if got := env.balance(t, u); got.IsNegative() {
			t.Errorf("account %s went negative: %d", u, got)
		}
	}
}

func TestTransferVisibleAtomically(t *testing.T) {
	// Hold a transfer mid-flight while the ledger append is in progress
	// and probe the store with unlocked readers: they must see either
	// the pre-state or the post-state of the pair, never the sender
	// debited without the recipient credited.
	run := func(t *testing.T, failAppend bool) (*memory.AccountStore, error) {
		t.Helper()

		accounts := memory.NewAccountStore()
		appendStarted := make(chan struct{})
		releaseAppend := make(chan struct{})

		inner := memory.NewLedger(idgen.NewMonotonicGenerator())
		ledger := &mocks.MockLedger{
			Inner: inner,
			AppendTransferFunc: func(ctx context.Context, fromID, toID string, amount domain.Amount) (*domain.Transaction, *domain.Transaction, error) {
				close(appendStarted)
				<-releaseAppend
				if failAppend {
					return nil, nil, errors.New("ledger unavailable")
				}
				return inner.AppendTransfer(ctx, fromID, toID, amount)
			},
		}

		engine := usecase.NewTransferEngine(usecase.Config{
			Accounts: accounts,
			Ledger:   ledger,
			Hasher:   mocks.PlainHasher{},
			IDGen:    idgen.NewULIDGenerator(),
		})

		ctx := context.Background()
		if _, err := engine.Register(ctx, usecase.RegisterInput{Username: "alice", Password: "pw", InitialBalance: 10000}); err != nil {
			t.Fatalf("register failed: %v", err)
		}
		if _, err := engine.Register(ctx, usecase.RegisterInput{Username: "bob", Password: "pw", InitialBalance: 5000}); err != nil {
			t.Fatalf("register failed: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			_, err := engine.Transfer(ctx, usecase.TransferInput{Sender: "alice", Recipient: "bob", Amount: 3000})
			done <- err
		}()

		<-appendStarted

		alice, err := accounts.GetByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		bob, err := accounts.GetByUsername(ctx, "bob")
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		pre := alice.Balance == 10000 && bob.Balance == 5000
		post := alice.Balance == 7000 && bob.Balance == 8000
		if !pre && !post {
			t.Errorf("reader observed partial transfer: alice=%d bob=%d", alice.Balance, bob.Balance)
		}

		total, err := accounts.TotalBalance(ctx)
		if err != nil {
			t.Fatalf("total balance failed: %v", err)
		}
		if total != 15000 {
			t.Errorf("reader observed non-conserved total %d", total)
		}

		close(releaseAppend)

		return accounts, <-done
	}

	ctx := context.Background()

	t.Run("committed transfer", func(t *testing.T) {
		accounts, err := run(t, false)
		if err != nil {
			t.Fatalf("transfer failed: %v", err)
		}

		alice, _ := accounts.GetByUsername(ctx, "alice")
		bob, _ := accounts.GetByUsername(ctx, "bob")
		if alice.Balance != 7000 || bob.Balance != 8000 {
			t.Errorf("expected 7000/8000 after commit, got %d/%d", alice.Balance, bob.Balance)
		}
	})

	t.Run("failed append reverts the pair", func(t *testing.T) {
		accounts, err := run(t, true)
		if err == nil {
			t.Fatal("expected transfer to fail")
		}

		// The compensating reverse transfer restores both balances.
		alice, _ := accounts.GetByUsername(ctx, "alice")
		bob, _ := accounts.GetByUsername(ctx, "bob")
		if alice.Balance != 10000 || bob.Balance != 5000 {
			t.Errorf("expected 10000/5000 after rollback, got %d/%d", alice.Balance, bob.Balance)
		}

		total, _ := accounts.TotalBalance(ctx)
		if total != 15000 {
			t.Errorf("conservation violated after rollback: total %d", total)
		}
	})
}

func TestTransferLockTimeout(t *testing.T) {
	accounts := memory.NewAccountStore()

	appendStarted := make(chan struct{})
	releaseAppend := make(chan struct{})

	inner := memory.NewLedger(idgen.NewMonotonicGenerator())
	ledger := &mocks.MockLedger{
		Inner: inner,
		AppendFunc: func(ctx context.Context, accountID string, typ domain.TransactionType, amount domain.Amount) (*domain.Transaction, error) {
			close(appendStarted)
			<-releaseAppend
			return inner.Append(ctx, accountID, typ, amount)
		},
	}

	engine := usecase.NewTransferEngine(usecase.Config{
		Accounts:    accounts,
		Ledger:      ledger,
		Hasher:      mocks.PlainHasher{},
		IDGen:       idgen.NewULIDGenerator(),
		LockTimeout: 50 * time.Millisecond,
	})

	ctx := context.Background()
	if _, err := engine.Register(ctx, usecase.RegisterInput{Username: "alice", Password: "pw", InitialBalance: 10000}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := engine.Deposit(ctx, usecase.DepositInput{Username: "alice", Amount: 100})
		done <- err
	}()

	<-appendStarted

	// The first deposit holds alice's lock inside the slow append; this
	// one must give up with ErrBusy instead of blocking.
	_, err := engine.Withdraw(ctx, usecase.DepositInput{Username: "alice", Amount: 100})
	if err != domain.ErrBusy {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(releaseAppend)

	if err := <-done; err != nil {
		t.Fatalf("blocked deposit failed: %v", err)
	}

	alice, _ := accounts.GetByUsername(ctx, "alice")
	if alice.Balance != 10100 {
		t.Errorf("expected balance 10100, got %d", alice.Balance)
	}
}
