package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	kafkaevents "storeledger/internal/events/kafka"
	"storeledger/internal/interfaces"
	"storeledger/internal/ledger"
	"storeledger/internal/models"
	"storeledger/internal/storage/memory"
	"storeledger/internal/storage/postgres"
)

// payoutLog stands in for the owner's external account: withdrawals are
// credited by recording them. Swap in a real payment rail here when one
// exists.
type payoutLog struct {
	log *slog.Logger
}

func (p *payoutLog) Credit(ctx context.Context, account string, amount uint64) error {
	p.log.Info("custody swept to owner", "account", account, "amount", amount)
	return nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	owner := os.Getenv("STORE_OWNER")
	if owner == "" {
		log.Error("STORE_OWNER must be set")
		os.Exit(1)
	}

	var store interfaces.LedgerStore
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			log.Error("db connect", "error", err)
			os.Exit(1)
		}
		pgStore := postgres.NewPostgresLedgerStore(db)
		if err := pgStore.EnsureSchema(context.Background()); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		store = pgStore
	} else {
		store = memory.NewMemoryLedgerStore()
	}

	var publisher interfaces.EventPublisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher = kafkaevents.NewPublisher(strings.Split(brokers, ","))
	}

	ledgerService := ledger.New(owner, store, publisher, &payoutLog{log: log}, ledger.WithLogger(log))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	http.HandleFunc("/catalog", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			var entry models.CatalogEntry
			if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if err := ledgerService.List(r.Context(), caller(r), entry); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusCreated)

		case http.MethodGet:
			id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 64)
			if err != nil {
				http.Error(w, "id is a mandatory numeric field", http.StatusBadRequest)
				return
			}
			entry, err := ledgerService.GetCatalogEntry(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, entry)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	http.HandleFunc("/purchases", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			ItemID uint64 `json:"item_id"`
			// Payment the platform already escrowed for this call.
			Payment uint64 `json:"payment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		number, err := ledgerService.Purchase(r.Context(), caller(r), req.ItemID, req.Payment)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			OrderNumber uint64 `json:"order_number"`
		}{OrderNumber: number})
	})

	http.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		buyer := r.URL.Query().Get("buyer")
		if buyer == "" {
			http.Error(w, "buyer is a mandatory field", http.StatusBadRequest)
			return
		}

		orders, err := ledgerService.OrdersByBuyer(r.Context(), buyer)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)
	})

	http.HandleFunc("/custody/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		balance, err := ledgerService.CustodyBalance(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Balance uint64 `json:"balance"`
		}{Balance: balance})
	})

	http.HandleFunc("/withdrawals", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if err := ledgerService.Withdraw(r.Context(), caller(r)); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	log.Info("starting server", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error("server closed", "error", err)
		os.Exit(1)
	}
}

// caller returns the authenticated identity the platform attached to
// the request. The ledger trusts it as already verified.
func caller(r *http.Request) string {
	return r.Header.Get("X-Caller")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrUnknownItem):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientPayment):
		status = http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrOutOfStock):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrTransferFailed):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}
