// Command seed bulk-loads a catalog file into a running store ledger,
// issuing one list call per record with the owner's identity.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"storeledger/internal/seed"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	_ = godotenv.Load()

	var (
		file       = flag.String("file", "catalog.json", "path to the catalog seed file")
		server     = flag.String("server", "http://localhost:8080", "base URL of the store ledger server")
		owner      = flag.String("owner", os.Getenv("STORE_OWNER"), "owner identity used for list calls")
		minorUnits = flag.Int("minor-units", 2, "decimal places between display units and the smallest currency unit")
	)
	flag.Parse()

	if *owner == "" {
		log.Error("owner identity required (-owner or STORE_OWNER)")
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Error("open seed file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	records, err := seed.Load(f)
	if err != nil {
		log.Error("parse seed file", "error", err)
		os.Exit(1)
	}

	for _, record := range records {
		entry, err := record.CatalogEntry(int32(*minorUnits))
		if err != nil {
			log.Error("convert record", "error", err)
			os.Exit(1)
		}
		if err := list(*server, *owner, entry); err != nil {
			log.Error("list entry", "id", entry.ID, "error", err)
			os.Exit(1)
		}
		log.Info("listed", "id", entry.ID, "name", entry.Name, "price", entry.Price, "stock", entry.Stock)
	}
	log.Info("seeding complete", "records", len(records))
}

func list(server, owner string, entry any) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, server+"/catalog", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller", owner)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
