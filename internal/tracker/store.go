package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/Klingon-tech/octwallet/internal/log"
	"github.com/Klingon-tech/octwallet/internal/storage"
)

// docVersion is the only persisted layout this package reads.
const docVersion = 2

const keyPrefix = "pending:"

func storeKey(addr string) []byte { return []byte(keyPrefix + addr) }

// document is the persisted form of one address's records.
type document struct {
	Version       int       `json:"version"`
	Address       string    `json:"address"`
	Transactions  []*Record `json:"transactions"`
	LastFetchTime int64     `json:"lastFetchTime"` // unix ms
	StoredAt      int64     `json:"storedAt"`      // unix ms
}

// rawDocument defers decoding of transactions so that a wrong shape can be
// detected before it is trusted.
type rawDocument struct {
	Version       int             `json:"version"`
	Address       string          `json:"address"`
	Transactions  json.RawMessage `json:"transactions"`
	LastFetchTime int64           `json:"lastFetchTime"`
	StoredAt      int64           `json:"storedAt"`
}

// readDocument loads the document for addr. A missing, unreadable or
// foreign-version document reads as empty.
func readDocument(db storage.DB, addr string) document {
	empty := document{Version: docVersion, Address: addr}
	data, err := db.Get(storeKey(addr))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Tracker.Warn().Err(err).Str("address", addr).Msg("Could not read pending transactions")
		}
		return empty
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil || raw.Version != docVersion {
		log.Tracker.Warn().Str("address", addr).Msg("Ignoring invalid pending-transaction document")
		return empty
	}
	if list := bytes.TrimSpace(raw.Transactions); len(list) == 0 || list[0] != '[' {
		log.Tracker.Warn().Str("address", addr).Msg("Ignoring pending-transaction document without a list")
		return empty
	}
	var recs []*Record
	if err := json.Unmarshal(raw.Transactions, &recs); err != nil {
		log.Tracker.Warn().Err(err).Str("address", addr).Msg("Ignoring unreadable pending transactions")
		return empty
	}

	doc := document{
		Version:       docVersion,
		Address:       addr,
		LastFetchTime: raw.LastFetchTime,
		StoredAt:      raw.StoredAt,
	}
	for _, r := range recs {
		if r == nil || r.ID == "" || r.Status == "" {
			continue
		}
		doc.Transactions = append(doc.Transactions, r)
	}
	return doc
}

func writeDocument(db storage.DB, doc document, now time.Time) error {
	doc.Version = docVersion
	doc.StoredAt = now.UnixMilli()
	if doc.Transactions == nil {
		doc.Transactions = []*Record{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return db.Put(storeKey(doc.Address), data)
}

// Forget deletes the stored records of addr from db. A Tracker holding addr
// must Load it again afterwards.
func Forget(db storage.DB, addr string) error {
	if err := db.Delete(storeKey(addr)); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}
