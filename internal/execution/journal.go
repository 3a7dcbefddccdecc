package execution

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"derivbot/internal/model"
)

// journalCap bounds both the table and the in-memory view to the most
// recent trades. Older rows are pruned on insert.
const journalCap = 50

// Journal persists settled trades to SQLite and keeps a bounded in-memory
// view for fast snapshots. Rows beyond the cap are discarded oldest-first.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	recent []model.TradeRecord // newest first

	// OnWriteDuration, when set, observes how long each Record took.
	OnWriteDuration func(time.Duration)
}

// NewJournal opens (or creates) the journal database and loads the
// surviving rows into the in-memory view.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		seq         INTEGER NOT NULL,
		type        TEXT NOT NULL,
		signal      TEXT NOT NULL,
		stake       REAL NOT NULL,
		outcome     TEXT NOT NULL,
		profit      REAL NOT NULL,
		account     TEXT NOT NULL,
		traded_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account);
	CREATE INDEX IF NOT EXISTS idx_trades_traded_at ON trades(traded_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db}
	if err := j.reload(); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s (%d rows)", dbPath, len(j.recent))
	return j, nil
}

// DB exposes the underlying handle for health probes.
func (j *Journal) DB() *sql.DB { return j.db }

// Record persists one settled trade, prunes rows past the cap and updates
// the in-memory view.
func (j *Journal) Record(rec model.TradeRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	_, err := j.db.Exec(
		`INSERT INTO trades (seq, type, signal, stake, outcome, profit, account, traded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq,
		rec.Type,
		string(rec.Signal),
		rec.Stake,
		string(rec.Outcome),
		rec.Profit,
		string(rec.Account),
		rec.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return err
	}

	if _, err := j.db.Exec(
		`DELETE FROM trades WHERE id NOT IN (SELECT id FROM trades ORDER BY id DESC LIMIT ?)`,
		journalCap,
	); err != nil {
		return err
	}

	j.recent = append([]model.TradeRecord{rec}, j.recent...)
	if len(j.recent) > journalCap {
		j.recent = j.recent[:journalCap]
	}
	if j.OnWriteDuration != nil {
		j.OnWriteDuration(time.Since(start))
	}
	return nil
}

// Recent returns up to limit trades from the in-memory view, newest first.
// A non-positive limit returns the whole view.
func (j *Journal) Recent(limit int) []model.TradeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	n := len(j.recent)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.TradeRecord, n)
	copy(out, j.recent[:n])
	return out
}

// reload rebuilds the in-memory view from the table, newest first.
// Callers hold no lock; only NewJournal uses it.
func (j *Journal) reload() error {
	rows, err := j.db.Query(
		`SELECT seq, type, signal, stake, outcome, profit, account, traded_at
		 FROM trades ORDER BY id DESC LIMIT ?`, journalCap)
	if err != nil {
		return err
	}
	defer rows.Close()

	var recent []model.TradeRecord
	for rows.Next() {
		var rec model.TradeRecord
		var signal, outcome, account, tradedAt string
		if err := rows.Scan(&rec.Seq, &rec.Type, &signal, &rec.Stake, &outcome, &rec.Profit, &account, &tradedAt); err != nil {
			continue
		}
		rec.Signal = model.Signal(signal)
		rec.Outcome = model.Outcome(outcome)
		rec.Account = model.AccountKind(account)
		if ts, err := time.Parse(time.RFC3339, tradedAt); err == nil {
			rec.Timestamp = ts
		}
		recent = append(recent, rec)
	}
	j.recent = recent
	return rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
