package vectorindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"alertlens/internal/embed"
	"alertlens/pkg/models"
)

// Catalog is an index together with the rules its vectors were built from.
// Rules[i] corresponds to vector i.
type Catalog struct {
	Index *Index
	Rules []models.Rule
	Model string
}

// Rule returns the rule behind a search hit.
func (c *Catalog) Rule(h Hit) (models.Rule, error) {
	if h.Index < 0 || h.Index >= len(c.Rules) {
		return models.Rule{}, fmt.Errorf("index position %d has no rule metadata (catalog holds %d rules)", h.Index, len(c.Rules))
	}
	return c.Rules[h.Index], nil
}

const schema = `
CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE rules (
	position  INTEGER PRIMARY KEY,
	rule_json TEXT NOT NULL,
	embedding BLOB NOT NULL
);`

// Save writes the catalog to a fresh SQLite database at path.
func Save(path string, c *Catalog) error {
	if c.Index.Len() != len(c.Rules) {
		return fmt.Errorf("catalog has %d vectors but %d rules", c.Index.Len(), len(c.Rules))
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove old index: %w", err)
	}

	db, err := open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin index write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("create index schema: %w", err)
	}
	meta := map[string]string{
		"dimensions": strconv.Itoa(c.Index.Dimensions()),
		"model":      c.Model,
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
	}

	stmt, err := tx.Prepare(`INSERT INTO rules (position, rule_json, embedding) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare rule insert: %w", err)
	}
	defer stmt.Close()

	c.Index.mu.RLock()
	defer c.Index.mu.RUnlock()
	for i, rule := range c.Rules {
		body, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("encode rule %d: %w", i, err)
		}
		if _, err := stmt.Exec(i, string(body), embed.EncodeVector(c.Index.vectors[i])); err != nil {
			return fmt.Errorf("write rule %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	return nil
}

// Load reads a catalog written by Save.
func Load(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open vector index: %w", err)
	}
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta := map[string]string{}
	rows, err := db.Query(`SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("read index meta: %w", err)
	}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan index meta: %w", err)
		}
		meta[k] = v
	}
	rows.Close()

	dims, err := strconv.Atoi(meta["dimensions"])
	if err != nil || dims <= 0 {
		return nil, fmt.Errorf("index meta has invalid dimensions %q", meta["dimensions"])
	}

	c := &Catalog{Index: New(dims), Model: meta["model"]}
	rows, err = db.Query(`SELECT rule_json, embedding FROM rules ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read index rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var body string
		var blob []byte
		if err := rows.Scan(&body, &blob); err != nil {
			return nil, fmt.Errorf("scan index rule: %w", err)
		}
		var rule models.Rule
		if err := json.Unmarshal([]byte(body), &rule); err != nil {
			return nil, fmt.Errorf("decode index rule: %w", err)
		}
		vec, err := embed.DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		if _, err := c.Index.Add(vec); err != nil {
			return nil, err
		}
		c.Rules = append(c.Rules, rule)
	}
	return c, rows.Err()
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}
	return db, nil
}
