package mongodb

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	insertBatchSize = 1000
	// a single BSON document is capped at 16MiB; leave room for the envelope
	maxLineSize = 17 * 1024 * 1024
)

// dumpLine is one document in a dump, encoded as canonical Extended JSON.
type dumpLine struct {
	Collection string          `json:"collection"`
	Document   json.RawMessage `json:"document"`
}

// Dumper writes collections as JSON lines and loads them back.
type Dumper struct {
	db          *mongo.Database
	collections []string
}

func NewDumper(db *mongo.Database, collections ...string) *Dumper {
	if len(collections) == 0 {
		collections = DefaultBackupCollections
	}
	return &Dumper{db: db, collections: collections}
}

func (d *Dumper) Extension() string {
	return "jsonl"
}

func (d *Dumper) Dump(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	for _, name := range d.collections {
		cursor, err := d.db.Collection(name).Find(ctx, bson.D{})
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		count := 0
		for cursor.Next(ctx) {
			doc, err := bson.MarshalExtJSON(cursor.Current, true, false)
			if err != nil {
				_ = cursor.Close(ctx)
				return fmt.Errorf("failed to encode document from %s: %w", name, err)
			}
			if err := enc.Encode(dumpLine{Collection: name, Document: doc}); err != nil {
				_ = cursor.Close(ctx)
				return fmt.Errorf("failed to write backup: %w", err)
			}
			count++
		}
		if err := cursor.Err(); err != nil {
			_ = cursor.Close(ctx)
			return fmt.Errorf("failed to iterate %s: %w", name, err)
		}
		_ = cursor.Close(ctx)

		log.Debug().Str("collection", name).Int("documents", count).Msg("backup: collection dumped")
	}

	return bw.Flush()
}

// Restore replaces the contents of every known collection with the documents in the
// dump. Collections absent from the dump end up empty.
func (d *Dumper) Restore(ctx context.Context, r io.Reader) error {
	docs, err := readDumpLines(r)
	if err != nil {
		return err
	}

	allowed := make(map[string]struct{}, len(d.collections))
	for _, c := range d.collections {
		allowed[c] = struct{}{}
	}
	for name := range docs {
		if _, ok := allowed[name]; !ok {
			return fmt.Errorf("backup contains unknown collection %q", name)
		}
	}

	for _, name := range d.collections {
		coll := d.db.Collection(name)
		if _, err := coll.DeleteMany(ctx, bson.D{}); err != nil {
			return fmt.Errorf("failed to clear %s: %w", name, err)
		}

		pending := docs[name]
		for start := 0; start < len(pending); start += insertBatchSize {
			end := start + insertBatchSize
			if end > len(pending) {
				end = len(pending)
			}
			if _, err := coll.InsertMany(ctx, pending[start:end]); err != nil {
				return fmt.Errorf("failed to load %s: %w", name, err)
			}
		}

		log.Debug().Str("collection", name).Int("documents", len(pending)).Msg("backup: collection restored")
	}

	return nil
}

// readDumpLines groups the documents of a dump by collection, preserving order
// within each collection.
func readDumpLines(r io.Reader) (map[string][]interface{}, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	docs := make(map[string][]interface{})
	lineNo := 0
	seen := 0
	for scanner.Scan() {
		lineNo++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var line dumpLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("invalid backup line %d: %w", lineNo, err)
		}
		if line.Collection == "" || len(line.Document) == 0 {
			return nil, fmt.Errorf("invalid backup line %d: missing collection or document", lineNo)
		}

		var doc bson.D
		if err := bson.UnmarshalExtJSON(line.Document, true, &doc); err != nil {
			return nil, fmt.Errorf("invalid document on line %d: %w", lineNo, err)
		}
		docs[line.Collection] = append(docs[line.Collection], doc)
		seen++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if seen == 0 {
		return nil, fmt.Errorf("backup contains no documents")
	}

	return docs, nil
}
