package store

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/shopview/shopview/internal/session"
)

// File loads session documents from a JSONL fixture file, one
// document per line, in either plain or Mongo extended JSON. Used for
// local development without a database.
type File struct {
	path string
}

// NewFile creates a File loader for the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Load reads and parses every document in the fixture file. Blank and
// invalid lines are skipped.
func (f *File) Load(ctx context.Context) ([]session.Document, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, &ConnError{Err: fmt.Errorf("opening fixture: %w", err)}
	}
	defer file.Close()

	var docs []session.Document
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		if line == "" || !gjson.Valid(line) {
			continue
		}
		docs = append(docs, parseLine(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return docs, nil
}

func parseLine(line string) session.Document {
	return session.Document{
		ID:           lineID(line),
		StartTime:    session.ParseTime(gjson.Get(line, "startTime").Str),
		LastActivity: session.ParseTime(gjson.Get(line, "lastActivity").Str),
		DeviceInfo:   objectMap(gjson.Get(line, "deviceInfo")),
		SessionMetadata: objectMap(
			gjson.Get(line, "sessionMetadata"),
		),
		SessionTags: objectMap(gjson.Get(line, "sessionTags")),
	}
}

// lineID handles both plain string ids and extended-JSON
// {"$oid": "..."} objects.
func lineID(line string) string {
	id := gjson.Get(line, "_id")
	if id.IsObject() {
		return id.Get("$oid").Str
	}
	return id.Str
}

// objectMap converts a gjson object result to a plain map; any other
// shape yields nil, which normalization absorbs with defaults.
func objectMap(res gjson.Result) map[string]any {
	m, _ := res.Value().(map[string]any)
	return m
}
