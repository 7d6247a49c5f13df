package db

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// Database owns the four tables and the directory layout under one root
// path, matching the persistent layout:
//
//	<db>/.lock
//	<db>/data/<base>.idx, <base>.dat
//	<db>/threads/…
//	<db>/channels/…
//	<db>/identities/…
//	<db>/network/<family>L<level>
type Database struct {
	root string
	lock *os.File

	Data       *Table[DataRow]
	Threads    *Table[ThreadRow]
	Channels   *Table[ChannelRow]
	Identities *Table[IdentityRow]
}

// Open acquires the exclusive writer lock and opens (or creates) all four
// tables and their directories under root.
func Open(root string) (*Database, error) {
	for _, sub := range []string{"data", "threads", "channels", "identities", "network"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o700); err != nil {
			return nil, err
		}
	}

	lock, err := os.OpenFile(filepath.Join(root, ".lock"), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("db: %s already locked by another writer", root)
		}
		return nil, err
	}

	dataBases, err := scanBases(filepath.Join(root, "data"))
	if err != nil {
		lock.Close()
		return nil, err
	}
	threadBases, err := scanBases(filepath.Join(root, "threads"))
	if err != nil {
		lock.Close()
		return nil, err
	}
	channelBases, err := scanBases(filepath.Join(root, "channels"))
	if err != nil {
		lock.Close()
		return nil, err
	}
	identityBases, err := scanBases(filepath.Join(root, "identities"))
	if err != nil {
		lock.Close()
		return nil, err
	}

	data, err := OpenTable[DataRow](filepath.Join(root, "data"), DataRowCodec, dataBases)
	if err != nil {
		lock.Close()
		return nil, err
	}
	threads, err := OpenTable[ThreadRow](filepath.Join(root, "threads"), ThreadRowCodec, threadBases)
	if err != nil {
		lock.Close()
		return nil, err
	}
	channels, err := OpenTable[ChannelRow](filepath.Join(root, "channels"), ChannelRowCodec, channelBases)
	if err != nil {
		lock.Close()
		return nil, err
	}
	identities, err := OpenTable[IdentityRow](filepath.Join(root, "identities"), IdentityRowCodec, identityBases)
	if err != nil {
		lock.Close()
		return nil, err
	}

	return &Database{
		root:       root,
		lock:       lock,
		Data:       data,
		Threads:    threads,
		Channels:   channels,
		Identities: identities,
	}, nil
}

var baseFilePattern = regexp.MustCompile(`^([0-9a-f]{8})\.idx$`)

func scanBases(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var bases []uint32
	for _, e := range entries {
		m := baseFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 16, 32)
		if err != nil {
			continue
		}
		bases = append(bases, uint32(v))
	}
	return bases, nil
}

// Flush syncs every table to stable storage.
func (db *Database) Flush() error {
	if err := db.Data.Flush(); err != nil {
		return err
	}
	if err := db.Threads.Flush(); err != nil {
		return err
	}
	if err := db.Channels.Flush(); err != nil {
		return err
	}
	return db.Identities.Flush()
}

// Close releases the writer lock and removes its lock file. Tables are
// left with their shards open; Close does not flush or close them.
func (db *Database) Close() error {
	path := db.lock.Name()
	if err := db.lock.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}
