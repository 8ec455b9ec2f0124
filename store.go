package willvault

import (
	"context"
	"encoding/json"

	"github.com/everwill/willvault/rawdb"
	"github.com/everwill/willvault/schema"
)

// Store wraps the KV backend holding one JSON snapshot per live will, keyed
// by owner address. The engine replays the bucket at boot.
type Store struct {
	KVDb rawdb.KeyValueDB
}

func NewBoltStore(boltDirPath string) (*Store, error) {
	boltDb, err := rawdb.NewBoltDB(boltDirPath)
	if err != nil {
		return nil, err
	}
	return &Store{KVDb: boltDb}, nil
}

func NewS3Store(accKey, secretKey, region, bktPrefix, endpoint string) (*Store, error) {
	s3Db, err := rawdb.NewS3DB(accKey, secretKey, region, bktPrefix, endpoint)
	if err != nil {
		return nil, err
	}
	return &Store{KVDb: s3Db}, nil
}

func NewMongoStore(ctx context.Context, uri string) (*Store, error) {
	mongoDb, err := rawdb.NewMongoDB(ctx, uri)
	if err != nil {
		return nil, err
	}
	return &Store{KVDb: mongoDb}, nil
}

func (s *Store) SaveWillSnapshot(snap schema.WillSnapshot) error {
	by, err := json.Marshal(&snap)
	if err != nil {
		return err
	}
	return s.KVDb.Put(schema.WillSnapshotBucket, snap.Owner, by)
}

func (s *Store) LoadWillSnapshot(owner string) (snap schema.WillSnapshot, err error) {
	by, err := s.KVDb.Get(schema.WillSnapshotBucket, owner)
	if err != nil {
		return
	}
	err = json.Unmarshal(by, &snap)
	return
}

func (s *Store) LoadAllWillSnapshots() ([]schema.WillSnapshot, error) {
	keys, err := s.KVDb.GetAllKey(schema.WillSnapshotBucket)
	if err != nil {
		return nil, err
	}
	snaps := make([]schema.WillSnapshot, 0, len(keys))
	for _, key := range keys {
		snap, err := s.LoadWillSnapshot(key)
		if err != nil {
			log.Error("load will snapshot failed", "owner", key, "err", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *Store) DelWillSnapshot(owner string) error {
	return s.KVDb.Delete(schema.WillSnapshotBucket, owner)
}

func (s *Store) Close() error {
	return s.KVDb.Close()
}
