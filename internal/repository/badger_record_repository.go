package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "subject/"

// BadgerRecordRepository keeps records in an embedded badger database.
// Each write is a single transaction, which gives the atomic replace.
type BadgerRecordRepository struct {
	db *badger.DB
}

func NewBadgerRecordRepository(db *badger.DB) *BadgerRecordRepository {
	return &BadgerRecordRepository{db: db}
}

func badgerKey(name string) []byte {
	return []byte(badgerKeyPrefix + name)
}

func (r *BadgerRecordRepository) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRecordNotFound
	}
	return data, err
}

func (r *BadgerRecordRepository) Create(ctx context.Context, name string, data []byte) error {
	return r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(badgerKey(name))
		switch {
		case err == nil:
			return ErrRecordExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.Set(badgerKey(name), data)
	})
}

func (r *BadgerRecordRepository) Replace(ctx context.Context, name string, data []byte) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		return txn.Set(badgerKey(name), data)
	})
}

func (r *BadgerRecordRepository) Delete(ctx context.Context, name string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(badgerKey(name)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrRecordNotFound
			}
			return err
		}
		return txn.Delete(badgerKey(name))
	})
}

func (r *BadgerRecordRepository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(badgerKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			names = append(names, strings.TrimPrefix(string(it.Item().Key()), badgerKeyPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	// Keys iterate in byte order, which is already sort.Strings order.
	return names, nil
}
