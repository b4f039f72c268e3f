package blockstore

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Badger is a persistent block store. A single database is shared by
// several evaluation runs, each confined to its own key prefix via Namespace.
type Badger struct {
	db  *badger.DB
	log *logrus.Logger
}

// OpenBadger opens ( or creates ) a database in dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string, logger *logrus.Logger) (*Badger, error) {
	if logger == nil {
		logger = logrus.New()
	}

	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger store at '%s': %w", dir, err)
	}

	logger.WithFields(logrus.Fields{
		"dir":      dir,
		"inMemory": dir == "",
	}).Debug("badger block store opened")

	return &Badger{db: db, log: logger}, nil
}

func (b *Badger) Close() error { return b.db.Close() }

// Namespace returns a Store view confined to keys under prefix. Closing the
// view leaves the shared database open.
func (b *Badger) Namespace(prefix string) Store {
	return &badgerNamespace{
		parent: b,
		prefix: []byte(prefix + "/"),
	}
}

type badgerNamespace struct {
	parent *Badger
	prefix []byte
}

func (n *badgerNamespace) key(id string) []byte {
	k := make([]byte, 0, len(n.prefix)+len(id))
	k = append(k, n.prefix...)
	return append(k, id...)
}

func (n *badgerNamespace) Put(ctx context.Context, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return n.parent.db.Update(func(txn *badger.Txn) error {
		return txn.Set(n.key(id), data)
	})
}

func (n *badgerNamespace) Get(ctx context.Context, id string) (data []byte, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	err = n.parent.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(n.key(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(id)
	}
	return
}

func (n *badgerNamespace) Has(ctx context.Context, id string) (bool, error) {
	_, err := n.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (n *badgerNamespace) Size(ctx context.Context) (count int, err error) {
	if err = ctx.Err(); err != nil {
		return
	}
	err = n.parent.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = n.prefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return
}

func (n *badgerNamespace) Close() error { return nil }
