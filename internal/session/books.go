package session

import (
	"sync"

	"github.com/MrJamesThe3rd/salesledger/internal/ledger"
)

// Books hands out one cached ledger per owner. Sessions working on the same
// owner share it, so every write starts from what the others last wrote.
type Books struct {
	mu    sync.Mutex
	books map[string]*book
}

func NewBooks() *Books {
	return &Books{books: make(map[string]*book)}
}

// book is the cache of one owner's ledger. All fields but owner and refs are
// guarded by mu; refs is guarded by Books.mu.
type book struct {
	mu     sync.Mutex
	owner  ledger.Owner
	refs   int
	loaded bool
	ledger ledger.Ledger
	dirty  bool
}

func (b *Books) acquire(owner ledger.Owner) *book {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk, ok := b.books[owner.Key()]
	if !ok {
		bk = &book{owner: owner}
		b.books[owner.Key()] = bk
	}

	bk.refs++

	return bk
}

// release drops a reference. The last one out discards the cache, so the next
// login reads from storage again.
func (b *Books) release(bk *book) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bk.refs--
	if bk.refs <= 0 {
		delete(b.books, bk.owner.Key())
	}
}

// Open reports how many owners currently have a cached ledger.
func (b *Books) Open() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.books)
}
