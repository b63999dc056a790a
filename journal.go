package portfolio

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// AccountEntry is one row of the current-account journal: a dated, signed
// cash movement and the balance it produced. The journal is append-only.
type AccountEntry struct {
	ID       string // ID is a time-sortable ULID.
	Date     Date
	Kind     Kind
	CashFlow Money // CashFlow is the amount actually moved, never the requested one.
	Balance  Money // Balance is the account balance after the movement.
	Memo     string
}

// BlotterRecord is one row of the buy/sell blotter. The blotter is
// append-only.
type BlotterRecord struct {
	ID         string // ID is a time-sortable ULID.
	Portfolio  string
	Bank       string
	Date       Date
	ISIN       string
	Currency   string
	Rate       decimal.Decimal
	Title      string
	Side       Side
	Quantity   Quantity
	Price      Money
	NAV        Money
	Fee        Money
	Commission decimal.Decimal
	Amount     Money // Amount is the total cost or proceeds of the trade.
}

var (
	idMu   sync.Mutex
	idMono io.Reader
)

func init() {
	// Seed a PRNG from crypto/rand so ULID entropy is unpredictable.
	// ulid.Monotonic keeps IDs generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	idMono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// newRecordID returns a ULID string for journal and blotter records.
func newRecordID() string {
	idMu.Lock()
	defer idMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(time.Now().UTC()), idMono)
	if err != nil {
		// Only possible if time goes backwards or entropy fails.
		panic(err)
	}
	return id.String()
}
