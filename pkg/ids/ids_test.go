package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sokohub/sokohub-backend/pkg/config"
)

func TestOrderNumbersAreUnique(t *testing.T) {
	gen, err := NewGenerator(config.IDsConfig{SnowflakeNode: 3})
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				n := gen.OrderNumber()
				mu.Lock()
				seen[n] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, 2000)
}

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewGenerator(config.IDsConfig{SnowflakeNode: 5000})
	require.Error(t, err)
}

func TestTransactionAndReceiptIDs(t *testing.T) {
	gen, err := NewGenerator(config.IDsConfig{SnowflakeNode: 1})
	require.NoError(t, err)

	txn := gen.TransactionID()
	require.True(t, IsTransactionID(txn))
	require.NotEqual(t, txn, gen.TransactionID())
	require.False(t, IsTransactionID("TXN-nope"))
	require.False(t, IsTransactionID("abc"))

	require.Equal(t, "RCT-42", gen.ReceiptNumber(42))
}
