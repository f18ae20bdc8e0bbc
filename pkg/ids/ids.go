// Package ids mints the human-facing identifiers: snowflake order numbers and
// ksuid-based transaction and receipt references.
package ids

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"

	"github.com/sokohub/sokohub-backend/pkg/config"
)

const (
	transactionPrefix = "TXN-"
	receiptPrefix     = "RCT-"
)

// Generator is safe for concurrent use.
type Generator struct {
	node *snowflake.Node
}

func NewGenerator(cfg config.IDsConfig) (*Generator, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return &Generator{node: node}, nil
}

// OrderNumber returns a unique, roughly time-ordered order number.
func (g *Generator) OrderNumber() int64 {
	return g.node.Generate().Int64()
}

// TransactionID returns a payment reference such as TXN-2Dn9... .
func (g *Generator) TransactionID() string {
	return transactionPrefix + ksuid.New().String()
}

// ReceiptNumber derives the receipt reference from the order number.
func (g *Generator) ReceiptNumber(orderNumber int64) string {
	return fmt.Sprintf("%s%d", receiptPrefix, orderNumber)
}

// IsTransactionID reports whether value looks like a reference minted by TransactionID.
func IsTransactionID(value string) bool {
	raw, ok := strings.CutPrefix(value, transactionPrefix)
	if !ok {
		return false
	}
	_, err := ksuid.Parse(raw)
	return err == nil
}
