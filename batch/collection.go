package batch

import (
	"iter"
	"slices"
)

// TransactionCollection is the ordered set of transactions of one envelope.
type TransactionCollection struct {
	transactions []*Transaction
}

// NewTransactionCollection builds one transaction per item, preserving
// envelope order.
func NewTransactionCollection(items []EnvelopeItem, parent *ParentContext, parser *ParameterParser) *TransactionCollection {
	if parent == nil {
		parent = EmptyParentContext()
	}
	if parser == nil {
		parser = NewParameterParser()
	}
	txs := make([]*Transaction, len(items))
	for i, item := range items {
		tx := NewTransaction(item, parent, parser)
		tx.index = i
		txs[i] = tx
	}
	return &TransactionCollection{transactions: txs}
}

// Size returns the number of transactions.
func (c *TransactionCollection) Size() int { return len(c.transactions) }

// At returns the transaction at index i.
func (c *TransactionCollection) At(i int) *Transaction { return c.transactions[i] }

// Transactions returns a copy of the ordered transaction slice.
func (c *TransactionCollection) Transactions() []*Transaction {
	return slices.Clone(c.transactions)
}

// All iterates the transactions in envelope order.
func (c *TransactionCollection) All() iter.Seq2[int, *Transaction] {
	return func(yield func(int, *Transaction) bool) {
		for i, tx := range c.transactions {
			if !yield(i, tx) {
				return
			}
		}
	}
}

// MapCollection applies fn to every transaction in order. The result has the
// same length and order as the collection.
func MapCollection[T any](c *TransactionCollection, fn func(int, *Transaction) T) []T {
	out := make([]T, len(c.transactions))
	for i, tx := range c.transactions {
		out[i] = fn(i, tx)
	}
	return out
}
