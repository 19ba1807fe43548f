package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/batchgate/types"
)

// TransactionFactory validates a raw envelope and builds its collection.
type TransactionFactory struct {
	parser   *ParameterParser
	maxItems int
}

// FactoryOption configures a TransactionFactory.
type FactoryOption func(*TransactionFactory)

// WithMaxItems rejects envelopes with more than n items. Zero disables the
// limit.
func WithMaxItems(n int) FactoryOption {
	return func(f *TransactionFactory) { f.maxItems = n }
}

// WithParameterParser replaces the parameter parser.
func WithParameterParser(p *ParameterParser) FactoryOption {
	return func(f *TransactionFactory) {
		if p != nil {
			f.parser = p
		}
	}
}

// NewTransactionFactory creates a factory.
func NewTransactionFactory(opts ...FactoryOption) *TransactionFactory {
	f := &TransactionFactory{parser: NewParameterParser()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create parses raw as a JSON array of envelope items. Every shape problem
// is reported as a 400 *types.Error whose message starts with
// "Invalid request".
func (f *TransactionFactory) Create(raw []byte, parent *ParentContext) (*TransactionCollection, error) {
	items, err := f.decode(raw)
	if err != nil {
		return nil, err
	}
	return NewTransactionCollection(items, parent, f.parser), nil
}

func (f *TransactionFactory) decode(raw []byte) ([]EnvelopeItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalidRequest("empty envelope")
	}
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, invalidRequest(err.Error()).WithCause(err)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalidRequest("envelope must be a JSON array")
	}
	if len(list) == 0 {
		return nil, invalidRequest("envelope must contain at least one item")
	}
	if f.maxItems > 0 && len(list) > f.maxItems {
		return nil, invalidRequest(fmt.Sprintf("envelope has %d items, the limit is %d", len(list), f.maxItems))
	}

	// second pass over the raw elements keeps json.Number bodies intact
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, invalidRequest(err.Error()).WithCause(err)
	}
	items := make([]EnvelopeItem, len(elems))
	for i, elem := range elems {
		if _, ok := list[i].(map[string]any); !ok {
			return nil, invalidRequest(fmt.Sprintf("item %d must be a JSON object", i))
		}
		item, err := decodeItem(elem)
		if err != nil {
			return nil, invalidRequest(fmt.Sprintf("item %d: %v", i, err)).WithCause(err)
		}
		if strings.TrimSpace(item.RelativeURL) == "" {
			return nil, invalidRequest(fmt.Sprintf("item %d: relative_url is required", i))
		}
		items[i] = item
	}
	return items, nil
}

func decodeItem(elem json.RawMessage) (EnvelopeItem, error) {
	var item EnvelopeItem
	dec := json.NewDecoder(bytes.NewReader(elem))
	dec.UseNumber()
	if err := dec.Decode(&item); err != nil {
		return EnvelopeItem{}, err
	}
	return item, nil
}

func invalidRequest(detail string) *types.Error {
	return types.NewInvalidRequestError("Invalid request: " + detail)
}
