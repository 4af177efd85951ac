package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a name does not match any registered kind.
var ErrUnknownKind = errors.New("unsupported entity kind")

// IDKind is the identifier element the accounting application uses for a kind.
type IDKind string

const (
	TxnID  IDKind = "TxnID"
	ListID IDKind = "ListID"
)

// CreateShape selects which fields a create request must carry.
type CreateShape int

const (
	ShapeCustomerLines CreateShape = iota
	ShapeVendorLines
	ShapeCustomerAmount
	ShapeAccountLines
	ShapeJournal
	ShapeListName
)

// Field maps one canonical output field to a dotted source path inside a
// raw record. Bool fields are true only for the literal string "true".
type Field struct {
	Name    string
	Path    string
	Default string
	Bool    bool
}

// FlagEvent emits an extra event carrying only the records whose bool
// field is set.
type FlagEvent struct {
	EventType string
	Field     string
}

// Kind describes one supported business object.
type Kind struct {
	Name        string
	Folder      string
	Noun        string
	QueryVerb   string
	ResponseKey string
	RecordKey   string
	IDKind      IDKind
	Event       string
	Flags       []FlagEvent
	Fields      []Field
	Shape       CreateShape
}

// IsTransaction reports whether the kind is addressed by TxnID.
func (k Kind) IsTransaction() bool { return k.IDKind == TxnID }

// AddVerb is the request element used to create a record of this kind.
func (k Kind) AddVerb() string { return k.Noun + "AddRq" }

// Registry is the ordered, validated table of kinds. Declaration order is
// both the default sync rotation and the classification order.
type Registry struct {
	kinds  []Kind
	byName map[string]int
}

// NewRegistry validates kinds and builds a registry from them.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{
		kinds:  make([]Kind, 0, len(kinds)),
		byName: make(map[string]int, len(kinds)*2),
	}
	for _, k := range kinds {
		if err := validateKind(k); err != nil {
			return nil, err
		}
		for _, alias := range []string{k.Name, k.Folder} {
			key := strings.ToLower(alias)
			if _, dup := r.byName[key]; dup {
				return nil, fmt.Errorf("entity %q: duplicate name or folder %q", k.Name, alias)
			}
			r.byName[key] = len(r.kinds)
		}
		r.kinds = append(r.kinds, k)
	}
	if len(r.kinds) == 0 {
		return nil, errors.New("entity registry is empty")
	}
	return r, nil
}

func validateKind(k Kind) error {
	switch {
	case k.Name == "", k.Folder == "", k.Noun == "":
		return fmt.Errorf("entity %q: name, folder and noun are required", k.Name)
	case k.QueryVerb == "", k.ResponseKey == "", k.RecordKey == "":
		return fmt.Errorf("entity %q: query verb, response key and record key are required", k.Name)
	case k.IDKind != TxnID && k.IDKind != ListID:
		return fmt.Errorf("entity %q: invalid id kind %q", k.Name, k.IDKind)
	case k.Event == "":
		return fmt.Errorf("entity %q: event type is required", k.Name)
	case len(k.Fields) == 0:
		return fmt.Errorf("entity %q: field schema is empty", k.Name)
	}
	seen := make(map[string]Field, len(k.Fields))
	for _, f := range k.Fields {
		if f.Name == "" || f.Path == "" {
			return fmt.Errorf("entity %q: field with empty name or path", k.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("entity %q: duplicate field %q", k.Name, f.Name)
		}
		seen[f.Name] = f
	}
	for _, fl := range k.Flags {
		f, ok := seen[fl.Field]
		if !ok || !f.Bool {
			return fmt.Errorf("entity %q: flag event %q needs a bool field, got %q", k.Name, fl.EventType, fl.Field)
		}
	}
	if _, err := lookupAddTemplate(k); err != nil {
		return fmt.Errorf("entity %q: %w", k.Name, err)
	}
	return nil
}

// Len returns the number of registered kinds.
func (r *Registry) Len() int { return len(r.kinds) }

// At returns the kind at position i in declaration order.
func (r *Registry) At(i int) Kind { return r.kinds[i] }

// All returns the kinds in declaration order.
func (r *Registry) All() []Kind {
	out := make([]Kind, len(r.kinds))
	copy(out, r.kinds)
	return out
}

// Lookup resolves a kind by name or archive folder, case-insensitively.
func (r *Registry) Lookup(name string) (Kind, error) {
	i, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Kind{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return r.kinds[i], nil
}

func timestamps() []Field {
	return []Field{
		{Name: "created_at", Path: "TimeCreated"},
		{Name: "updated_at", Path: "TimeModified"},
	}
}

func newKind(name, folder, noun string, id IDKind, event string, shape CreateShape, fields ...Field) Kind {
	return Kind{
		Name:        name,
		Folder:      folder,
		Noun:        noun,
		QueryVerb:   noun + "QueryRq",
		ResponseKey: noun + "QueryRs",
		RecordKey:   noun + "Ret",
		IDKind:      id,
		Event:       event,
		Fields:      append(fields, timestamps()...),
		Shape:       shape,
	}
}

// DefaultKinds returns the ten supported kinds in rotation order.
func DefaultKinds() []Kind {
	payment := newKind("payment", "payments", "ReceivePayment", TxnID, "payment_updated", ShapeCustomerAmount,
		Field{Name: "payment_id", Path: "TxnID"},
		Field{Name: "customer", Path: "CustomerRef.FullName"},
		Field{Name: "amount", Path: "TotalAmount"},
		Field{Name: "is_voided", Path: "IsVoided", Default: "false", Bool: true},
	)
	payment.Flags = []FlagEvent{{EventType: "payment_voided", Field: "is_voided"}}

	return []Kind{
		newKind("invoice", "invoices", "Invoice", TxnID, "invoice_updated", ShapeCustomerLines,
			Field{Name: "invoice_id", Path: "RefNumber"},
			Field{Name: "customer", Path: "CustomerRef.FullName"},
			Field{Name: "balance_remaining", Path: "BalanceRemaining"},
			Field{Name: "is_paid", Path: "IsPaid", Default: "false", Bool: true},
		),
		newKind("bill", "bills", "Bill", TxnID, "bill_updated", ShapeVendorLines,
			Field{Name: "bill_id", Path: "TxnID"},
			Field{Name: "vendor", Path: "VendorRef.FullName"},
			Field{Name: "amount", Path: "AmountDue"},
		),
		newKind("customer", "customers", "Customer", ListID, "customer_updated", ShapeListName,
			Field{Name: "customer_id", Path: "ListID"},
			Field{Name: "name", Path: "Name"},
			Field{Name: "company_name", Path: "CompanyName"},
			Field{Name: "email", Path: "Email"},
		),
		newKind("vendor", "vendors", "Vendor", ListID, "vendor_updated", ShapeListName,
			Field{Name: "vendor_id", Path: "ListID"},
			Field{Name: "name", Path: "Name"},
			Field{Name: "company_name", Path: "CompanyName"},
			Field{Name: "email", Path: "Email"},
		),
		payment,
		newKind("credit-memo", "creditmemos", "CreditMemo", TxnID, "credit_memo_updated", ShapeCustomerLines,
			Field{Name: "credit_memo_id", Path: "TxnID"},
			Field{Name: "customer", Path: "CustomerRef.FullName"},
			Field{Name: "amount", Path: "TotalAmount"},
		),
		newKind("estimate", "estimates", "Estimate", TxnID, "estimate_updated", ShapeCustomerLines,
			Field{Name: "estimate_id", Path: "TxnID"},
			Field{Name: "customer", Path: "CustomerRef.FullName"},
			Field{Name: "amount", Path: "TotalAmount"},
		),
		newKind("purchase-order", "purchaseorders", "PurchaseOrder", TxnID, "purchase_order_updated", ShapeVendorLines,
			Field{Name: "purchase_order_id", Path: "TxnID"},
			Field{Name: "vendor", Path: "VendorRef.FullName"},
			Field{Name: "amount", Path: "TotalAmount"},
		),
		newKind("deposit", "deposits", "Deposit", TxnID, "deposit_updated", ShapeAccountLines,
			Field{Name: "deposit_id", Path: "TxnID"},
			Field{Name: "account", Path: "DepositToAccountRef.FullName"},
			Field{Name: "amount", Path: "TotalAmount"},
		),
		newKind("journal-entry", "journalentries", "JournalEntry", TxnID, "journal_entry_updated", ShapeJournal,
			Field{Name: "journal_entry_id", Path: "TxnID"},
			Field{Name: "memo", Path: "Memo"},
			Field{Name: "total_amount", Path: "TotalAmount"},
		),
	}
}

// Default builds the registry of the ten supported kinds. It panics if the
// built-in table fails validation, which is a programming error.
func Default() *Registry {
	r, err := NewRegistry(DefaultKinds()...)
	if err != nil {
		panic(err)
	}
	return r
}
