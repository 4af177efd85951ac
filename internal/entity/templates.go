package entity

import (
	"bytes"
	"embed"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// QBXMLVersion is the qbXML version announced in every request.
const QBXMLVersion = "13.0"

// DefaultMaxReturned caps default sync queries.
const DefaultMaxReturned = 20

// plainDecimal is the amount syntax qbXML accepts: no sign other than a
// leading minus, no exponent, no special values.
var plainDecimal = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("qbxml").
		Funcs(template.FuncMap{"xml": escapeXML}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

func escapeXML(s string) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

func lookupAddTemplate(k Kind) (*template.Template, error) {
	t := templates.Lookup("add_" + k.Name + ".tmpl")
	if t == nil {
		return nil, fmt.Errorf("no create template for %q", k.Name)
	}
	return t, nil
}

// CreateLine is one line item of a create request.
type CreateLine struct {
	Item        string `json:"item,omitempty"`
	Account     string `json:"account,omitempty"`
	Description string `json:"description,omitempty"`
	Quantity    string `json:"quantity,omitempty"`
	Rate        string `json:"rate,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Type        string `json:"type,omitempty"`
}

// CreateRequest carries the fields any create template may use. Which of
// them are required depends on the kind's CreateShape.
type CreateRequest struct {
	Customer    string       `json:"customer,omitempty"`
	Vendor      string       `json:"vendor,omitempty"`
	Account     string       `json:"account,omitempty"`
	Name        string       `json:"name,omitempty"`
	CompanyName string       `json:"company_name,omitempty"`
	Email       string       `json:"email,omitempty"`
	Date        string       `json:"date,omitempty"`
	DueDate     string       `json:"due_date,omitempty"`
	RefNumber   string       `json:"ref_number,omitempty"`
	Memo        string       `json:"memo,omitempty"`
	Amount      string       `json:"amount,omitempty"`
	Lines       []CreateLine `json:"lines,omitempty"`
}

// ValidationError reports the first invalid field of a write request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type queryData struct {
	Kind        Kind
	ID          string
	MaxReturned int
	Include     []string
}

type deleteData struct {
	Kind Kind
	ID   string
}

// IncludeElements lists the top-level elements a default sync asks for:
// every element the field schema reads, timestamps included.
func (k Kind) IncludeElements() []string {
	seen := make(map[string]struct{}, len(k.Fields))
	out := make([]string, 0, len(k.Fields))
	for _, f := range k.Fields {
		top, _, _ := strings.Cut(f.Path, ".")
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		out = append(out, top)
	}
	return out
}

// DefaultQuery builds the bounded bulk sync request for the kind.
func DefaultQuery(k Kind, maxReturned int) (string, error) {
	if maxReturned <= 0 {
		maxReturned = DefaultMaxReturned
	}
	return render("query.tmpl", queryData{Kind: k, MaxReturned: maxReturned, Include: k.IncludeElements()})
}

// PointQuery builds a query for one record by the kind's identifier element.
func PointQuery(k Kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &ValidationError{Field: "id", Reason: "required"}
	}
	return render("query.tmpl", queryData{Kind: k, ID: id})
}

// DeleteRequest builds a TxnDelRq for transaction kinds and a ListDelRq for
// list kinds.
func DeleteRequest(k Kind, id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &ValidationError{Field: "id", Reason: "required"}
	}
	name := "list_delete.tmpl"
	if k.IsTransaction() {
		name = "txn_delete.tmpl"
	}
	return render(name, deleteData{Kind: k, ID: id})
}

// CreateRequestXML validates req against the kind's shape and renders its
// create template.
func CreateRequestXML(k Kind, req CreateRequest) (string, error) {
	if err := ValidateCreate(k, req); err != nil {
		return "", err
	}
	t, err := lookupAddTemplate(k)
	if err != nil {
		return "", err
	}
	return renderTemplate(t, req)
}

// ValidateCreate checks the required fields for the kind.
func ValidateCreate(k Kind, req CreateRequest) error {
	switch k.Shape {
	case ShapeListName:
		return required("name", req.Name)
	case ShapeCustomerAmount:
		if err := required("customer", req.Customer); err != nil {
			return err
		}
		if err := validDate("date", req.Date, true); err != nil {
			return err
		}
		_, err := amount("amount", req.Amount, true)
		return err
	}

	if err := validDate("date", req.Date, true); err != nil {
		return err
	}
	if err := validDate("due_date", req.DueDate, false); err != nil {
		return err
	}
	switch k.Shape {
	case ShapeCustomerLines:
		if err := required("customer", req.Customer); err != nil {
			return err
		}
	case ShapeVendorLines:
		if err := required("vendor", req.Vendor); err != nil {
			return err
		}
	case ShapeAccountLines:
		if err := required("account", req.Account); err != nil {
			return err
		}
	}
	if len(req.Lines) == 0 {
		return &ValidationError{Field: "lines", Reason: "at least one line is required"}
	}

	var debits, credits int
	debitTotal, creditTotal := decimal.Zero, decimal.Zero
	for i, line := range req.Lines {
		prefix := fmt.Sprintf("lines[%d].", i)
		lineAmount, err := amount(prefix+"amount", line.Amount, true)
		if err != nil {
			return err
		}
		if _, err := amount(prefix+"quantity", line.Quantity, false); err != nil {
			return err
		}
		if _, err := amount(prefix+"rate", line.Rate, false); err != nil {
			return err
		}
		switch k.Shape {
		case ShapeVendorLines:
			if line.Item == "" && line.Account == "" {
				return &ValidationError{Field: prefix + "item", Reason: "item or account is required"}
			}
		case ShapeAccountLines:
			if err := required(prefix+"account", line.Account); err != nil {
				return err
			}
		case ShapeJournal:
			if err := required(prefix+"account", line.Account); err != nil {
				return err
			}
			switch line.Type {
			case "debit":
				debits++
				debitTotal = debitTotal.Add(lineAmount)
			case "credit":
				credits++
				creditTotal = creditTotal.Add(lineAmount)
			default:
				return &ValidationError{Field: prefix + "type", Reason: `must be "debit" or "credit"`}
			}
		}
	}
	if k.Shape == ShapeJournal && (debits == 0 || credits == 0) {
		return &ValidationError{Field: "lines", Reason: "a journal entry needs at least one debit and one credit line"}
	}
	if k.Shape == ShapeJournal && !debitTotal.Equal(creditTotal) {
		return &ValidationError{Field: "lines", Reason: fmt.Sprintf("debits %s do not balance credits %s", debitTotal, creditTotal)}
	}
	return nil
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	return nil
}

func validDate(field, v string, mandatory bool) error {
	if v == "" {
		if mandatory {
			return &ValidationError{Field: field, Reason: "required"}
		}
		return nil
	}
	if _, err := time.Parse(time.DateOnly, v); err != nil {
		return &ValidationError{Field: field, Reason: "must be YYYY-MM-DD"}
	}
	return nil
}

// amount parses v as a plain decimal. An empty optional value is zero.
func amount(field, v string, mandatory bool) (decimal.Decimal, error) {
	if v == "" {
		if mandatory {
			return decimal.Zero, &ValidationError{Field: field, Reason: "required"}
		}
		return decimal.Zero, nil
	}
	if !plainDecimal.MatchString(v) {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be a decimal number"}
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: field, Reason: "must be a decimal number"}
	}
	return d, nil
}

func render(name string, data any) (string, error) {
	t := templates.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	return renderTemplate(t, data)
}

func renderTemplate(t *template.Template, data any) (string, error) {
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	var out bytes.Buffer
	err := templates.Lookup("envelope.tmpl").Execute(&out, struct {
		Version string
		Body    string
	}{Version: QBXMLVersion, Body: strings.TrimRight(body.String(), "\n")})
	if err != nil {
		return "", fmt.Errorf("render envelope: %w", err)
	}
	return out.String(), nil
}
