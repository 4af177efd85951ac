package qbxml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceAnswer = `
<?xml version="1.0" ?>
<QBXML>
  <QBXMLMsgsRs>
    <InvoiceQueryRs requestID="1" statusCode="0" statusSeverity="Info" statusMessage="Status OK">
      <InvoiceRet>
        <TxnID>11-1</TxnID>
        <RefNumber>1001</RefNumber>
        <CustomerRef>
          <ListID>80-1</ListID>
          <FullName>Acme</FullName>
        </CustomerRef>
        <IsPaid>true</IsPaid>
      </InvoiceRet>
      <InvoiceRet>
        <TxnID>11-2</TxnID>
        <RefNumber>1002</RefNumber>
      </InvoiceRet>
    </InvoiceQueryRs>
  </QBXMLMsgsRs>
</QBXML>`

func TestParse(t *testing.T) {
	a, err := Parse(invoiceAnswer)
	require.NoError(t, err)

	assert.True(t, a.HasResponse("InvoiceQueryRs"))
	assert.False(t, a.HasResponse("BillQueryRs"))

	st := a.ResponseStatus("InvoiceQueryRs")
	assert.Equal(t, "0", st.Code)
	assert.Equal(t, "Status OK", st.Message)
	assert.True(t, st.OK())

	recs, err := a.Records("InvoiceQueryRs", "InvoiceRet")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	v, ok := Lookup(recs[0], "CustomerRef.FullName")
	assert.True(t, ok)
	assert.Equal(t, "Acme", v)

	v, ok = Lookup(recs[0], "IsPaid")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	_, ok = Lookup(recs[1], "CustomerRef.FullName")
	assert.False(t, ok)
}

func TestParseRejectsMalformedAnswers(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"empty", "   "},
		{"not xml", "hello"},
		{"truncated", "<QBXML><QBXMLMsgsRs>"},
		{"no message set", "<QBXML><Other/></QBXML>"},
		{"wrong root", "<Envelope><QBXMLMsgsRs/></Envelope>"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.raw)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}

func TestRecordsShapes(t *testing.T) {
	t.Run("single record becomes a list", func(t *testing.T) {
		a, err := Parse(`<QBXML><QBXMLMsgsRs><BillQueryRs statusCode="0"><BillRet><TxnID>B1</TxnID></BillRet></BillQueryRs></QBXMLMsgsRs></QBXML>`)
		require.NoError(t, err)
		recs, err := a.Records("BillQueryRs", "BillRet")
		require.NoError(t, err)
		require.Len(t, recs, 1)
		v, _ := Lookup(recs[0], "TxnID")
		assert.Equal(t, "B1", v)
	})

	t.Run("no records", func(t *testing.T) {
		a, err := Parse(`<QBXML><QBXMLMsgsRs><BillQueryRs statusCode="1" statusMessage="no match"/></QBXMLMsgsRs></QBXML>`)
		require.NoError(t, err)
		recs, err := a.Records("BillQueryRs", "BillRet")
		require.NoError(t, err)
		assert.Empty(t, recs)
		assert.True(t, a.ResponseStatus("BillQueryRs").OK())
	})

	t.Run("absent response", func(t *testing.T) {
		a, err := Parse(`<QBXML><QBXMLMsgsRs><BillQueryRs/></QBXMLMsgsRs></QBXML>`)
		require.NoError(t, err)
		recs, err := a.Records("InvoiceQueryRs", "InvoiceRet")
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("error status", func(t *testing.T) {
		a, err := Parse(`<QBXML><QBXMLMsgsRs><BillQueryRs statusCode="3100" statusSeverity="Error" statusMessage="bad"/></QBXMLMsgsRs></QBXML>`)
		require.NoError(t, err)
		assert.False(t, a.ResponseStatus("BillQueryRs").OK())
	})
}

func TestLookupReadsTextNextToAttributes(t *testing.T) {
	a, err := Parse(`<QBXML><QBXMLMsgsRs><CustomerQueryRs><CustomerRet><Name lang="en">Jane</Name></CustomerRet></CustomerQueryRs></QBXMLMsgsRs></QBXML>`)
	require.NoError(t, err)
	recs, err := a.Records("CustomerQueryRs", "CustomerRet")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	v, ok := Lookup(recs[0], "Name")
	assert.True(t, ok)
	assert.Equal(t, "Jane", v)
}

func TestParseWindowsCharset(t *testing.T) {
	// 0xE9 is "é" in windows-1252.
	raw := "<?xml version=\"1.0\" encoding=\"windows-1252\"?><QBXML><QBXMLMsgsRs><CustomerQueryRs><CustomerRet><Name>Caf\xe9</Name></CustomerRet></CustomerQueryRs></QBXMLMsgsRs></QBXML>"
	a, err := Parse(raw)
	require.NoError(t, err)
	recs, err := a.Records("CustomerQueryRs", "CustomerRet")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	v, _ := Lookup(recs[0], "Name")
	assert.Equal(t, "Café", v)
}
