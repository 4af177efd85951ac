// Package soap serves the Web Connector's SOAP 1.1 session protocol.
package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

const (
	EnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	ServiceNS  = "http://developer.intuit.com/"
	xsiNS      = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNS      = "http://www.w3.org/2001/XMLSchema"
)

// ErrBadEnvelope is returned for requests that are not a SOAP envelope
// with an operation element in its body.
var ErrBadEnvelope = errors.New("malformed SOAP envelope")

type requestEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Inner []byte `xml:",innerxml"`
	} `xml:"Body"`
}

// call is one decoded operation element, ready to be unmarshaled into the
// operation's argument struct.
type call struct {
	Operation string
	start     xml.StartElement
	dec       *xml.Decoder
}

func (c *call) decode(v any) error {
	if err := c.dec.DecodeElement(v, &c.start); err != nil {
		return fmt.Errorf("%w: %s arguments: %v", ErrBadEnvelope, c.Operation, err)
	}
	return nil
}

func newDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	return d
}

// decodeCall reads an envelope and positions on the first element of its
// body. Operations are matched by local name; prefixes are ignored.
func decodeCall(data []byte) (*call, error) {
	var env requestEnvelope
	if err := newDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	d := newDecoder(bytes.NewReader(env.Body.Inner))
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty body", ErrBadEnvelope)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return &call{Operation: se.Name.Local, start: se, dec: d}, nil
		}
	}
}

type clientVersionArgs struct {
	Version string `xml:"strVersion"`
}

type authenticateArgs struct {
	Username string `xml:"strUserName"`
	Password string `xml:"strPassword"`
}

type sendRequestArgs struct {
	Ticket            string `xml:"ticket"`
	CompanyFile       string `xml:"strCompanyFileName"`
	Country           string `xml:"qbXMLCountry"`
	QBXMLMajorVersion string `xml:"qbXMLMajorVers"`
	QBXMLMinorVersion string `xml:"qbXMLMinorVers"`
	HCPResponse       string `xml:"strHCPResponse"`
}

type receiveResponseArgs struct {
	Ticket   string `xml:"ticket"`
	Response string `xml:"response"`
	HResult  string `xml:"hresult"`
	Message  string `xml:"message"`
}

type ticketArgs struct {
	Ticket string `xml:"ticket"`
}

type connectionErrorArgs struct {
	Ticket  string `xml:"ticket"`
	HResult string `xml:"hresult"`
	Message string `xml:"message"`
}

type responseEnvelope struct {
	XMLName xml.Name     `xml:"soap:Envelope"`
	Soap    string       `xml:"xmlns:soap,attr"`
	XSI     string       `xml:"xmlns:xsi,attr"`
	XSD     string       `xml:"xmlns:xsd,attr"`
	Body    responseBody `xml:"soap:Body"`
}

type responseBody struct {
	Content any
	Fault   *fault `xml:"soap:Fault,omitempty"`
}

type operationResponse struct {
	XMLName xml.Name
	Xmlns   string `xml:"xmlns,attr"`
	Result  result
}

type result struct {
	XMLName xml.Name
	Text    string   `xml:",chardata"`
	Strings []string `xml:"string"`
}

type fault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

func newResponse(operation string, r result) responseEnvelope {
	r.XMLName = xml.Name{Local: operation + "Result"}
	return envelope(responseBody{Content: operationResponse{
		XMLName: xml.Name{Local: operation + "Response"},
		Xmlns:   ServiceNS,
		Result:  r,
	}})
}

func newFault(code, message string) responseEnvelope {
	return envelope(responseBody{Fault: &fault{Code: code, String: message}})
}

func envelope(body responseBody) responseEnvelope {
	return responseEnvelope{Soap: EnvelopeNS, XSI: xsiNS, XSD: xsdNS, Body: body}
}

func encodeEnvelope(env responseEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("encode SOAP response: %w", err)
	}
	return buf.Bytes(), nil
}
